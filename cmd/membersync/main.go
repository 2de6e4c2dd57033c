// Command membersync runs the full service: webhook ingest endpoints plus
// the scheduled sync worker.
package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/losverdes/membersync/internal/clock"
	"github.com/losverdes/membersync/internal/config"
	"github.com/losverdes/membersync/internal/etl"
	"github.com/losverdes/membersync/internal/logger"
	"github.com/losverdes/membersync/internal/membership"
	"github.com/losverdes/membersync/internal/metadata"
	"github.com/losverdes/membersync/internal/migration"
	obsmetrics "github.com/losverdes/membersync/internal/observability/metrics"
	"github.com/losverdes/membersync/internal/queue"
	"github.com/losverdes/membersync/internal/server"
	"github.com/losverdes/membersync/internal/sources"
	"github.com/losverdes/membersync/internal/user"
	"github.com/losverdes/membersync/internal/webhook"
	"github.com/losverdes/membersync/internal/worker"
	"github.com/losverdes/membersync/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		obsmetrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		queue.Module,

		// Functional domains
		membership.Module,
		user.Module,
		metadata.Module,
		sources.Module,
		etl.Module,
		webhook.Module,

		server.Module,
		worker.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
