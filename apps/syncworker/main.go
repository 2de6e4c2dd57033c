// Command syncworker runs the scheduled sync loop and the queue consumer
// without the HTTP surface, for deployments that split ingest from sync.
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
	"github.com/losverdes/membersync/internal/sources"
	"github.com/losverdes/membersync/internal/user"
	"github.com/losverdes/membersync/internal/worker"
	"github.com/losverdes/membersync/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		obsmetrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		queue.Module,

		membership.Module,
		user.Module,
		metadata.Module,
		sources.Module,
		etl.Module,

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
