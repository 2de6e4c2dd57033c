package etl

import (
	"go.uber.org/fx"

	"github.com/losverdes/membersync/internal/queue"
)

var Module = fx.Module("etl",
	fx.Provide(
		func(l *queue.RunLocker) RunLocker { return l },
		NewService,
	),
)
