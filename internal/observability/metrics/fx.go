package metrics

import (
	"go.uber.org/fx"

	"github.com/losverdes/membersync/internal/config"
)

// Module stamps service identity onto the sync metrics singleton at startup.
var Module = fx.Module("metrics",
	fx.Invoke(func(cfg config.Config) {
		SyncWithConfig(Config{
			ServiceName: cfg.AppName,
			Environment: cfg.Environment,
		})
	}),
)
