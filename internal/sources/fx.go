// Package sources wires the per-platform order adapters.
package sources

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/losverdes/membersync/internal/config"
	"github.com/losverdes/membersync/internal/sources/bigcommerce"
	"github.com/losverdes/membersync/internal/sources/minibc"
	"github.com/losverdes/membersync/internal/sources/squarespace"
)

var Module = fx.Module("sources",
	fx.Provide(
		func(cfg config.Config, log *zap.Logger) (*squarespace.Adapter, error) {
			return squarespace.NewAdapter(cfg.Squarespace, log)
		},
		func(cfg config.Config, log *zap.Logger) (*bigcommerce.Adapter, error) {
			return bigcommerce.NewAdapter(cfg.BigCommerce, log)
		},
		func(cfg config.Config, log *zap.Logger) (*minibc.Adapter, error) {
			return minibc.NewAdapter(cfg.Minibc, log)
		},
	),
)
