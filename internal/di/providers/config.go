// Package providers contains dependency injection providers for the gmsync
// commands.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/madamis-ops/gmsync/internal/config"
	"github.com/madamis-ops/gmsync/internal/logger"
)

// ProvideConfig loads the configuration from the command-line flags
// registered in the container.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	flags := do.MustInvoke[config.Flags](i)
	return config.Load(flags)
}

// ProvideLogger provides the structured logger. Output goes to stderr.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.Logger.Level == "debug",
		Environment: cfg.App.Environment,
	})

	log.Debug("configuration loaded",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_dir", cfg.Paths.DataDir,
		"dialect", cfg.SQL.Dialect,
	)

	return log, nil
}
