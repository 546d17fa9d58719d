package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/madamis-ops/gmsync/internal/config"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
	"github.com/madamis-ops/gmsync/internal/logger"
	"github.com/madamis-ops/gmsync/internal/postgres"
	"github.com/madamis-ops/gmsync/internal/ratelimit"
	"github.com/madamis-ops/gmsync/internal/service"
	"github.com/madamis-ops/gmsync/internal/store/sqlite"
	"github.com/madamis-ops/gmsync/internal/supabase"
)

// memoryDB is the SQLite path used when no local database is configured.
const memoryDB = ":memory:"

// ProvideSupabase provides the PostgREST client. Missing connection
// settings fail here, before any work is done.
func ProvideSupabase(i do.Injector) (*supabase.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := cfg.RequireSupabase(); err != nil {
		return nil, err
	}

	client, err := supabase.New(supabase.Options{
		URL:               cfg.Supabase.URL,
		Key:               cfg.Supabase.Key(),
		Timeout:           cfg.Supabase.Timeout,
		RequestsPerSecond: cfg.Supabase.RequestsPerSecond,
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Debug("supabase client ready", "url", cfg.Supabase.URL)
	return client, nil
}

// PostgresHandle wraps the Postgres applier with shutdown capability.
type PostgresHandle struct {
	*postgres.Applier
}

// Shutdown implements do.Shutdownable.
func (h *PostgresHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvidePostgres connects to DATABASE_URL.
func ProvidePostgres(i do.Injector) (*PostgresHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := cfg.RequirePostgres(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	applier, err := postgres.Open(ctx, cfg.Postgres.DSN, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("connected to postgres")
	return &PostgresHandle{Applier: applier}, nil
}

// SQLiteHandle wraps the local replay store with shutdown capability.
type SQLiteHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *SQLiteHandle) Shutdown() error {
	return h.Close()
}

// ProvideSQLite opens the local replay database, in memory by default.
func ProvideSQLite(i do.Injector) (*SQLiteHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Paths.LocalDB
	if path == "" {
		path = memoryDB
	}

	db, err := sqlite.Open(path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Debug("local database initialized", "path", path)
	return &SQLiteHandle{Store: db}, nil
}

// ProvideRateLimiter provides the per-host limiter shared by the scraper.
func ProvideRateLimiter(i do.Injector) (*ratelimit.KeyedRateLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ratelimit.New(cfg.Scraper.RequestsPerSecond, 1), nil
}

// ProvideScenarioSource picks where canonical scenarios are read from, in
// order: the --scenarios JSON file, Supabase, then Postgres.
func ProvideScenarioSource(i do.Injector) (service.ScenarioSource, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch {
	case cfg.Paths.ScenarioPath != "":
		log.Debug("reading scenarios from file", "path", cfg.Paths.ScenarioPath)
		return service.FileSource{Path: cfg.Paths.ScenarioPath, Logger: log.Logger}, nil
	case cfg.RequireSupabase() == nil:
		client, err := do.Invoke[*supabase.Client](i)
		if err != nil {
			return nil, err
		}
		return client, nil
	case cfg.RequirePostgres() == nil:
		pg, err := do.Invoke[*PostgresHandle](i)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, domainerrors.Config("no scenario source configured (set --scenarios, SUPABASE_URL or DATABASE_URL)")
	}
}
