package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GMSYNC_ENV", "LOG_LEVEL", "LOG_FORMAT", "GMSYNC_DATA_DIR", "GMSYNC_SHEET",
		"GMSYNC_NAME_MAPPING", "GMSYNC_OUTPUT_DIR", "GMSYNC_CATALOG", "GMSYNC_MAPPING_JSON",
		"GMSYNC_SCENARIOS", "GMSYNC_CHUNK_SIZE", "GMSYNC_SQL_DIALECT", "GMSYNC_MATCH_THRESHOLD",
		"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_ANON_KEY", "SUPABASE_RPS",
		"SUPABASE_TIMEOUT", "DATABASE_URL", "GMSYNC_CATALOG_URL", "GMSYNC_SCRAPE_MAX_CLICKS",
		"GMSYNC_SCRAPE_MAX_MISSES", "GMSYNC_SCRAPE_HEADLESS", "GMSYNC_SCRAPE_RPS",
		"GMSYNC_SCRAPE_TIMEOUT", "GMSYNC_SCRAPE_SETTLE", "GMSYNC_LOCAL_DB", "GMSYNC_INDEX_DIR",
	} {
		t.Setenv(key, "")
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()

	cfg, err := Load(Flags{EnvFile: missingEnvFile(t), DataDir: dataDir})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 150, cfg.SQL.ChunkSize)
	assert.Equal(t, "postgres", cfg.SQL.Dialect)
	assert.InDelta(t, 0.5, cfg.Matcher.Threshold, 1e-9)
	assert.Equal(t, filepath.Join(dataDir, "gm_data.txt"), cfg.Paths.SheetPath)
	assert.Equal(t, filepath.Join(dataDir, "name_mapping.txt"), cfg.Paths.MappingPath)
	assert.Equal(t, filepath.Join(dataDir, "database"), cfg.Paths.OutputDir)
	assert.Empty(t, cfg.Paths.ScenarioPath)
	assert.Empty(t, cfg.Paths.LocalDB)
	assert.Empty(t, cfg.Paths.IndexDir)
	assert.Equal(t, 60*time.Second, cfg.Scraper.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Scraper.SettleDelay)
	assert.Equal(t, 50, cfg.Scraper.MaxClicks)
	assert.Equal(t, 5, cfg.Scraper.MaxMisses)
	assert.True(t, cfg.Scraper.Headless)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"# local settings\n"+
			"export GMSYNC_CHUNK_SIZE=40\n"+
			"GMSYNC_MATCH_THRESHOLD=\"0.7\"\n"+
			"SUPABASE_SERVICE_ROLE_KEY='service'\n",
	), 0o600))

	os.Unsetenv("GMSYNC_CHUNK_SIZE")
	os.Unsetenv("GMSYNC_MATCH_THRESHOLD")
	os.Unsetenv("SUPABASE_SERVICE_ROLE_KEY")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(Flags{EnvFile: envFile, DataDir: t.TempDir(), ChunkSize: "10"})
	require.NoError(t, err)

	// flag beats file
	assert.Equal(t, 10, cfg.SQL.ChunkSize)
	// file fills what env lacks
	assert.InDelta(t, 0.7, cfg.Matcher.Threshold, 1e-9)
	assert.Equal(t, "service", cfg.Supabase.Key())
	// env wins when no flag
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_InvalidThreshold(t *testing.T) {
	clearEnv(t)

	_, err := Load(Flags{EnvFile: missingEnvFile(t), DataDir: t.TempDir(), Threshold: "high"})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrConfig))
}

func TestLoad_MalformedEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("NOT A PAIR\n"), 0o600))

	_, err := Load(Flags{EnvFile: envFile, DataDir: t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, 2, domainerrors.ExitCode(err))
}

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		SQL:     SQLConfig{ChunkSize: 150, Dialect: "postgres"},
		Matcher: MatcherConfig{Threshold: 0.6},
		Scraper: ScraperConfig{MaxClicks: 50, MaxMisses: 5},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"valid", func(*Config) {}, true},
		{"staging", func(c *Config) { c.App.Environment = "staging" }, true},
		{"bad environment", func(c *Config) { c.App.Environment = "test" }, false},
		{"uppercase level", func(c *Config) { c.Logger.Level = "WARN" }, true},
		{"bad level", func(c *Config) { c.Logger.Level = "trace" }, false},
		{"bad format", func(c *Config) { c.Logger.Format = "xml" }, false},
		{"zero chunk", func(c *Config) { c.SQL.ChunkSize = 0 }, false},
		{"sqlite dialect", func(c *Config) { c.SQL.Dialect = "sqlite" }, true},
		{"bad dialect", func(c *Config) { c.SQL.Dialect = "mysql" }, false},
		{"threshold above one", func(c *Config) { c.Matcher.Threshold = 1.2 }, false},
		{"no misses allowed", func(c *Config) { c.Scraper.MaxMisses = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, domainerrors.Is(err, domainerrors.ErrConfig), "got %v", err)
			}
		})
	}
}

func TestRequireSupabase(t *testing.T) {
	cfg := validConfig()
	err := cfg.RequireSupabase()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL")

	cfg.Supabase.URL = "https://example.supabase.co"
	cfg.Supabase.AnonKey = "anon"
	assert.NoError(t, cfg.RequireSupabase())
	assert.Equal(t, "anon", cfg.Supabase.Key())

	cfg.Supabase.ServiceRoleKey = "service"
	assert.Equal(t, "service", cfg.Supabase.Key())
}

func TestRequirePostgres(t *testing.T) {
	cfg := validConfig()
	assert.True(t, domainerrors.Is(cfg.RequirePostgres(), domainerrors.ErrConfig))

	cfg.Postgres.DSN = "postgres://localhost/gm"
	assert.NoError(t, cfg.RequirePostgres())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/gm/data", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "gm", "data"), got)

	got, err = expandPath("sheet.txt", "/srv/gm")
	require.NoError(t, err)
	assert.Equal(t, "/srv/gm/sheet.txt", got)

	got, err = expandPath("", "/srv/gm")
	require.NoError(t, err)
	assert.Empty(t, got)
}
