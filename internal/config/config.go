// Package config provides configuration for the gmsync commands with support for
// command-line flags, environment variables, and .env files.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Paths    PathsConfig
	SQL      SQLConfig
	Matcher  MatcherConfig
	Supabase SupabaseConfig
	Postgres PostgresConfig
	Scraper  ScraperConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json or pretty, empty auto-detects from the environment
}

// PathsConfig holds the input and output locations.
// Relative paths are resolved against DataDir.
type PathsConfig struct {
	DataDir      string
	SheetPath    string // GM master sheet (TSV)
	MappingPath  string // raw,canonical name mapping
	OutputDir    string // generated SQL files
	CatalogPath  string // catalog snapshot JSON
	MappingJSON  string // catalog to scenario mapping JSON
	ScenarioPath string // canonical scenario JSON, used when Supabase is not configured
	LocalDB      string // SQLite replay database, empty means in-memory
	IndexDir     string // search index directory, empty means in-memory
}

// SQLConfig controls statement generation.
type SQLConfig struct {
	ChunkSize int    // statements per import file (default: 150)
	Dialect   string // postgres or sqlite
}

// MatcherConfig controls fuzzy title matching.
type MatcherConfig struct {
	Threshold float64 // default: 0.5 for the map command
}

// SupabaseConfig holds the REST connection for live reads and updates.
type SupabaseConfig struct {
	URL               string
	ServiceRoleKey    string
	AnonKey           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Key returns the service role key when present, else the anon key.
func (s SupabaseConfig) Key() string {
	if s.ServiceRoleKey != "" {
		return s.ServiceRoleKey
	}
	return s.AnonKey
}

// PostgresConfig holds the direct database connection used by apply.
type PostgresConfig struct {
	DSN string
}

// ScraperConfig controls the headless browser catalog scrape.
type ScraperConfig struct {
	CatalogURL        string
	Timeout           time.Duration // page load timeout (default: 60s)
	SettleDelay       time.Duration // wait after navigation and clicks (default: 2s)
	MaxClicks         int           // "load more" clicks (default: 50)
	MaxMisses         int           // consecutive failed clicks before stopping (default: 5)
	Headless          bool
	RequestsPerSecond float64
}

// Flags carries raw command-line flag values. Empty strings mean "not set".
type Flags struct {
	EnvFile     string
	Env         string
	LogLevel    string
	LogFormat   string
	DataDir     string
	SheetPath   string
	MappingPath string
	OutputDir   string
	CatalogPath string
	MappingJSON string
	Scenarios   string
	LocalDB     string
	ChunkSize   string
	Dialect     string
	Threshold   string
	SupabaseURL string
	PostgresDSN string
	CatalogURL  string
	Headless    string
}

// Load builds configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env files (.env.local, then .env, or the file named by EnvFile).
// 4. Default values (lowest priority).
func Load(f Flags) (*Config, error) {
	envFiles := []string{".env.local", ".env"}
	if f.EnvFile != "" {
		envFiles = []string{f.EnvFile}
	}
	for _, path := range envFiles {
		if err := loadEnvFile(path); err != nil && !os.IsNotExist(err) {
			return nil, domainerrors.Wrapf(err, domainerrors.CodeConfig, "read %s", path)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(f.Env, "GMSYNC_ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(f.LogLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(f.LogFormat, "LOG_FORMAT", ""),
		},
		Paths: PathsConfig{
			DataDir:      getConfigValue(f.DataDir, "GMSYNC_DATA_DIR", "."),
			SheetPath:    getConfigValue(f.SheetPath, "GMSYNC_SHEET", "gm_data.txt"),
			MappingPath:  getConfigValue(f.MappingPath, "GMSYNC_NAME_MAPPING", "name_mapping.txt"),
			OutputDir:    getConfigValue(f.OutputDir, "GMSYNC_OUTPUT_DIR", "database"),
			CatalogPath:  getConfigValue(f.CatalogPath, "GMSYNC_CATALOG", "catalog.json"),
			MappingJSON:  getConfigValue(f.MappingJSON, "GMSYNC_MAPPING_JSON", "catalog_mapping.json"),
			ScenarioPath: getConfigValue(f.Scenarios, "GMSYNC_SCENARIOS", ""),
			LocalDB:      getConfigValue(f.LocalDB, "GMSYNC_LOCAL_DB", ""),
			IndexDir:     getConfigValue("", "GMSYNC_INDEX_DIR", ""),
		},
		SQL: SQLConfig{
			ChunkSize: getIntConfigValue(f.ChunkSize, "GMSYNC_CHUNK_SIZE", 150),
			Dialect:   getConfigValue(f.Dialect, "GMSYNC_SQL_DIALECT", "postgres"),
		},
		Supabase: SupabaseConfig{
			URL:               strings.TrimRight(getConfigValue(f.SupabaseURL, "SUPABASE_URL", ""), "/"),
			ServiceRoleKey:    getConfigValue("", "SUPABASE_SERVICE_ROLE_KEY", ""),
			AnonKey:           getConfigValue("", "SUPABASE_ANON_KEY", ""),
			RequestsPerSecond: getFloatConfigValue("", "SUPABASE_RPS", 5),
		},
		Postgres: PostgresConfig{
			DSN: getConfigValue(f.PostgresDSN, "DATABASE_URL", ""),
		},
		Scraper: ScraperConfig{
			CatalogURL:        getConfigValue(f.CatalogURL, "GMSYNC_CATALOG_URL", ""),
			MaxClicks:         getIntConfigValue("", "GMSYNC_SCRAPE_MAX_CLICKS", 50),
			MaxMisses:         getIntConfigValue("", "GMSYNC_SCRAPE_MAX_MISSES", 5),
			Headless:          getBoolConfigValue(f.Headless, "GMSYNC_SCRAPE_HEADLESS", true),
			RequestsPerSecond: getFloatConfigValue("", "GMSYNC_SCRAPE_RPS", 1),
		},
	}

	var err error
	if cfg.Matcher.Threshold, err = parseFloat(getConfigValue(f.Threshold, "GMSYNC_MATCH_THRESHOLD", "0.5")); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeConfig, "invalid match threshold")
	}
	if cfg.Supabase.Timeout, err = getDurationConfigValue("", "SUPABASE_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Scraper.Timeout, err = getDurationConfigValue("", "GMSYNC_SCRAPE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Scraper.SettleDelay, err = getDurationConfigValue("", "GMSYNC_SCRAPE_SETTLE", "2s"); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeConfig, "invalid path")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks static configuration values. Connection settings are
// checked separately by RequireSupabase and RequirePostgres because only
// some commands need them.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return domainerrors.Configf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return domainerrors.Configf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "" && c.Logger.Format != "json" && c.Logger.Format != "pretty" {
		return domainerrors.Configf("invalid log format: %s (must be json or pretty)", c.Logger.Format)
	}

	if c.SQL.ChunkSize < 1 {
		return domainerrors.Configf("chunk size must be positive, got %d", c.SQL.ChunkSize)
	}

	if c.SQL.Dialect != "postgres" && c.SQL.Dialect != "sqlite" {
		return domainerrors.Configf("invalid SQL dialect: %s (must be postgres or sqlite)", c.SQL.Dialect)
	}

	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 1 {
		return domainerrors.Configf("match threshold must be within [0, 1], got %g", c.Matcher.Threshold)
	}

	if c.Scraper.MaxClicks < 0 || c.Scraper.MaxMisses < 1 {
		return domainerrors.Config("scraper click limits must be non-negative and allow at least one miss")
	}

	return nil
}

// RequireSupabase fails when the REST URL or both keys are missing.
func (c *Config) RequireSupabase() error {
	var missing []string
	if c.Supabase.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Supabase.Key() == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY or SUPABASE_ANON_KEY")
	}
	if len(missing) > 0 {
		return domainerrors.Configf("missing Supabase configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequirePostgres fails when no DSN is configured.
func (c *Config) RequirePostgres() error {
	if c.Postgres.DSN == "" {
		return domainerrors.Config("missing Postgres configuration: DATABASE_URL")
	}
	return nil
}

// RequireCatalogURL fails when no catalog page is configured.
func (c *Config) RequireCatalogURL() error {
	if c.Scraper.CatalogURL == "" {
		return domainerrors.Config("missing catalog URL: GMSYNC_CATALOG_URL")
	}
	return nil
}

// expandPath expands ~ and makes the path absolute, resolving relative
// paths against base.
func expandPath(path, base string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		if base != "" {
			path = filepath.Join(base, path)
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandPaths() error {
	dataDir, err := expandPath(c.Paths.DataDir, "")
	if err != nil {
		return err
	}
	c.Paths.DataDir = dataDir

	for _, p := range []*string{
		&c.Paths.SheetPath,
		&c.Paths.MappingPath,
		&c.Paths.OutputDir,
		&c.Paths.CatalogPath,
		&c.Paths.MappingJSON,
		&c.Paths.ScenarioPath,
		&c.Paths.LocalDB,
		&c.Paths.IndexDir,
	} {
		expanded, err := expandPath(*p, dataDir)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := parseFloat(strValue)
	if err != nil {
		return defaultValue
	}
	return v
}

func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, domainerrors.Wrapf(err, domainerrors.CodeConfig, "invalid duration for %s: %q", envKey, strValue)
	}
	return d, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments, optional "export " prefix).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Existing environment variables win over the file.
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
