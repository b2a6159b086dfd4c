package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/mapping"
	"github.com/Veraticus/invoice-readiness/internal/rules"
	"github.com/Veraticus/invoice-readiness/internal/storage"
)

// EnvPrefix is the prefix of environment variables read by viper.
const EnvPrefix = "READINESS"

// Settings is the typed view of the configuration.
type Settings struct {
	Logging  LoggingSettings
	Database DatabaseSettings
	Server   ServerSettings
	Analysis AnalysisSettings
	Mapping  MappingSettings
	Rules    RuleSettings
	Reports  ReportSettings
}

// LoggingSettings configures slog.
type LoggingSettings struct {
	Level  string
	Format string
}

// DatabaseSettings selects and locates the store.
type DatabaseSettings struct {
	Driver string
	Path   string
	DSN    string
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Addr      string
	RateLimit float64
	Burst     int
}

// AnalysisSettings configures the pipeline.
type AnalysisSettings struct {
	DefaultCountry string
	MaxRows        int
}

// MappingSettings configures field detection.
type MappingSettings struct {
	Scorer    string
	Threshold float64
}

// RuleSettings lists per-rule evaluation policy overrides.
type RuleSettings struct {
	AllFailures  []string
	FirstFailure []string
}

// ReportSettings configures report retention.
type ReportSettings struct {
	TTL time.Duration
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("database.driver", storage.DriverSQLite)
	v.SetDefault("database.path", "~/.local/share/readiness/readiness.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.burst", 20)
	v.SetDefault("analysis.default_country", rules.CountryUAE)
	v.SetDefault("analysis.max_rows", 200)
	v.SetDefault("mapping.scorer", mapping.ScorerContainment)
	v.SetDefault("mapping.threshold", mapping.DefaultThreshold)
	v.SetDefault("rules.all_failures", []string{})
	v.SetDefault("rules.first_failure", []string{})
	v.SetDefault("reports.ttl", storage.DefaultReportTTL)
}

// BindEnv makes every key readable from READINESS_* variables, with dots
// replaced by underscores (database.path -> READINESS_DATABASE_PATH).
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads KEY=value files into the process environment. Missing
// files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		path = ExpandPath(path)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads the typed settings out of v and validates them.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Logging: LoggingSettings{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Database: DatabaseSettings{
			Driver: v.GetString("database.driver"),
			Path:   ExpandPath(v.GetString("database.path")),
			DSN:    v.GetString("database.dsn"),
		},
		Server: ServerSettings{
			Addr:      v.GetString("server.addr"),
			RateLimit: v.GetFloat64("server.rate_limit"),
			Burst:     v.GetInt("server.burst"),
		},
		Analysis: AnalysisSettings{
			DefaultCountry: v.GetString("analysis.default_country"),
			MaxRows:        v.GetInt("analysis.max_rows"),
		},
		Mapping: MappingSettings{
			Scorer:    v.GetString("mapping.scorer"),
			Threshold: v.GetFloat64("mapping.threshold"),
		},
		Rules: RuleSettings{
			AllFailures:  v.GetStringSlice("rules.all_failures"),
			FirstFailure: v.GetStringSlice("rules.first_failure"),
		},
		Reports: ReportSettings{
			TTL: v.GetDuration("reports.ttl"),
		},
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks every setting and reports the first problem.
func (s *Settings) Validate() error {
	if _, err := common.ParseLevel(s.Logging.Level); err != nil {
		return err
	}
	switch s.Logging.Format {
	case "console", "text", "json":
	default:
		return fmt.Errorf("%w: invalid log format: %s", common.ErrInvalidConfig, s.Logging.Format)
	}

	switch s.Database.Driver {
	case storage.DriverSQLite:
		if s.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for sqlite3", common.ErrMissingConfig)
		}
	case storage.DriverPostgres:
		if s.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for postgres", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported database driver %q", common.ErrInvalidConfig, s.Database.Driver)
	}

	if s.Server.RateLimit <= 0 || s.Server.Burst <= 0 {
		return fmt.Errorf("%w: server.rate_limit and server.burst must be positive", common.ErrInvalidConfig)
	}
	if s.Reports.TTL <= 0 {
		return fmt.Errorf("%w: reports.ttl must be positive", common.ErrInvalidConfig)
	}
	if s.Analysis.DefaultCountry == "" {
		return fmt.Errorf("%w: analysis.default_country is required", common.ErrInvalidConfig)
	}
	if s.Analysis.MaxRows <= 0 {
		return fmt.Errorf("%w: analysis.max_rows must be positive", common.ErrInvalidConfig)
	}

	if _, err := mapping.ScorerByName(s.Mapping.Scorer); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if s.Mapping.Threshold < mapping.DefaultThreshold || s.Mapping.Threshold > 1 {
		return fmt.Errorf("%w: mapping.threshold must be in [%.1f, 1]", common.ErrInvalidConfig, mapping.DefaultThreshold)
	}

	if _, err := s.RuleOptions(); err != nil {
		return err
	}
	return nil
}

// StorageOptions converts the database and report settings for storage.Open.
func (s *Settings) StorageOptions() storage.Options {
	return storage.Options{
		Driver:    s.Database.Driver,
		Path:      s.Database.Path,
		DSN:       s.Database.DSN,
		ReportTTL: s.Reports.TTL,
	}
}

// MapperOptions converts the mapping settings for mapping.NewMapper.
func (s *Settings) MapperOptions() ([]mapping.Option, error) {
	scorer, err := mapping.ScorerByName(s.Mapping.Scorer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return []mapping.Option{
		mapping.WithScorer(scorer),
		mapping.WithThreshold(s.Mapping.Threshold),
	}, nil
}

// RuleOptions converts the policy overrides for rules.NewEngine. Unknown
// rule IDs and a rule listed under both policies are errors.
func (s *Settings) RuleOptions() ([]rules.Option, error) {
	known := knownRules()
	seen := make(map[rules.ID]rules.Policy)
	var opts []rules.Option

	add := func(ids []string, policy rules.Policy) error {
		for _, raw := range ids {
			id := rules.ID(strings.ToUpper(strings.TrimSpace(raw)))
			if id == "" {
				continue
			}
			if !known[id] {
				return fmt.Errorf("%w: unknown rule %q", common.ErrInvalidConfig, raw)
			}
			if prev, ok := seen[id]; ok && prev != policy {
				return fmt.Errorf("%w: rule %s listed as both %s and %s", common.ErrInvalidConfig, id, prev, policy)
			}
			seen[id] = policy
			opts = append(opts, rules.WithPolicy(id, policy))
		}
		return nil
	}

	if err := add(s.Rules.AllFailures, rules.AllFailures); err != nil {
		return nil, err
	}
	if err := add(s.Rules.FirstFailure, rules.FirstFailure); err != nil {
		return nil, err
	}
	return opts, nil
}

func knownRules() map[rules.ID]bool {
	known := make(map[rules.ID]bool)
	for _, id := range rules.StandardIDs() {
		known[id] = true
	}
	for _, countryRules := range rules.DefaultRegistry() {
		for _, r := range countryRules {
			known[r.ID] = true
		}
	}
	return known
}

// DefaultDotEnvPaths are the .env files read at startup.
func DefaultDotEnvPaths() []string {
	return []string{".env", filepath.Join("~", ".config", "readiness", ".env")}
}
