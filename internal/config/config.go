package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. STRIDE_ADDR.
const EnvPrefix = "STRIDE"

type Config struct {
	Addr        string   `mapstructure:"ADDR"`
	Commit      string   `mapstructure:"COMMIT"`
	BuildTime   string   `mapstructure:"BUILD_TIME"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	StoreBackend  string `mapstructure:"STORE"`
	SnapshotPath  string `mapstructure:"SNAPSHOT_PATH"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`
	QuotaBytes    int    `mapstructure:"QUOTA_BYTES"`

	AutosaveInterval time.Duration `mapstructure:"AUTOSAVE_INTERVAL"`
	ChecklistPath    string        `mapstructure:"CHECKLIST_PATH"`

	AIBaseURL string        `mapstructure:"AI_BASE_URL"`
	AIAPIKey  string        `mapstructure:"AI_API_KEY"`
	AIModel   string        `mapstructure:"AI_MODEL"`
	AITimeout time.Duration `mapstructure:"AI_TIMEOUT"`
	AIRetries int           `mapstructure:"AI_RETRIES"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"ADDR":              ":8080",
	"CORS_ORIGINS":      "http://localhost:5173",
	"STORE":             "sqlite",
	"SQLITE_PATH":       "data/stride.db",
	"REDIS_ADDR":        "localhost:6379",
	"REDIS_DB":          0,
	"REDIS_PREFIX":      "stride:",
	"QUOTA_BYTES":       5 << 20,
	"AUTOSAVE_INTERVAL": "5m",
	"AI_BASE_URL":       "https://api.openai.com",
	"AI_MODEL":          "gpt-4o-mini",
	"AI_TIMEOUT":        "60s",
	"AI_RETRIES":        1,
	"LOG_LEVEL":         "info",
	"LOG_FORMAT":        "json",
}

// Load reads configuration from STRIDE_* environment variables and, when
// file is non-empty, from that config file. Environment wins over file.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// Unmarshal only sees env values for keys viper already knows about.
	for _, key := range []string{
		"ADDR", "COMMIT", "BUILD_TIME", "CORS_ORIGINS",
		"STORE", "SNAPSHOT_PATH", "SQLITE_PATH", "MIGRATIONS_DIR",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_PREFIX", "QUOTA_BYTES",
		"AUTOSAVE_INTERVAL", "CHECKLIST_PATH",
		"AI_BASE_URL", "AI_API_KEY", "AI_MODEL", "AI_TIMEOUT", "AI_RETRIES",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		_ = v.BindEnv(key)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("%s_SQLITE_PATH is required for the sqlite store", EnvPrefix)
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("%s_REDIS_ADDR is required for the redis store", EnvPrefix)
		}
	default:
		return fmt.Errorf("%s_STORE must be memory, sqlite or redis, got %q", EnvPrefix, c.StoreBackend)
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("%s_QUOTA_BYTES must not be negative", EnvPrefix)
	}
	if c.AutosaveInterval <= 0 {
		return fmt.Errorf("%s_AUTOSAVE_INTERVAL must be positive", EnvPrefix)
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("%s_AI_TIMEOUT must be positive", EnvPrefix)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%s_LOG_FORMAT must be json or console, got %q", EnvPrefix, c.LogFormat)
	}
	return nil
}

// AIEnabled reports whether external AI calls will be attempted.
func (c *Config) AIEnabled() bool {
	return strings.TrimSpace(c.AIAPIKey) != ""
}
