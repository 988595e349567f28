package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/stowfront"
	stowhttp "github.com/sagarc03/stowfront/http"
	"github.com/sagarc03/stowfront/keybackend"
	"github.com/sagarc03/stowfront/respcache"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "STOWFRONT"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for stowfront.
type Config struct {
	Env         string              `mapstructure:"env" validate:"omitempty,oneof=dev development prod production"`
	Server      ServerConfig        `mapstructure:"server"`
	Backend     BackendConfig       `mapstructure:"backend"`
	Credentials CredentialsConfig   `mapstructure:"credentials"`
	Store       keybackend.Config   `mapstructure:"store"`
	Cache       CacheConfig         `mapstructure:"cache"`
	CORS        stowhttp.CORSConfig `mapstructure:"cors"`
	Metrics     MetricsConfig       `mapstructure:"metrics"`
	Log         LogConfig           `mapstructure:"log"`
}

// IsProduction reports whether env selects production behaviour.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
	CanonicalHost   string        `mapstructure:"canonical_host"`
	AliasHosts      []string      `mapstructure:"alias_hosts"`
}

// BackendConfig holds the bucket and the application key used to reach it.
// The key can come inline or from key_file; it is checked when the backend
// client is created so commands that never talk to the backend work without it.
type BackendConfig struct {
	KeyID          string        `mapstructure:"key_id"`
	ApplicationKey string        `mapstructure:"application_key"`
	KeyFile        string        `mapstructure:"key_file"`
	Bucket         string        `mapstructure:"bucket"`
	AuthorizeURL   string        `mapstructure:"authorize_url" validate:"omitempty,url"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"min=0"`
	MaxFileCount   int           `mapstructure:"max_file_count" validate:"min=1,max=10000"`
}

// CredentialsConfig holds the staleness thresholds of the credential manager.
type CredentialsConfig struct {
	StaleAfter      time.Duration `mapstructure:"stale_after" validate:"required"`
	InvalidAfter    time.Duration `mapstructure:"invalid_after" validate:"required,gtfield=StaleAfter"`
	StoreKey        string        `mapstructure:"store_key" validate:"required"`
	StoreTTL        time.Duration `mapstructure:"store_ttl" validate:"required,gtfield=InvalidAfter"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"min=0"`
}

// Policy converts the thresholds for stowfront.NewCredentialManager.
func (c CredentialsConfig) Policy() stowfront.CredentialPolicy {
	return stowfront.CredentialPolicy{
		StaleAfter:   c.StaleAfter,
		InvalidAfter: c.InvalidAfter,
		StoreKey:     c.StoreKey,
		StoreTTL:     c.StoreTTL,
	}
}

// CacheConfig holds response cache configuration.
type CacheConfig struct {
	respcache.Config `mapstructure:",squash"`
	MaxBodyBytes     int64 `mapstructure:"max_body_bytes" validate:"min=-1"`
}

// MetricsConfig controls the prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":       "server.port",
	"bucket":     "backend.bucket",
	"key-file":   "backend.key_file",
	"store-type": "store.type",
	"store-dsn":  "store.dsn",
	"cache-type": "cache.type",
	"log-level":  "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Keys without
// a meaningful default are still registered so environment variables reach
// them through AutomaticEnv.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 8787)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s") // streamed downloads have no deadline
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.canonical_host", "")
	v.SetDefault("server.alias_hosts", []string{})

	v.SetDefault("backend.key_id", "")
	v.SetDefault("backend.application_key", "")
	v.SetDefault("backend.key_file", "")
	v.SetDefault("backend.bucket", "")
	v.SetDefault("backend.authorize_url", "")
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.max_file_count", 10000)

	v.SetDefault("credentials.stale_after", "5m")
	v.SetDefault("credentials.invalid_after", "12h")
	v.SetDefault("credentials.store_key", "b2auth")
	v.SetDefault("credentials.store_ttl", "24h")
	v.SetDefault("credentials.refresh_interval", "0s")

	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.dsn", "stowfront.db")
	v.SetDefault("store.path", "")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.prefix", "")
	v.SetDefault("store.tables.credentials", "stowfront_credentials")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.path", ":memory:")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.prefix", respcache.DefaultRedisPrefix)
	v.SetDefault("cache.max_body_bytes", stowhttp.DefaultMaxCacheBodyBytes)

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD"})
	v.SetDefault("cors.allowed_headers", []string{"*"})
	v.SetDefault("cors.exposed_headers", []string{"ETag", "Content-Length", "Last-Modified"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.Store.Tables.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.Credentials.Policy().Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	return nil
}
