package config

import (
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/breakerguard/internal/circuitbreaker"
	"github.com/angeloszaimis/breakerguard/internal/httpserver"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

var upstreamNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ReservedNames are served by the guard itself and cannot name an upstream.
var ReservedNames = []interface{}{"breakers", "healthz"}

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Environment  string `mapstructure:"environment"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	AddSource bool   `mapstructure:"add_source"`
}

// BreakerConfig holds the breaker settings shared by every upstream that does
// not override them.
type BreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	RetryTimePeriod  string `mapstructure:"retry_time_period"`
}

type UpstreamConfig struct {
	Name             string `mapstructure:"name"`
	URL              string `mapstructure:"url"`
	Timeout          string `mapstructure:"timeout"`
	FailureThreshold int    `mapstructure:"failure_threshold"`
	RetryTimePeriod  string `mapstructure:"retry_time_period"`
}

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Breaker   BreakerConfig    `mapstructure:"breaker"`
	Upstreams []UpstreamConfig `mapstructure:"upstreams"`
}

// Load reads configuration from path, or from config.yaml in ./config or the
// working directory when path is empty. Environment variables override file
// values, with "." in keys replaced by "_".
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.add_source", false)
	v.SetDefault("breaker.failure_threshold", circuitbreaker.DefaultFailureThreshold)
	v.SetDefault("breaker.retry_time_period", circuitbreaker.DefaultRetryTimePeriod.String())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(httpserver.ValidateAddress),
					),
					validation.Field(&sc.ReadTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.WriteTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.IdleTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Breaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.FailureThreshold,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&bc.RetryTimePeriod,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Upstreams,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateUpstreamConfig)),
			validation.By(validateUniqueNames),
		),
	)
}

// BreakerSettings returns the breaker settings for u, falling back to the
// shared breaker config for anything u leaves unset.
func (c *Config) BreakerSettings(u UpstreamConfig) circuitbreaker.Settings {
	settings := circuitbreaker.Settings{
		FailureThreshold: c.Breaker.FailureThreshold,
		RetryTimePeriod:  parseDuration(c.Breaker.RetryTimePeriod),
	}

	if u.FailureThreshold > 0 {
		settings.FailureThreshold = u.FailureThreshold
	}
	if u.RetryTimePeriod != "" {
		settings.RetryTimePeriod = parseDuration(u.RetryTimePeriod)
	}

	return settings
}

// UpstreamTimeout returns the request timeout for u, 5s when unset.
func (u UpstreamConfig) UpstreamTimeout() time.Duration {
	if u.Timeout == "" {
		return 5 * time.Second
	}
	return parseDuration(u.Timeout)
}

func (s ServerConfig) Timeouts() (read, write, idle time.Duration) {
	return parseDuration(s.ReadTimeout), parseDuration(s.WriteTimeout), parseDuration(s.IdleTimeout)
}

// parseDuration is only used on validated values.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if durationStr == "" {
		return nil
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d < 0 {
		return validation.NewError("validation_negative_duration", "must not be negative")
	}

	return nil
}

func validateUpstreamConfig(value interface{}) error {
	upstream, ok := value.(UpstreamConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an UpstreamConfig")
	}

	return validation.ValidateStruct(&upstream,
		validation.Field(&upstream.Name,
			validation.Required,
			validation.Match(upstreamNamePattern).Error("must be lowercase letters, digits, '-' or '_'"),
			validation.NotIn(ReservedNames...),
		),
		validation.Field(&upstream.URL,
			validation.Required,
			validation.By(validateUpstreamURL),
		),
		validation.Field(&upstream.Timeout, validation.By(validateDuration)),
		validation.Field(&upstream.FailureThreshold, validation.Min(0)),
		validation.Field(&upstream.RetryTimePeriod, validation.By(validateDuration)),
	)
}

func validateUpstreamURL(value interface{}) error {
	upstreamURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	parsedURL, err := url.Parse(upstreamURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

func validateUniqueNames(value interface{}) error {
	upstreams, ok := value.([]UpstreamConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of UpstreamConfig")
	}

	seen := make(map[string]bool, len(upstreams))
	for _, u := range upstreams {
		if seen[u.Name] {
			return validation.NewError("validation_duplicate_name", "upstream names must be unique: "+u.Name)
		}
		seen[u.Name] = true
	}

	return nil
}
