// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/viagem-certa/service-trip/internal/database"
	"github.com/viagem-certa/service-trip/internal/estimate"
)

// EnvPrefix is prepended to every variable. The unprefixed name is read as a
// fallback so shared variables like DB_HOST work unchanged.
const EnvPrefix = "TRIP"

// ConfigError describes one invalid setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Message)
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// RedisConfig holds the cache backend settings. An empty Addr disables caching.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	GeocodeTTL time.Duration
	RouteTTL   time.Duration
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// EstimateConfig holds the estimation engine settings.
type EstimateConfig struct {
	Provider        string
	NominatimURL    string
	OSRMURL         string
	UserAgent       string
	GoogleAPIKey    string
	RequestTimeout  time.Duration
	InlineTimeout   time.Duration
	RunTimeout      time.Duration
	Debounce        time.Duration
	DisplayDuration time.Duration
}

// ServiceConfig holds all configuration for the trip service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	MigrationsPath string
	CORSOrigins    []string
	DBConfig       database.PostgresConfig
	KafkaConfig    KafkaConfig
	RedisConfig    RedisConfig
	EstimateConfig EstimateConfig
}

var defaults = map[string]any{
	"SERVICE_PORT":             "8080",
	"APP_ENV":                  "development",
	"MIGRATIONS_PATH":          "migrations",
	"CORS_ORIGINS":             "",
	"DB_HOST":                  "localhost",
	"DB_PORT":                  "5432",
	"DB_USER":                  "postgres",
	"DB_PASSWORD":              "postgres",
	"DB_NAME":                  "viagem_certa",
	"DB_SSLMODE":               "disable",
	"KAFKA_BROKERS":            "localhost:9092",
	"KAFKA_GROUP_PREFIX":       "viagem-certa-",
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"GEOCODE_CACHE_TTL":        "720h",
	"ROUTE_CACHE_TTL":          "168h",
	"GEOCODER_PROVIDER":        "nominatim",
	"NOMINATIM_URL":            estimate.DefaultNominatimURL,
	"OSRM_URL":                 estimate.DefaultOSRMURL,
	"ESTIMATE_USER_AGENT":      estimate.DefaultUserAgent,
	"GOOGLE_MAPS_API_KEY":      "",
	"ESTIMATE_REQUEST_TIMEOUT": "10s",
	"ESTIMATE_INLINE_TIMEOUT":  "25s",
	"ESTIMATE_RUN_TIMEOUT":     "10s",
	"ESTIMATE_DEBOUNCE":        "1000ms",
	"ESTIMATE_DISPLAY_TIME":    "3000ms",
}

// Load reads a .env file when present, then the environment.
func Load() (*ServiceConfig, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*ServiceConfig, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, EnvPrefix+"_"+key, key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := &ServiceConfig{
		Port:           ":" + strings.TrimPrefix(v.GetString("SERVICE_PORT"), ":"),
		AppEnv:         v.GetString("APP_ENV"),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		RedisConfig: RedisConfig{
			Addr:       v.GetString("REDIS_ADDR"),
			Password:   v.GetString("REDIS_PASSWORD"),
			DB:         v.GetInt("REDIS_DB"),
			GeocodeTTL: v.GetDuration("GEOCODE_CACHE_TTL"),
			RouteTTL:   v.GetDuration("ROUTE_CACHE_TTL"),
		},
		EstimateConfig: EstimateConfig{
			Provider:        strings.ToLower(v.GetString("GEOCODER_PROVIDER")),
			NominatimURL:    v.GetString("NOMINATIM_URL"),
			OSRMURL:         v.GetString("OSRM_URL"),
			UserAgent:       v.GetString("ESTIMATE_USER_AGENT"),
			GoogleAPIKey:    v.GetString("GOOGLE_MAPS_API_KEY"),
			RequestTimeout:  v.GetDuration("ESTIMATE_REQUEST_TIMEOUT"),
			InlineTimeout:   v.GetDuration("ESTIMATE_INLINE_TIMEOUT"),
			RunTimeout:      v.GetDuration("ESTIMATE_RUN_TIMEOUT"),
			Debounce:        v.GetDuration("ESTIMATE_DEBOUNCE"),
			DisplayDuration: v.GetDuration("ESTIMATE_DISPLAY_TIME"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *ServiceConfig) Validate() error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, &ConfigError{Field: field, Message: msg})
	}

	if c.Port == ":" {
		add("SERVICE_PORT", "cannot be empty")
	}
	if c.DBConfig.Host == "" {
		add("DB_HOST", "cannot be empty")
	}
	if c.DBConfig.DBName == "" {
		add("DB_NAME", "cannot be empty")
	}
	if len(c.KafkaConfig.Brokers) == 0 {
		add("KAFKA_BROKERS", "at least one broker is required")
	}

	e := c.EstimateConfig
	switch e.Provider {
	case "nominatim":
		if !isHTTPURL(e.NominatimURL) {
			add("NOMINATIM_URL", "must be an http(s) URL")
		}
	case "google":
		if e.GoogleAPIKey == "" {
			add("GOOGLE_MAPS_API_KEY", "required when GEOCODER_PROVIDER=google")
		}
	default:
		add("GEOCODER_PROVIDER", "must be nominatim or google")
	}
	if !isHTTPURL(e.OSRMURL) {
		add("OSRM_URL", "must be an http(s) URL")
	}
	if e.RequestTimeout <= 0 {
		add("ESTIMATE_REQUEST_TIMEOUT", "must be positive")
	}
	if e.InlineTimeout <= 0 {
		add("ESTIMATE_INLINE_TIMEOUT", "must be positive")
	}
	if e.RunTimeout <= 0 {
		add("ESTIMATE_RUN_TIMEOUT", "must be positive")
	}
	if e.Debounce <= 0 {
		add("ESTIMATE_DEBOUNCE", "must be positive")
	}
	if e.DisplayDuration <= 0 {
		add("ESTIMATE_DISPLAY_TIME", "must be positive")
	}

	if c.RedisConfig.Enabled() {
		if c.RedisConfig.GeocodeTTL <= 0 {
			add("GEOCODE_CACHE_TTL", "must be positive")
		}
		if c.RedisConfig.RouteTTL <= 0 {
			add("ROUTE_CACHE_TTL", "must be positive")
		}
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
