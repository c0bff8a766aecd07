package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server      ServerConfig
	App         AppConfig
	Auth        AuthConfig
	Cache       CacheConfig
	Database    DatabaseConfig
	Classifier  ClassifierConfig
	Storage     StorageConfig
	Rules       RulesConfig
	RateLimit   RateLimitConfig
	Leaderboard LeaderboardConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxUploadBytes  int64         `envconfig:"SERVER_MAX_UPLOAD_BYTES" default:"10485760"`
	AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`

	// TrustProxy takes the client address from X-Real-IP / X-Forwarded-For.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `envconfig:"SERVER_TRUST_PROXY" default:"false"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"drinkpoint-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	NodeID      int64  `envconfig:"APP_NODE_ID" default:"1"`
}

// AuthConfig holds identity token and admin session settings.
type AuthConfig struct {
	JWTSecret   string        `envconfig:"AUTH_JWT_SECRET" default:""`
	JWTIssuer   string        `envconfig:"AUTH_JWT_ISSUER" default:""`
	JWTAudience string        `envconfig:"AUTH_JWT_AUDIENCE" default:""`
	LoginKey    string        `envconfig:"LOGIN_KEY" default:""` // Admin dashboard login key
	TokenTTL    time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"8h"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost      string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort      int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"drinkpoint:"`
}

// DatabaseConfig holds the points database settings.
type DatabaseConfig struct {
	Type string `envconfig:"DB_TYPE" default:"sqlite"` // sqlite, mysql or postgres
	Path string `envconfig:"DB_PATH" default:"./data/drinkpoint.db"`
	// MySQL / PostgreSQL settings
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"0"`
	Name     string `envconfig:"DB_NAME" default:"drinkpoint"`
	User     string `envconfig:"DB_USER" default:"drinkpoint"`
	Password string `envconfig:"DB_PASS" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

// ClassifierConfig holds vision model settings.
type ClassifierConfig struct {
	APIKey       string        `envconfig:"CLASSIFIER_API_KEY" default:""`
	BaseURL      string        `envconfig:"CLASSIFIER_BASE_URL" default:""`
	Model        string        `envconfig:"CLASSIFIER_MODEL" default:"gpt-4o-mini"`
	Timeout      time.Duration `envconfig:"CLASSIFIER_TIMEOUT" default:"30s"`
	TargetBrands []string      `envconfig:"CLASSIFIER_TARGET_BRANDS" default:""`
	CacheTTL     time.Duration `envconfig:"CLASSIFIER_CACHE_TTL" default:"24h"`
}

// StorageConfig holds capture image storage settings.
type StorageConfig struct {
	Type            string `envconfig:"STORAGE_TYPE" default:"memory"` // memory or oss
	Endpoint        string `envconfig:"OSS_ENDPOINT" default:""`
	Region          string `envconfig:"OSS_REGION" default:""`
	Bucket          string `envconfig:"OSS_BUCKET" default:""`
	AccessKeyID     string `envconfig:"OSS_ACCESS_KEY_ID" default:""`
	AccessKeySecret string `envconfig:"OSS_ACCESS_KEY_SECRET" default:""`
	PublicBaseURL   string `envconfig:"OSS_PUBLIC_BASE_URL" default:""`
}

// RulesConfig holds point/badge rule settings.
type RulesConfig struct {
	Path     string `envconfig:"RULES_PATH" default:""`
	Watch    bool   `envconfig:"RULES_WATCH" default:"true"`
	Timezone string `envconfig:"RULES_TIMEZONE" default:"Asia/Tokyo"`
}

// RateLimitConfig holds per-client limits for capture and login routes.
type RateLimitConfig struct {
	RPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"1"`
	Burst int     `envconfig:"RATE_LIMIT_BURST" default:"5"`
}

// LeaderboardConfig holds weekly leaderboard settings.
type LeaderboardConfig struct {
	RefreshInterval time.Duration `envconfig:"LEADERBOARD_REFRESH_INTERVAL" default:"1m"`
	Size            int           `envconfig:"LEADERBOARD_SIZE" default:"50"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DSN returns the driver-specific data source name for the configured type.
func (d *DatabaseConfig) DSN() string {
	switch d.Type {
	case "mysql":
		port := d.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4",
			d.User, d.Password, d.Host, port, d.Name)
	case "postgres":
		port := d.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     fmt.Sprintf("%s:%d", d.Host, port),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
		}
		return u.String()
	default:
		return d.Path
	}
}

// Location resolves the configured timezone.
func (r *RulesConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	var problems []string
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "AUTH_JWT_SECRET is required")
	}
	switch c.Database.Type {
	case "sqlite", "mysql", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("DB_TYPE %q is not one of sqlite, mysql, postgres", c.Database.Type))
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("CACHE_TYPE %q is not one of memory, redis", c.Cache.Type))
	}
	switch c.Storage.Type {
	case "memory":
	case "oss":
		if c.Storage.Bucket == "" || c.Storage.Region == "" {
			problems = append(problems, "OSS_BUCKET and OSS_REGION are required for STORAGE_TYPE=oss")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_TYPE %q is not one of memory, oss", c.Storage.Type))
	}
	if c.IsProductionLike() && c.Classifier.APIKey == "" {
		problems = append(problems, "CLASSIFIER_API_KEY is required outside development")
	}
	if _, err := c.Rules.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("RULES_TIMEZONE: %v", err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsProductionLike reports whether the environment expects real upstreams.
func (c *Config) IsProductionLike() bool {
	return !c.App.IsDevelopment() && c.App.Environment != "test"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
