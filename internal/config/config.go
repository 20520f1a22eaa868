package config

import (
	"fmt"
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
	Server       ServerConfig
	App          AppConfig
	Store        StoreConfig
	Notification NotificationConfig
	Cache        CacheConfig
	Gateway      GatewayConfig
	Presence     PresenceConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"bazaar-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// APIKeys are the keys a host may present in X-API-Key. Empty disables the check.
	APIKeys []string `envconfig:"API_KEYS"`
}

// StoreConfig selects the listing database.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, postgres or mysql
	Path string `envconfig:"STORE_PATH" default:"./data/bazaar.db"`

	// PostgreSQL settings
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresName     string `envconfig:"POSTGRES_DB" default:"bazaar"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASS" default:""`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	// MySQL settings
	MySQLHost     string `envconfig:"MYSQL_HOST" default:"localhost"`
	MySQLPort     int    `envconfig:"MYSQL_PORT" default:"3306"`
	MySQLName     string `envconfig:"MYSQL_DB" default:"bazaar"`
	MySQLUser     string `envconfig:"MYSQL_USER" default:"root"`
	MySQLPassword string `envconfig:"MYSQL_PASS" default:""`
}

// NotificationConfig holds mailbox and delivery settings.
type NotificationConfig struct {
	Store string `envconfig:"NOTIFICATION_STORE" default:"sql"` // sql or mongodb

	MongoURI        string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"bazaar"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"notifications"`

	SweepInterval time.Duration `envconfig:"NOTIFICATION_SWEEP_INTERVAL" default:"24h"`
	SweepDelay    time.Duration `envconfig:"NOTIFICATION_SWEEP_DELAY" default:"1m"`

	Workers   int `envconfig:"NOTIFICATION_WORKERS" default:"4"`
	QueueSize int `envconfig:"NOTIFICATION_QUEUE_SIZE" default:"256"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// GatewayConfig selects the ledger and inventory backends.
type GatewayConfig struct {
	Type         string        `envconfig:"GATEWAY_TYPE" default:"memory"` // memory or http
	LedgerURL    string        `envconfig:"LEDGER_URL" default:""`
	InventoryURL string        `envconfig:"INVENTORY_URL" default:""`
	APIKey       string        `envconfig:"GATEWAY_API_KEY" default:""`
	Timeout      time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"5s"`

	// Development backends
	StartingBalance   string `envconfig:"DEV_STARTING_BALANCE" default:"100.00"`
	InventoryCapacity int    `envconfig:"DEV_INVENTORY_CAPACITY" default:"2304"`
}

// PresenceConfig holds session tracking settings.
type PresenceConfig struct {
	Type       string        `envconfig:"PRESENCE_TYPE" default:"memory"` // memory or redis
	SessionTTL time.Duration `envconfig:"PRESENCE_SESSION_TTL" default:"5m"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.PostgresUser, s.PostgresPassword, s.PostgresHost, s.PostgresPort, s.PostgresName, s.PostgresSSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.MySQLUser, s.MySQLPassword, s.MySQLHost, s.MySQLPort, s.MySQLName)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c *Config) NeedsRedis() bool {
	return c.Cache.Type == "redis" || c.Presence.Type == "redis"
}

// Validate rejects unknown backend names and incomplete backend settings.
func (c *Config) Validate() error {
	var problems []string
	oneOf := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		problems = append(problems, fmt.Sprintf("%s must be one of %s, got %q", field, strings.Join(allowed, "|"), value))
	}

	oneOf("STORE_TYPE", c.Store.Type, "sqlite", "postgres", "mysql")
	oneOf("NOTIFICATION_STORE", c.Notification.Store, "sql", "mongodb")
	oneOf("CACHE_TYPE", c.Cache.Type, "memory", "redis")
	oneOf("GATEWAY_TYPE", c.Gateway.Type, "memory", "http")
	oneOf("PRESENCE_TYPE", c.Presence.Type, "memory", "redis")

	if c.Notification.Store == "mongodb" && c.Notification.MongoURI == "" {
		problems = append(problems, "MONGODB_URI is required when NOTIFICATION_STORE=mongodb")
	}
	if c.Gateway.Type == "http" && (c.Gateway.LedgerURL == "" || c.Gateway.InventoryURL == "") {
		problems = append(problems, "LEDGER_URL and INVENTORY_URL are required when GATEWAY_TYPE=http")
	}
	if c.Notification.SweepInterval <= 0 {
		problems = append(problems, "NOTIFICATION_SWEEP_INTERVAL must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
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
