package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" envDefault:"fern-api"`
	Version                       string   `env:"APP_VERSION" envDefault:"dev"`
	Port                          int      `env:"PORT" envDefault:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" envDefault:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" envDefault:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" envDefault:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" envDefault:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" envDefault:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" envDefault:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" envDefault:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" envDefault:"*" envSeparator:","`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" envDefault:"GET,POST,PUT,DELETE" envSeparator:","`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" envDefault:"5"`

	// Database driver
	DatabaseDriver string `env:"DB_DRIVER" envDefault:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" envDefault:""`
	// Database port
	DatabasePort string `env:"DB_PORT" envDefault:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" envDefault:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" envDefault:""`
	// Database name
	DatabaseName string `env:"DB_NAME" envDefault:"fern"`
	// Database SSL mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" envDefault:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" envDefault:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" envDefault:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" envDefault:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" envDefault:"true"`

	// Auth Enabled - when false, the X-User-ID header identifies the caller (local testing only)
	AuthEnabled bool `env:"AUTH_ENABLED" envDefault:"false"`
	// Auth Issuer URL
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" envDefault:""`
	// Auth Client ID
	AuthClientID string `env:"AUTH_CLIENT_ID" envDefault:""`

	// Redis host
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" envDefault:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" envDefault:"0"`

	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	// Kafka topic for integration lifecycle events
	KafkaIntegrationTopic string `env:"KAFKA_INTEGRATION_TOPIC" envDefault:"leadads-integrations"`
	// Disable event publishing entirely
	KafkaEnabled bool `env:"KAFKA_ENABLED" envDefault:"true"`

	// Meta Graph API base URL
	MetaGraphBaseURL string `env:"META_GRAPH_BASE_URL" envDefault:"https://graph.facebook.com"`
	// Meta consent dialog base URL
	MetaDialogBaseURL string `env:"META_DIALOG_BASE_URL" envDefault:"https://www.facebook.com"`
	// Graph API version used for every call
	MetaGraphVersion string `env:"META_GRAPH_VERSION" envDefault:"v23.0"`
	// Redirect URI registered on the Meta app; must point at GET /api/v1/oauth/callback
	MetaRedirectURI string `env:"META_REDIRECT_URI" envDefault:"http://localhost:3004/api/v1/oauth/callback"`
	// Settings page the callback redirects the browser back to
	MetaSettingsURL string `env:"META_SETTINGS_URL" envDefault:"http://localhost:3000/settings/integrations"`
	// Timeout for a single Graph API call
	MetaRequestTimeout time.Duration `env:"META_REQUEST_TIMEOUT" envDefault:"30s"`
	// Number of pages processed at once during the callback; 1 keeps list order strictly sequential
	MetaPageConcurrency int `env:"META_PAGE_CONCURRENCY" envDefault:"1"`
	// Optional app credentials seeded into the settings store at boot
	MetaAppID     string `env:"META_APP_ID" envDefault:""`
	MetaAppSecret string `env:"META_APP_SECRET" envDefault:""`

	// HMAC secret signing the OAuth state token
	OAuthStateSecret string `env:"OAUTH_STATE_SECRET" envDefault:""`
	// Lifetime of an issued OAuth state token
	OAuthStateTTL time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" envDefault:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" envDefault:"grpc"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" envDefault:"true"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	// a missing .env is normal outside local development
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no safe default.
func (c *Config) Validate() error {
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return fmt.Errorf("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED=true")
	}
	if len(c.OAuthStateSecret) < 32 {
		return fmt.Errorf("OAUTH_STATE_SECRET must be at least 32 characters")
	}
	if c.OAuthStateTTL <= 0 {
		return fmt.Errorf("OAUTH_STATE_TTL must be positive")
	}
	if c.MetaPageConcurrency < 1 {
		return fmt.Errorf("META_PAGE_CONCURRENCY must be at least 1")
	}
	return nil
}

// DatabaseDSN builds the lib/pq connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUserName, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode)
}
