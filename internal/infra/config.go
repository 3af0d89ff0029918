package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverDynamo   = "dynamodb"
	DriverMemory   = "memory"
)

const insecureJWTSecret = "change-me-in-production"

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Document store
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"battlegrounds"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"battlegrounds"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"tournaments"`
	PGMaxConns  int32  `env:"PG_MAX_CONNS" envDefault:"20"`

	// DynamoDB
	DynamoTable    string `env:"DYNAMO_TABLE" envDefault:"tournament_documents"`
	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	DynamoEndpoint string `env:"DYNAMO_ENDPOINT"`

	// JWT
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTUserExpiry  time.Duration `env:"JWT_USER_EXPIRY" envDefault:"24h"`
	JWTAdminExpiry time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Server
	APIPort            int      `env:"API_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Kafka / outbox relay
	KafkaBrokers       string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// Tournament lifecycle
	StatusEvalInterval time.Duration `env:"STATUS_EVAL_INTERVAL" envDefault:"1m"`
	MatchDuration      time.Duration `env:"MATCH_DURATION" envDefault:"2h"`
	ScheduleTimezone   string        `env:"SCHEDULE_TIMEZONE" envDefault:"UTC"`

	// Join guards
	JoinRateLimit  int           `env:"JOIN_RATE_LIMIT" envDefault:"5"`
	JoinRateWindow time.Duration `env:"JOIN_RATE_WINDOW" envDefault:"1m"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects inconsistent settings and insecure secrets.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass the secret checks (local dev only).
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverDynamo, DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER %q is not one of postgres, dynamodb, memory", c.StoreDriver)
	}
	if c.StatusEvalInterval <= 0 {
		return fmt.Errorf("STATUS_EVAL_INTERVAL must be positive")
	}
	if c.MatchDuration <= 0 {
		return fmt.Errorf("MATCH_DURATION must be positive")
	}
	if c.OutboxPollInterval <= 0 || c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL and OUTBOX_BATCH_SIZE must be positive")
	}
	if c.StoreDriver == DriverPostgres && c.PGMaxConns <= 0 {
		return fmt.Errorf("PG_MAX_CONNS must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == insecureJWTSecret {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// Location resolves SCHEDULE_TIMEZONE, the zone tournament times are written in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_TIMEZONE %q: %w", c.ScheduleTimezone, err)
	}
	return loc, nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
