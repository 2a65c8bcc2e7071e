package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Bank      BankConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
	Mode string `env:"SERVER_MODE" envDefault:"release"` // "debug" or "release"
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Driver     string `env:"DB_DRIVER" envDefault:"postgres"` // "postgres" or "sqlite"
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       int    `env:"DB_PORT" envDefault:"5432"`
	Username   string `env:"DB_USERNAME" envDefault:"postgres"`
	Password   string `env:"DB_PASSWORD" envDefault:"password"`
	DBName     string `env:"DB_NAME" envDefault:"banking"`
	SSLMode    string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath string `env:"DB_SQLITE_PATH" envDefault:"banking.db"`
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET" envDefault:"your-secret-key-here"`
	// HostKeyHash is the bcrypt hash of the key the host bridge presents
	// when requesting tokens.
	HostKeyHash string `env:"HOST_KEY_HASH"`
	TokenHours  int    `env:"TOKEN_HOURS" envDefault:"24"`
}

// BankConfig holds the banking rules that are tunable per server
type BankConfig struct {
	AccessPageSize      int `env:"BANK_ACCESS_PAGE_SIZE" envDefault:"7"`
	TransactionPageSize int `env:"BANK_TRANSACTION_PAGE_SIZE" envDefault:"10"`
	DashboardLimit      int `env:"BANK_DASHBOARD_TRANSACTIONS" envDefault:"5"`
	// Policy overrides the minimum role per operation, e.g. "deposit=manager,withdraw=owner".
	Policy map[string]string `env:"BANK_POLICY" envSeparator:"," envKeyValSeparator:"="`
}

// KafkaConfig holds the event publisher configuration
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"bank.transactions"`
}

// TelemetryConfig holds the tracing configuration
type TelemetryConfig struct {
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"banking-server"`
}

// GetDSN returns the database connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == DriverSQLite {
		return c.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from a .env file (if present) and
// environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return ParseEnv()
}

// ParseEnv parses the configuration from environment variables only
func ParseEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if cfg.Database.Driver != DriverPostgres && cfg.Database.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if cfg.Bank.AccessPageSize <= 0 || cfg.Bank.TransactionPageSize <= 0 || cfg.Bank.DashboardLimit <= 0 {
		return nil, errors.New("bank page sizes must be positive")
	}

	return &cfg, nil
}
