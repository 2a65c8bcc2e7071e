package config

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
	"go.uber.org/zap"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// Queries are written with '?' placeholders and rebound per driver
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	if cfg.Database.Driver == DriverSQLite {
		// SQLite has a single writer, and an in-memory database lives only as
		// long as its one connection. Transactions are therefore serialized;
		// balance races only really run against Postgres (go test -tags postgres).
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	// Create tables if they don't exist
	if err := createTables(db, cfg.Database.Driver, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB, driver string, logger *zap.Logger) error {
	identity := "BIGSERIAL PRIMARY KEY"
	if driver == DriverSQLite {
		identity = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	tables := []string{
		// Mirror of the host's character table
		`CREATE TABLE IF NOT EXISTS characters (
			char_id BIGINT PRIMARY KEY,
			state_id VARCHAR(20) UNIQUE NOT NULL,
			first_name VARCHAR(50) NOT NULL,
			last_name VARCHAR(50) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id {{identity}},
			label VARCHAR(50),
			owner BIGINT,
			group_name VARCHAR(20),
			balance BIGINT NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			type VARCHAR(10) NOT NULL DEFAULT 'personal',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts_access (
			account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			char_id BIGINT NOT NULL,
			role VARCHAR(12) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (account_id, char_id)
		)`,
		// Ledger rows keep plain account ids so they outlive deleted accounts
		`CREATE TABLE IF NOT EXISTS accounts_transactions (
			id {{identity}},
			reference VARCHAR(64) UNIQUE NOT NULL,
			actor_id BIGINT,
			from_id BIGINT,
			to_id BIGINT,
			amount BIGINT NOT NULL,
			from_balance BIGINT,
			to_balance BIGINT,
			date TIMESTAMP NOT NULL,
			reason VARCHAR(255) NOT NULL DEFAULT ''
		)`,
	}

	for _, stmt := range tables {
		if _, err := db.Exec(strings.ReplaceAll(stmt, "{{identity}}", identity)); err != nil {
			return err
		}
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner)",
		"CREATE INDEX IF NOT EXISTS idx_accounts_access_char ON accounts_access(char_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_from ON accounts_transactions(from_id, date)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_to ON accounts_transactions(to_id, date)",
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			// Indexes are not critical
			logger.Warn("failed to create index", zap.String("statement", idx), zap.Error(err))
		}
	}

	return nil
}
