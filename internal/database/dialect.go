// Package database bootstraps the application datastore (users and
// activity_logs), guards the bootstrap with a single-flight initialiser and
// records workflow activity.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"bugx/internal/config"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Dialect holds the SQL differences between the supported drivers
type Dialect struct {
	Driver string
	schema []statement
}

type statement struct {
	kind string // "table" or "index"
	name string
	sql  string
}

// DialectFor returns the dialect of driver
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return Dialect{Driver: driver, schema: postgresSchema}, nil
	case DriverSQLite:
		return Dialect{Driver: driver, schema: sqliteSchema}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Rebind rewrites ? placeholders to the driver's bind variables
func (d Dialect) Rebind(query string) string {
	if d.Driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open connects to the configured datastore and pings it
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open database connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, dialect, nil
}

var postgresSchema = []statement{
	{kind: "table", name: "users", sql: `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL DEFAULT 'user',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{kind: "table", name: "activity_logs", sql: `
	CREATE TABLE IF NOT EXISTS activity_logs (
		id SERIAL PRIMARY KEY,
		user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		action VARCHAR(100) NOT NULL,
		details TEXT,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{kind: "index", name: "idx_users_email", sql: `CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`},
	{kind: "index", name: "idx_activity_logs_user_id", sql: `CREATE INDEX IF NOT EXISTS idx_activity_logs_user_id ON activity_logs(user_id)`},
	{kind: "index", name: "idx_activity_logs_action", sql: `CREATE INDEX IF NOT EXISTS idx_activity_logs_action ON activity_logs(action)`},
	{kind: "index", name: "idx_activity_logs_created_at", sql: `CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at)`},
}

var sqliteSchema = []statement{
	{kind: "table", name: "users", sql: `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`},
	{kind: "table", name: "activity_logs", sql: `
	CREATE TABLE IF NOT EXISTS activity_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		action TEXT NOT NULL,
		details TEXT,
		metadata TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`},
	{kind: "index", name: "idx_users_email", sql: `CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`},
	{kind: "index", name: "idx_activity_logs_user_id", sql: `CREATE INDEX IF NOT EXISTS idx_activity_logs_user_id ON activity_logs(user_id)`},
	{kind: "index", name: "idx_activity_logs_action", sql: `CREATE INDEX IF NOT EXISTS idx_activity_logs_action ON activity_logs(action)`},
	{kind: "index", name: "idx_activity_logs_created_at", sql: `CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at)`},
}
