package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SetupUsage is returned by GET on the setup endpoint
const SetupUsage = `Database setup endpoint

POST this endpoint to create the users and activity_logs tables and their
indexes. The operation is idempotent: existing tables are left untouched and
the demo admin user is only inserted when missing.`

// BootstrapOptions controls the demo user seeding
type BootstrapOptions struct {
	SeedDemoUser bool
	DemoEmail    string
	DemoPassword string
	// HashCost defaults to bcrypt.DefaultCost
	HashCost int
}

// Report describes what a bootstrap did
type Report struct {
	Driver          string    `json:"driver"`
	Tables          []string  `json:"tables"`
	Indexes         []string  `json:"indexes"`
	DemoUserCreated bool      `json:"demo_user_created"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Bootstrap creates the schema and seeds the demo user. Every statement is
// idempotent, so running it again is harmless.
func Bootstrap(ctx context.Context, db *sql.DB, dialect Dialect, opts BootstrapOptions) (Report, error) {
	report := Report{
		Driver:  dialect.Driver,
		Tables:  make([]string, 0),
		Indexes: make([]string, 0),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Report{}, fmt.Errorf("failed to begin bootstrap transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range dialect.schema {
		if _, err := tx.ExecContext(ctx, stmt.sql); err != nil {
			return Report{}, fmt.Errorf("failed to create %s %s: %w", stmt.kind, stmt.name, err)
		}
		if stmt.kind == "table" {
			report.Tables = append(report.Tables, stmt.name)
		} else {
			report.Indexes = append(report.Indexes, stmt.name)
		}
	}

	if opts.SeedDemoUser {
		created, err := seedDemoUser(ctx, tx, dialect, opts)
		if err != nil {
			return Report{}, err
		}
		report.DemoUserCreated = created
	}

	if err := tx.Commit(); err != nil {
		return Report{}, fmt.Errorf("failed to commit bootstrap: %w", err)
	}

	report.CompletedAt = time.Now().UTC()
	return report, nil
}

func seedDemoUser(ctx context.Context, tx *sql.Tx, dialect Dialect, opts BootstrapOptions) (bool, error) {
	email := strings.TrimSpace(opts.DemoEmail)
	if email == "" || opts.DemoPassword == "" {
		return false, fmt.Errorf("demo user email and password are required to seed the demo user")
	}

	cost := opts.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.DemoPassword), cost)
	if err != nil {
		return false, fmt.Errorf("failed to hash demo user password: %w", err)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, dialect.Rebind(`
		INSERT INTO users (email, name, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING`),
		email, "Demo Admin", string(hash), "admin", now, now)
	if err != nil {
		return false, fmt.Errorf("failed to seed demo user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read demo user insert result: %w", err)
	}
	return affected > 0, nil
}

// VerifyPassword checks password against the stored hash of email
func VerifyPassword(ctx context.Context, db *sql.DB, dialect Dialect, email, password string) (bool, error) {
	var hash string
	err := db.QueryRowContext(ctx, dialect.Rebind(`SELECT password_hash FROM users WHERE email = ?`), email).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load user: %w", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}
