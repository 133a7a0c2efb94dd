package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bugx/internal/config"
	"bugx/internal/logging"
)

// Activity is one activity_logs row
type Activity struct {
	ID        int64                  `json:"id"`
	UserID    *int64                 `json:"user_id,omitempty"`
	Action    string                 `json:"action"`
	Details   string                 `json:"details"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Datastore couples a database handle with its single-flight bootstrap
type Datastore struct {
	db          *sql.DB
	dialect     Dialect
	initializer *Initializer
	logger      logging.Logger
}

// NewDatastore wraps db. The bootstrap runs on the first Setup call.
func NewDatastore(db *sql.DB, dialect Dialect, opts BootstrapOptions, logger logging.Logger, initOpts ...InitializerOption) *Datastore {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	ds := &Datastore{db: db, dialect: dialect, logger: logger}
	initOpts = append([]InitializerOption{WithInitLogger(logger)}, initOpts...)
	ds.initializer = NewInitializer(func(ctx context.Context) (Report, error) {
		return Bootstrap(ctx, db, dialect, opts)
	}, initOpts...)
	return ds
}

// OpenDatastore opens the configured database and wraps it
func OpenDatastore(ctx context.Context, cfg config.DatabaseConfig, logger logging.Logger) (*Datastore, error) {
	db, dialect, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := BootstrapOptions{
		SeedDemoUser: cfg.SeedDemoUser,
		DemoEmail:    cfg.DemoUserEmail,
		DemoPassword: cfg.DemoUserPassword,
	}
	return NewDatastore(db, dialect, opts, logger, WithRetryBackoff(cfg.InitRetryBackoffDuration())), nil
}

// Setup bootstraps the schema once; concurrent callers share the attempt
func (d *Datastore) Setup(ctx context.Context) (Report, error) {
	return d.initializer.Initialize(ctx)
}

// Ready reports whether the schema is in place
func (d *Datastore) Ready() bool {
	return d.initializer.Ready()
}

// Status returns the initializer status
func (d *Datastore) Status() Status {
	return d.initializer.Status()
}

// Dialect returns the SQL dialect in use
func (d *Datastore) Dialect() Dialect {
	return d.dialect
}

// DB returns the underlying handle
func (d *Datastore) DB() *sql.DB {
	return d.db
}

// Close closes the database handle
func (d *Datastore) Close() error {
	return d.db.Close()
}

// RecordActivity inserts an activity row. It returns false without an error
// when the datastore is not ready yet.
func (d *Datastore) RecordActivity(ctx context.Context, activity Activity) (bool, error) {
	if !d.Ready() {
		d.logger.Debug("Activity log skipped, datastore not ready", "action", activity.Action)
		return false, nil
	}

	var metadata interface{}
	if len(activity.Metadata) > 0 {
		encoded, err := json.Marshal(activity.Metadata)
		if err != nil {
			return false, fmt.Errorf("failed to encode activity metadata: %w", err)
		}
		metadata = string(encoded)
	}
	createdAt := activity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := d.db.ExecContext(ctx, d.dialect.Rebind(`
		INSERT INTO activity_logs (user_id, action, details, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		activity.UserID, activity.Action, activity.Details, metadata, createdAt)
	if err != nil {
		return false, fmt.Errorf("failed to record activity: %w", err)
	}
	return true, nil
}

// RecentActivity returns up to limit activity rows, newest first
func (d *Datastore) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.db.QueryContext(ctx, d.dialect.Rebind(`
		SELECT id, user_id, action, details, metadata, created_at
		FROM activity_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	activities := make([]Activity, 0)
	for rows.Next() {
		var (
			a        Activity
			userID   sql.NullInt64
			details  sql.NullString
			metadata sql.NullString
		)
		if err := rows.Scan(&a.ID, &userID, &a.Action, &details, &metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if userID.Valid {
			id := userID.Int64
			a.UserID = &id
		}
		a.Details = details.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode activity metadata: %w", err)
			}
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity: %w", err)
	}
	return activities, nil
}
