package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bugx/internal/config"
	bugxerrors "bugx/internal/errors"
)

func openMemoryDB(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Driver:       DriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.New().String()),
		MaxOpenConns: 4,
	}
}

func newTestDatastore(t *testing.T) *Datastore {
	t.Helper()
	db, dialect, err := Open(context.Background(), openMemoryDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewDatastore(db, dialect, BootstrapOptions{
		SeedDemoUser: true,
		DemoEmail:    "admin@bugx.local",
		DemoPassword: "s3cret",
		HashCost:     bcrypt.MinCost,
	}, nil)
}

func TestRebind(t *testing.T) {
	pg, err := DialectFor(DriverPostgres)
	require.NoError(t, err)
	lite, err := DialectFor(DriverSQLite)
	require.NoError(t, err)

	query := "INSERT INTO t (a, b) VALUES (?, ?)"
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", pg.Rebind(query))
	assert.Equal(t, query, lite.Rebind(query))

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

func TestBootstrap_Idempotent(t *testing.T) {
	ds := newTestDatastore(t)
	ctx := context.Background()

	first, err := Bootstrap(ctx, ds.DB(), ds.Dialect(), BootstrapOptions{SeedDemoUser: true, DemoEmail: "a@b.c", DemoPassword: "pw", HashCost: bcrypt.MinCost})
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "activity_logs"}, first.Tables)
	assert.Len(t, first.Indexes, 4)
	assert.True(t, first.DemoUserCreated)

	second, err := Bootstrap(ctx, ds.DB(), ds.Dialect(), BootstrapOptions{SeedDemoUser: true, DemoEmail: "a@b.c", DemoPassword: "pw", HashCost: bcrypt.MinCost})
	require.NoError(t, err)
	assert.False(t, second.DemoUserCreated)

	var users int
	require.NoError(t, ds.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users))
	assert.Equal(t, 1, users)

	ok, err := VerifyPassword(ctx, ds.DB(), ds.Dialect(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = VerifyPassword(ctx, ds.DB(), ds.Dialect(), "a@b.c", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = VerifyPassword(ctx, ds.DB(), ds.Dialect(), "nobody@b.c", "pw")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBootstrap_RequiresDemoCredentials(t *testing.T) {
	ds := newTestDatastore(t)

	_, err := Bootstrap(context.Background(), ds.DB(), ds.Dialect(), BootstrapOptions{SeedDemoUser: true})

	assert.ErrorContains(t, err, "demo user email and password")
}

func TestDatastore_SetupAndActivity(t *testing.T) {
	ds := newTestDatastore(t)
	ctx := context.Background()

	recorded, err := ds.RecordActivity(ctx, Activity{Action: "workflow_completed"})
	require.NoError(t, err)
	assert.False(t, recorded, "activity is skipped before setup")

	report, err := ds.Setup(ctx)
	require.NoError(t, err)
	assert.True(t, report.DemoUserCreated)
	assert.True(t, ds.Ready())

	recorded, err = ds.RecordActivity(ctx, Activity{
		Action:   "workflow_completed",
		Details:  "Hydration mismatch resolved",
		Metadata: map[string]interface{}{"quality_score": 95.0},
	})
	require.NoError(t, err)
	assert.True(t, recorded)

	activities, err := ds.RecentActivity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "workflow_completed", activities[0].Action)
	assert.Nil(t, activities[0].UserID)
	assert.Equal(t, 95.0, activities[0].Metadata["quality_score"])

	status := ds.Status()
	assert.Equal(t, "ready", status.State)
	assert.Equal(t, 1, status.Attempts)
	require.NotNil(t, status.Report)
}

func TestInitializer_SingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	initializer := NewInitializer(func(ctx context.Context) (Report, error) {
		calls.Add(1)
		<-release
		return Report{Driver: "fake"}, nil
	})

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := initializer.Initialize(context.Background())
			if err == nil && report.Driver != "fake" {
				err = errors.New("unexpected report")
			}
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return initializer.State() == StateInitializing }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateReady, initializer.State())

	_, err := initializer.Initialize(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "ready initializer does not run again")
}

func TestInitializer_RetryAfterBackoff(t *testing.T) {
	var calls atomic.Int32
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	initializer := NewInitializer(func(ctx context.Context) (Report, error) {
		if calls.Add(1) == 1 {
			return Report{}, errors.New("connection refused")
		}
		return Report{Driver: "fake"}, nil
	}, WithRetryBackoff(time.Minute))
	initializer.now = func() time.Time { return now }

	_, err := initializer.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, bugxerrors.ErrServiceUnavailable))
	assert.Equal(t, StateFailed, initializer.State())
	assert.Equal(t, "connection refused", initializer.Status().LastError)

	_, err = initializer.Initialize(context.Background())
	assert.ErrorContains(t, err, "retry in")
	assert.Equal(t, int32(1), calls.Load(), "no attempt during backoff")

	now = now.Add(2 * time.Minute)
	report, err := initializer.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake", report.Driver)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, initializer.Status().Attempts)
}

func TestInitializer_CallerContextDoesNotCancelAttempt(t *testing.T) {
	release := make(chan struct{})
	initializer := NewInitializer(func(ctx context.Context) (Report, error) {
		select {
		case <-release:
			return Report{Driver: "fake"}, nil
		case <-ctx.Done():
			return Report{}, ctx.Err()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := initializer.Initialize(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	report, err := initializer.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake", report.Driver)
}

func TestInitializer_PanicBecomesFailure(t *testing.T) {
	initializer := NewInitializer(func(ctx context.Context) (Report, error) {
		panic("driver exploded")
	})

	_, err := initializer.Initialize(context.Background())

	assert.ErrorContains(t, err, "driver exploded")
	assert.Equal(t, StateFailed, initializer.State())
}
