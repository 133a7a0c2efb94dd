package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bugx/internal/circuitbreaker"
	"bugx/internal/logging"
	"bugx/internal/retry"
)

func sampleNotification(component string) Notification {
	return Notification{
		ID:           "n-1",
		Type:         TypeCriticalAntiPattern,
		SessionID:    "s-1",
		Developer:    "ana",
		Component:    component,
		ErrorMessage: "Hydration failed",
		AntiPatterns: []AntiPatternSummary{{ID: "random-in-state-init", Severity: "critical", Occurrences: 1}},
		Message:      "Critical anti-pattern detected",
		Timestamp:    time.Now(),
	}
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisNotifier(t *testing.T) {
	pub := &fakePublisher{}
	notifier := NewRedisNotifier(pub, "bugx:team-notifications")

	require.NoError(t, notifier.Notify(context.Background(), sampleNotification("Card")))

	assert.Equal(t, "bugx:team-notifications", pub.channel)
	var decoded Notification
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, "s-1", decoded.SessionID)
	assert.Equal(t, "random-in-state-init", decoded.AntiPatterns[0].ID)

	pub.err = errors.New("connection refused")
	err := notifier.Notify(context.Background(), sampleNotification("Card"))
	assert.ErrorContains(t, err, "connection refused")
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	notifier := NewLogNotifier(logging.NewFromZap(zap.New(core)))

	require.NoError(t, notifier.Notify(context.Background(), sampleNotification("Card")))

	entries := logs.FilterMessage("Team notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "s-1", entries[0].ContextMap()["session_id"])
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	var delivered []string
	failing := NotifierFunc(func(context.Context, Notification) error {
		return errors.New("sink down")
	})
	recording := NotifierFunc(func(_ context.Context, n Notification) error {
		delivered = append(delivered, n.ID)
		return nil
	})

	err := Multi{failing, nil, recording}.Notify(context.Background(), sampleNotification(""))

	assert.ErrorContains(t, err, "sink down")
	assert.Equal(t, []string{"n-1"}, delivered)
	assert.NoError(t, Multi{}.Notify(context.Background(), sampleNotification("")))
}

func readNotification(t *testing.T, conn *websocket.Conn) Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var n Notification
	require.NoError(t, conn.ReadJSON(&n))
	return n
}

func TestHub_BroadcastAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?component=ScholarshipCard"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	welcome := readNotification(t, conn)
	assert.Equal(t, TypeConnection, welcome.Type)
	assert.Equal(t, 1, hub.ClientCount())

	require.NoError(t, hub.Notify(ctx, sampleNotification("ScholarshipCard")))
	got := readNotification(t, conn)
	assert.Equal(t, TypeCriticalAntiPattern, got.Type)
	assert.Equal(t, "ScholarshipCard", got.Component)

	other := sampleNotification("LoginForm")
	other.ID = "filtered"
	require.NoError(t, hub.Notify(ctx, other))
	broadcast := sampleNotification("")
	broadcast.ID = "everyone"
	require.NoError(t, hub.Notify(ctx, broadcast))
	assert.Equal(t, "everyone", readNotification(t, conn).ID, "notifications for other components are filtered")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestGuarded_RetriesThenDelivers(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection reset")}
	attempts := 0
	sink := NotifierFunc(func(ctx context.Context, n Notification) error {
		attempts++
		if attempts == 2 {
			pub.err = nil
		}
		return NewRedisNotifier(pub, "bugx:team").Notify(ctx, n)
	})

	guarded := NewGuarded("redis", sink, WithRetryConfig(retry.Config{MaxAttempts: 3}))
	require.NoError(t, guarded.Notify(context.Background(), sampleNotification("Card")))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "bugx:team", pub.channel)
	assert.Equal(t, int64(0), guarded.Stats().Failures)
}

func TestGuarded_OpensCircuit(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	calls := 0
	sink := NotifierFunc(func(context.Context, Notification) error {
		calls++
		return errors.New("connection refused")
	})

	guarded := NewGuarded("redis", sink,
		WithRetryConfig(retry.Config{MaxAttempts: 1}),
		WithBreakerConfig(circuitbreaker.Config{FailureThreshold: 2, OpenTimeout: time.Hour}),
		WithGuardLogger(logging.NewFromZap(zap.New(core))))
	ctx := context.Background()

	require.NoError(t, guarded.Check(ctx))
	for i := 0; i < 2; i++ {
		assert.Error(t, guarded.Notify(ctx, sampleNotification("Card")))
	}

	err := guarded.Notify(ctx, sampleNotification("Card"))
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Contains(t, err.Error(), "redis sink")
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, guarded.Check(ctx), circuitbreaker.ErrOpen)
	assert.Equal(t, 1, logs.FilterMessage("Notification sink circuit changed").Len())
}

func TestMulti_GuardedSinkDoesNotBlockOthers(t *testing.T) {
	var delivered []string
	local := NotifierFunc(func(_ context.Context, n Notification) error {
		delivered = append(delivered, n.SessionID)
		return nil
	})
	broken := NewGuarded("redis", NotifierFunc(func(context.Context, Notification) error {
		return errors.New("down")
	}), WithRetryConfig(retry.Config{MaxAttempts: 1}))

	err := Multi{broken, local}.Notify(context.Background(), sampleNotification("Card"))
	assert.Error(t, err)
	assert.Equal(t, []string{"s-1"}, delivered)
}
