package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"agrimarket/internal/metrics"
	"agrimarket/models"
)

func TestInboxUnreachableCountsError(t *testing.T) {
	m := metrics.NewIsolated("test")
	client := NewClient(Config{Addr: "127.0.0.1:1"})
	inbox := NewInbox(client, time.Second, m.InboxCache)
	t.Cleanup(func() { _ = inbox.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, ok, err := inbox.GetInbox(ctx, "alice")
	require.Error(t, err)
	require.False(t, ok)
	require.Equal(t, 1.0, testutil.ToFloat64(m.InboxCache.WithLabelValues("error")))
	require.NoError(t, inbox.Invalidate(ctx))
}

// Проверка на живом Redis: REDIS_TEST_ADDR=localhost:6379 go test ./internal/cache
func TestInboxRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR is not set")
	}
	m := metrics.NewIsolated("test")
	inbox := NewInbox(NewClient(Config{Addr: addr}), time.Minute, m.InboxCache)
	t.Cleanup(func() { _ = inbox.Close() })
	ctx := context.Background()
	require.NoError(t, inbox.Ping(ctx))

	user := "cache-test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = inbox.client.Del(context.Background(), inboxKeyPrefix+user, genKeyPrefix+user).Err() })

	_, gen, ok, err := inbox.GetInbox(ctx, user)
	require.NoError(t, err)
	require.False(t, ok)

	want := []models.InboxEntry{{Counterparty: "bob", LastMessage: "hi", LastTimestamp: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}}
	require.NoError(t, inbox.SetInbox(ctx, user, gen, want))

	got, _, ok, err := inbox.GetInbox(ctx, user)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	require.NoError(t, inbox.Invalidate(ctx, user))
	_, _, ok, err = inbox.GetInbox(ctx, user)
	require.NoError(t, err)
	require.False(t, ok)

	// запись со старым поколением после инвалидации не попадает в кэш
	require.NoError(t, inbox.SetInbox(ctx, user, gen, want))
	_, _, ok, err = inbox.GetInbox(ctx, user)
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, 1.0, testutil.ToFloat64(m.InboxCache.WithLabelValues("hit")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.InboxCache.WithLabelValues("miss")))
}

func TestParseGen(t *testing.T) {
	n, err := parseGen(nil)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = parseGen("7")
	require.NoError(t, err)
	require.Equal(t, int64(7), n)

	_, err = parseGen("seven")
	require.Error(t, err)
	_, err = parseGen(7)
	require.Error(t, err)
}
