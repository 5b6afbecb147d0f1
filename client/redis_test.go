package client

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a running server, e.g. TEST_REDIS_URL=redis://localhost:6379/0
func TestRedisFeedRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_URL")
	if addr == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(addr)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	feed := NewRedisFeed(rdb, nil)
	got := make(chan string, 1)
	sub, err := feed.Subscribe(context.Background(), "company-test-appMessage", func(p []byte) { got <- string(p) })
	require.NoError(t, err)

	require.NoError(t, feed.Publish(context.Background(), "company-test-appMessage", []byte(`{"action":"create"}`)))
	select {
	case p := <-got:
		assert.JSONEq(t, `{"action":"create"}`, p)
	case <-time.After(2 * time.Second):
		t.Fatal("payload not delivered")
	}

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
}
