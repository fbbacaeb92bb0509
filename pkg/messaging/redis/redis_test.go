package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBroker(t *testing.T) *RedisBroker {
	t.Helper()
	url := os.Getenv("EVURA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("EVURA_TEST_REDIS_URL not set")
	}
	b, err := NewRedisBroker(context.Background(), Config{
		URL:         url,
		KeyPrefix:   "evura-test-" + uuid.NewString() + ":",
		PollTimeout: 200 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRejectsBadURL(t *testing.T) {
	_, err := NewRedisBroker(context.Background(), Config{URL: "://nope"}, nil)
	assert.Error(t, err)
}

func TestQueuedMessageReachesSubscriber(t *testing.T) {
	b := testBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, b.Publish(ctx, "notifications", map[string]string{"id": "n-1"}))

	msgs, err := b.Subscribe(ctx, "notifications")
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.JSONEq(t, `{"id":"n-1"}`, string(msg))
	case <-time.After(3 * time.Second):
		t.Fatal("message not delivered")
	}
}
