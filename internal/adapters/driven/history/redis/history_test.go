package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
)

// testRedisEnv names a Redis server for integration tests.
const testRedisEnv = "CHATBOT_TEST_REDIS_ADDR"

func TestHistoryKey(t *testing.T) {
	assert.Equal(t, "chat:history:abc", historyKey("abc"))
}

func TestNewWithClient_Defaults(t *testing.T) {
	client := redisv9.NewClient(&redisv9.Options{Addr: "localhost:0"})
	defer client.Close()

	s := NewWithClient(client, 0, 0)
	assert.Equal(t, DefaultTTL, s.ttl)
	assert.Equal(t, DefaultMaxTurns, s.maxTurns)
}

func TestNew_Unreachable(t *testing.T) {
	_, err := New(context.Background(), Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis failed")
}

func TestHistoryStore_Integration(t *testing.T) {
	addr := os.Getenv(testRedisEnv)
	if addr == "" {
		t.Skipf("%s not set", testRedisEnv)
	}
	ctx := context.Background()
	store, err := New(ctx, Config{Addr: addr, TTL: time.Minute, MaxTurns: 2})
	require.NoError(t, err)
	defer store.Close()

	session := uuid.NewString()
	defer store.Delete(ctx, session)

	turns, err := store.Get(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, turns)

	for _, q := range []string{"q1", "q2", "q3"} {
		require.NoError(t, store.Append(ctx, session, domain.HistoryTurn{Question: q, Answer: "a-" + q}))
	}

	turns, err = store.Get(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, []domain.HistoryTurn{
		{Question: "q2", Answer: "a-q2"},
		{Question: "q3", Answer: "a-q3"},
	}, turns)

	ttl, err := store.client.TTL(ctx, historyKey(session)).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	require.NoError(t, store.Delete(ctx, session))
	turns, err = store.Get(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, turns)
}
