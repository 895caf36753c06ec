// Package redis provides a conversation history store on Redis lists.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

// Defaults.
const (
	DefaultTTL      = 24 * time.Hour
	DefaultMaxTurns = 10
	keyPrefix       = "chat:history:"
)

// Config holds the connection and retention settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// TTL expires a conversation after its last turn (default: 24h).
	TTL time.Duration

	// MaxTurns keeps only the most recent turns (default: 10).
	MaxTurns int
}

// HistoryStore keeps one Redis list of JSON turns per session.
type HistoryStore struct {
	client   *redisv9.Client
	ttl      time.Duration
	maxTurns int
}

// New connects to Redis and checks it answers.
func New(ctx context.Context, cfg Config) (*HistoryStore, error) {
	client := redisv9.NewClient(&redisv9.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}
	return NewWithClient(client, cfg.TTL, cfg.MaxTurns), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redisv9.Client, ttl time.Duration, maxTurns int) *HistoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &HistoryStore{client: client, ttl: ttl, maxTurns: maxTurns}
}

// Get returns the stored turns, oldest first.
func (s *HistoryStore) Get(ctx context.Context, sessionID string) ([]domain.HistoryTurn, error) {
	raw, err := s.client.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get history failed: %w", err)
	}
	turns := make([]domain.HistoryTurn, 0, len(raw))
	for _, item := range raw {
		var turn domain.HistoryTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal cached history failed: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Append pushes a turn, trims the list and refreshes its expiry atomically.
func (s *HistoryStore) Append(ctx context.Context, sessionID string, turn domain.HistoryTurn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal history turn failed: %w", err)
	}
	key := historyKey(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append history failed: %w", err)
	}
	return nil
}

// Delete forgets a session.
func (s *HistoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *HistoryStore) Close() error {
	return s.client.Close()
}

func historyKey(sessionID string) string {
	return keyPrefix + sessionID
}
