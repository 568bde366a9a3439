package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChatMemoryStore keeps per-user conversation history for the chat
// endpoint. History is advisory context, not durable data.
type ChatMemoryStore interface {
	History(ctx context.Context, userID string) ([]ChatTurn, error)
	Append(ctx context.Context, userID string, turns ...ChatTurn) error
}

type userTurns struct {
	mu    sync.Mutex
	turns []ChatTurn
}

// memoryChatStore bounds history per user and serializes mutation with a
// per-user lock.
type memoryChatStore struct {
	mu       sync.Mutex
	users    map[string]*userTurns
	maxTurns int
}

func NewMemoryChatStore(maxTurns int) ChatMemoryStore {
	if maxTurns <= 0 {
		maxTurns = 30
	}
	return &memoryChatStore{
		users:    make(map[string]*userTurns),
		maxTurns: maxTurns,
	}
}

func (s *memoryChatStore) bucket(userID string) *userTurns {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.users[userID]
	if !ok {
		b = &userTurns{}
		s.users[userID] = b
	}
	return b
}

func (s *memoryChatStore) History(_ context.Context, userID string) ([]ChatTurn, error) {
	b := s.bucket(userID)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ChatTurn, len(b.turns))
	copy(out, b.turns)
	return out, nil
}

func (s *memoryChatStore) Append(_ context.Context, userID string, turns ...ChatTurn) error {
	b := s.bucket(userID)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, turns...)
	if len(b.turns) > s.maxTurns {
		b.turns = b.turns[len(b.turns)-s.maxTurns:]
	}
	return nil
}

// redisChatStore keeps history in a Redis list per user. Chat context then
// survives restarts and is shared across replicas.
type redisChatStore struct {
	rdb      *redis.Client
	maxTurns int
	ttl      time.Duration
}

func NewRedisChatStore(ctx context.Context, url string, maxTurns int, ttl time.Duration) (ChatMemoryStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if maxTurns <= 0 {
		maxTurns = 30
	}
	return &redisChatStore{rdb: rdb, maxTurns: maxTurns, ttl: ttl}, nil
}

func chatHistoryKey(userID string) string {
	return "chat:history:" + userID
}

func (s *redisChatStore) History(ctx context.Context, userID string) ([]ChatTurn, error) {
	values, err := s.rdb.LRange(ctx, chatHistoryKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	turns := make([]ChatTurn, 0, len(values))
	for _, value := range values {
		var turn ChatTurn
		if err := json.Unmarshal([]byte(value), &turn); err != nil {
			// Skip entries written by an incompatible version.
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *redisChatStore) Append(ctx context.Context, userID string, turns ...ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	encoded := make([]any, 0, len(turns))
	for _, turn := range turns {
		raw, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshal chat turn: %w", err)
		}
		encoded = append(encoded, raw)
	}

	key := chatHistoryKey(userID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, encoded...)
	pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

func (s *redisChatStore) Close() error {
	return s.rdb.Close()
}
