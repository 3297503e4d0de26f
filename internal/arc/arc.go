// Package arc stores per-session narrative state. The state is ephemeral
// and lives for one session, but when several server processes share traffic
// it can be kept in Redis instead of the in-process map.
package arc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lazypower/animus/internal/decay"
)

// Store reads and writes the narrative arc for a session id.
type Store interface {
	Get(ctx context.Context, sessionID string) (decay.ArcState, error)
	Put(ctx context.Context, sessionID string, state decay.ArcState) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps arc state in an in-process map. Default.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]decay.ArcState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]decay.ArcState)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (decay.ArcState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[sessionID]; ok {
		return state, nil
	}
	return decay.NewArcState(), nil
}

func (s *MemoryStore) Put(_ context.Context, sessionID string, state decay.ArcState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = state
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}

// RedisStore keeps arc state in Redis with a TTL so abandoned sessions
// eventually evaporate.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    12 * time.Hour,
	}
}

func arcKey(sessionID string) string {
	return "animus:arc:" + sessionID
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (decay.ArcState, error) {
	raw, err := s.client.Get(ctx, arcKey(sessionID)).Result()
	if err == redis.Nil {
		return decay.NewArcState(), nil
	}
	if err != nil {
		return decay.NewArcState(), fmt.Errorf("arc get: %w", err)
	}
	var state decay.ArcState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return decay.NewArcState(), fmt.Errorf("arc decode: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Put(ctx context.Context, sessionID string, state decay.ArcState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("arc encode: %w", err)
	}
	if err := s.client.Set(ctx, arcKey(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("arc put: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, arcKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("arc delete: %w", err)
	}
	return nil
}
