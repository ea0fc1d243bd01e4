// Package session keeps configurator state machines server side, one per
// session id, and exposes them over HTTP.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-configurator/internal/configurator"
)

// ErrNotFound reports an unknown or expired session.
var ErrNotFound = errors.New("session: not found")

// DefaultTTL is the idle lifetime of a session.
const DefaultTTL = 24 * time.Hour

// Store persists machine state in Redis. Every write refreshes the TTL.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore returns a store with keys under prefix.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "session"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(id string) string { return s.prefix + ":" + id }

// Get loads the state of session id.
func (s *Store) Get(ctx context.Context, id string) (configurator.State, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return configurator.State{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return configurator.State{}, fmt.Errorf("load session %s: %w", id, err)
	}
	var st configurator.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return configurator.State{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return st, nil
}

// Put stores the state of session id.
func (s *Store) Put(ctx context.Context, id string, st configurator.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", id, err)
	}
	return nil
}

// Delete removes session id.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}
