package saved

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-configurator/internal/configurator"
)

// RedisStore keeps records as JSON in Redis lists: one list with every
// record and one per user.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	base
}

// NewRedisStore returns a store using keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...Option) *RedisStore {
	if prefix == "" {
		prefix = "saved"
	}
	return &RedisStore{client: client, prefix: prefix, base: newBase(opts)}
}

func (s *RedisStore) allKey() string { return s.prefix + ":all" }

func (s *RedisStore) userKey(userID string) string { return s.prefix + ":user:" + userID }

// Save appends the record to the global list and, for a known user, to the
// user's list inside one MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, cfg configurator.Configuration, userID string) (Record, error) {
	rec := s.record(cfg, userID)
	payload, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encode record: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.allKey(), payload)
		if userID != "" {
			pipe.RPush(ctx, s.userKey(userID), payload)
		}
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("store saved configuration: %w: %w", ErrPersistence, err)
	}
	return rec, nil
}

// List returns the records of userID, or all records when userID is empty.
func (s *RedisStore) List(ctx context.Context, userID string) ([]Record, error) {
	key := s.allKey()
	if userID != "" {
		key = s.userKey(userID)
	}
	raws, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read saved configurations: %w: %w", ErrPersistence, err)
	}
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode saved configuration: %w: %w", ErrPersistence, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
