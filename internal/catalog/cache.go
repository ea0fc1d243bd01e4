package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// CachedRepository serves reads from Redis and falls through to the wrapped
// repository on a miss or a cache error. Misses of ErrNotFound are not cached.
type CachedRepository struct {
	source Repository
	cache  *Cache
	logger zerolog.Logger
}

// NewCachedRepository decorates source with cache.
func NewCachedRepository(source Repository, cache *Cache, logger zerolog.Logger) *CachedRepository {
	return &CachedRepository{source: source, cache: cache, logger: logger}
}

func productKey(id string) string { return "catalog:product:" + id }

func listKey(filter Filter) string {
	raw, _ := json.Marshal(filter)
	sum := sha256.Sum256(raw)
	return "catalog:products:" + hex.EncodeToString(sum[:8])
}

func optionKey(productID string, group Group) string {
	return fmt.Sprintf("catalog:options:%s:%s", productID, group)
}

func relatedKey(productID string, limit int) string {
	return fmt.Sprintf("catalog:related:%s:%d", productID, limit)
}

const categoriesKey = "catalog:categories"

func cached[T any](ctx context.Context, r *CachedRepository, key string, load func() (T, error)) (T, error) {
	var out T
	hit, err := r.cache.GetJSON(ctx, key, &out)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_read_failed")
	}
	if hit {
		return out, nil
	}
	out, err = load()
	if err != nil {
		return out, err
	}
	if err := r.cache.SetJSON(ctx, key, out); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_write_failed")
	}
	return out, nil
}

// GetProduct implements Repository.
func (r *CachedRepository) GetProduct(ctx context.Context, id string) (Product, error) {
	return cached(ctx, r, productKey(id), func() (Product, error) {
		return r.source.GetProduct(ctx, id)
	})
}

// ListProducts implements Repository.
func (r *CachedRepository) ListProducts(ctx context.Context, filter Filter) ([]Product, error) {
	return cached(ctx, r, listKey(filter), func() ([]Product, error) {
		return r.source.ListProducts(ctx, filter)
	})
}

// ListOptionGroup implements Repository.
func (r *CachedRepository) ListOptionGroup(ctx context.Context, productID string, group Group) ([]Option, error) {
	return cached(ctx, r, optionKey(productID, group), func() ([]Option, error) {
		return r.source.ListOptionGroup(ctx, productID, group)
	})
}

// ListCategories implements Repository.
func (r *CachedRepository) ListCategories(ctx context.Context) ([]Category, error) {
	return cached(ctx, r, categoriesKey, func() ([]Category, error) {
		return r.source.ListCategories(ctx)
	})
}

// ListRelated implements Repository.
func (r *CachedRepository) ListRelated(ctx context.Context, productID string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	return cached(ctx, r, relatedKey(productID, limit), func() ([]Product, error) {
		return r.source.ListRelated(ctx, productID, limit)
	})
}
