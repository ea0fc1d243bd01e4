package catalog

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher retrieves a raw document by URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// RemoteSource serves a catalog fetched as a JSON dataset from URL. The last
// successfully loaded dataset keeps serving when a refresh fails.
type RemoteSource struct {
	fetcher Fetcher
	url     string
	logger  zerolog.Logger
	opts    []StaticOption

	current atomic.Pointer[Static]
	mu      sync.Mutex
}

// NewRemoteSource constructs a source. Call Refresh before serving.
func NewRemoteSource(fetcher Fetcher, url string, logger zerolog.Logger, opts ...StaticOption) *RemoteSource {
	return &RemoteSource{fetcher: fetcher, url: url, logger: logger, opts: opts}
}

// Refresh reloads the dataset.
func (s *RemoteSource) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := s.fetcher.Get(ctx, s.url)
	if err != nil {
		return fmt.Errorf("catalog: fetch %s: %w", s.url, err)
	}
	products, err := LoadJSON(bytes.NewReader(body))
	if err != nil {
		return err
	}
	static, err := NewStatic(products, s.opts...)
	if err != nil {
		return err
	}
	s.current.Store(static)
	s.logger.Info().Str("url", s.url).Int("products", len(products)).Msg("catalog_refreshed")
	return nil
}

// Run refreshes the dataset every interval until ctx is done. Failures are
// logged and the previous dataset keeps serving.
func (s *RemoteSource) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn().Err(err).Str("url", s.url).Msg("catalog_refresh_failed")
			}
		}
	}
}

func (s *RemoteSource) repo() (*Static, error) {
	repo := s.current.Load()
	if repo == nil {
		return nil, fmt.Errorf("catalog: remote source %s not loaded", s.url)
	}
	return repo, nil
}

// GetProduct implements Repository.
func (s *RemoteSource) GetProduct(ctx context.Context, id string) (Product, error) {
	repo, err := s.repo()
	if err != nil {
		return Product{}, err
	}
	return repo.GetProduct(ctx, id)
}

// ListProducts implements Repository.
func (s *RemoteSource) ListProducts(ctx context.Context, filter Filter) ([]Product, error) {
	repo, err := s.repo()
	if err != nil {
		return nil, err
	}
	return repo.ListProducts(ctx, filter)
}

// ListOptionGroup implements Repository.
func (s *RemoteSource) ListOptionGroup(ctx context.Context, productID string, group Group) ([]Option, error) {
	repo, err := s.repo()
	if err != nil {
		return nil, err
	}
	return repo.ListOptionGroup(ctx, productID, group)
}

// ListCategories implements Repository.
func (s *RemoteSource) ListCategories(ctx context.Context) ([]Category, error) {
	repo, err := s.repo()
	if err != nil {
		return nil, err
	}
	return repo.ListCategories(ctx)
}

// ListRelated implements Repository.
func (s *RemoteSource) ListRelated(ctx context.Context, productID string, limit int) ([]Product, error) {
	repo, err := s.repo()
	if err != nil {
		return nil, err
	}
	return repo.ListRelated(ctx, productID, limit)
}
