// Package saved persists configurations that users choose to keep.
package saved

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/backend-configurator/internal/configurator"
)

// ErrPersistence wraps every failure of the backing store. Callers may retry.
var ErrPersistence = errors.New("saved: persistence failure")

// Record is a stored configuration. UserID is empty for anonymous saves.
type Record struct {
	ID            string                     `json:"id"`
	UserID        string                     `json:"userId,omitempty"`
	Configuration configurator.Configuration `json:"configuration"`
	CreatedAt     time.Time                  `json:"createdAt"`
}

// Store saves and lists configurations. List returns records in save order;
// an empty userID lists every record.
type Store interface {
	Save(ctx context.Context, cfg configurator.Configuration, userID string) (Record, error)
	List(ctx context.Context, userID string) ([]Record, error)
}

// Option customises a store.
type Option func(*base)

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithIDGenerator overrides how record ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(b *base) { b.newID = fn }
}

type base struct {
	now   func() time.Time
	newID func() string
}

func newBase(opts []Option) base {
	b := base{now: time.Now, newID: newRecordID}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) record(cfg configurator.Configuration, userID string) Record {
	return Record{
		ID:            b.newID(),
		UserID:        userID,
		Configuration: cfg.Clone(),
		CreatedAt:     b.now().UTC().Truncate(time.Microsecond),
	}
}
