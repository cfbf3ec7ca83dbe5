package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidahmann/cardkit/internal/logger"
)

const DefaultMaxAttempts = 5

// Mutation edits a freshly read record and reports whether it changed. It
// may run several times for one Update, each time on a new read, so it must
// not have side effects outside the record.
type Mutation func(rec *Record) (bool, error)

// Tracker runs read-modify-write cycles against a Store.
type Tracker struct {
	store       Store
	log         *logger.Logger
	maxAttempts int
	onConflict  func(key string, attempt int)
}

type Option func(*Tracker)

func WithLogger(l *logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// WithMaxAttempts bounds the writes tried per Update.
func WithMaxAttempts(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

// WithConflictHook is called after every lost write.
func WithConflictHook(fn func(key string, attempt int)) Option {
	return func(t *Tracker) {
		t.onConflict = fn
	}
}

func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{store: store, log: logger.Nop(), maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Store() Store {
	return t.store
}

func (t *Tracker) Get(ctx context.Context, key string) (Record, error) {
	rec, err := t.store.Get(ctx, key)
	if err != nil {
		return Record{}, fmt.Errorf("tracking: get %s: %w", key, err)
	}
	return rec, nil
}

// Update applies mutate to the current record and writes it back with a
// single Set. A lost write is retried from a fresh read; the last conflict
// is returned once the attempts run out. Nothing is written when mutate
// reports no change or fails.
func (t *Tracker) Update(ctx context.Context, key string, mutate Mutation) (Record, error) {
	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}

		rec, err := t.Get(ctx, key)
		if err != nil {
			return Record{}, err
		}
		work := rec.Clone()
		changed, err := mutate(&work)
		if err != nil {
			return rec, err
		}
		if !changed {
			return rec, nil
		}
		work.Revision = rec.Revision

		revision, err := t.store.Set(ctx, key, work)
		if err == nil {
			work.Revision = revision
			return work, nil
		}
		if !errors.Is(err, ErrConflict) {
			return rec, fmt.Errorf("tracking: set %s: %w", key, err)
		}

		lastErr = err
		t.log.Debug("tracking write conflict", "key", key, "attempt", attempt)
		if t.onConflict != nil {
			t.onConflict(key, attempt)
		}
	}
	t.log.Warn("tracking update gave up", "key", key, "attempts", t.maxAttempts)
	return Record{}, fmt.Errorf("tracking: update %s after %d attempts: %w", key, t.maxAttempts, lastErr)
}
