// Package txn runs units of work inside one store transaction and retries
// them on transient contention.
package txn

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"lobbyist/internal/dbx"
	"lobbyist/internal/repository"
	"lobbyist/pkg/apierror"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 10 * time.Millisecond
)

// Attempt outcomes reported to the Observer.
const (
	OutcomeCommitted = "committed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeExhausted = "exhausted"
)

type Observer interface {
	ObserveAttempt(outcome string)
}

type Executor struct {
	db          *sql.DB
	maxAttempts int
	baseDelay   time.Duration
	txOptions   *sql.TxOptions
	transient   func(error) bool
	observer    Observer
}

type Option func(*Executor)

func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the wait before the first retry; each further retry
// doubles it.
func WithBaseDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.baseDelay = d
		}
	}
}

func WithTxOptions(opts *sql.TxOptions) Option {
	return func(e *Executor) { e.txOptions = opts }
}

// WithClassifier replaces the transient error test.
func WithClassifier(fn func(error) bool) Option {
	return func(e *Executor) {
		if fn != nil {
			e.transient = fn
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

func New(db *sql.DB, opts ...Option) *Executor {
	e := &Executor{
		db:          db,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		transient:   repository.IsTransient,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) observe(outcome string) {
	if e.observer != nil {
		e.observer.ObserveAttempt(outcome)
	}
}

// Do runs fn in a transaction and returns its result once committed. The
// whole body is re-run on transient failures, commit failures included, up
// to the configured attempt count. Any other error is returned after a
// single attempt. Running out of attempts yields an internal error.
func Do[T any](ctx context.Context, e *Executor, fn func(ctx context.Context, store *repository.Store) (T, error)) (T, error) {
	var zero T
	attempt := 0

	// The exponential backoff counts its own calls, so each unit of work
	// gets a fresh one.
	backoff := retry.WithMaxRetries(uint64(e.maxAttempts-1), retry.NewExponential(e.baseDelay))

	result, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (T, error) {
		attempt++

		var out T
		err := dbx.WithTx(ctx, e.db, e.txOptions, func(ctx context.Context, tx dbx.DBTX) error {
			var err error
			out, err = fn(ctx, repository.New(tx))
			return err
		})
		switch {
		case err == nil:
			e.observe(OutcomeCommitted)
			return out, nil
		case e.transient(err):
			e.observe(OutcomeRetried)
			slog.Warn("txn.attempt_failed",
				"attempt", attempt,
				"max_attempts", e.maxAttempts,
				"error", err,
			)
			return zero, retry.RetryableError(err)
		default:
			e.observe(OutcomeFailed)
			return zero, err
		}
	})
	if err == nil {
		return result, nil
	}

	if e.transient(err) {
		e.observe(OutcomeExhausted)
		slog.Error("txn.retries_exhausted", "attempts", attempt, "error", err)
		return zero, apierror.Internal("the store could not complete the request", err)
	}
	return zero, err
}

// Run is Do for units of work without a result.
func (e *Executor) Run(ctx context.Context, fn func(ctx context.Context, store *repository.Store) error) error {
	_, err := Do(ctx, e, func(ctx context.Context, store *repository.Store) (struct{}, error) {
		return struct{}{}, fn(ctx, store)
	})
	return err
}
