package txn

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobbyist/internal/repository"
	"lobbyist/pkg/apierror"
)

type recorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorder) ObserveAttempt(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
}

func expireUser(ctx context.Context, store *repository.Store) (string, error) {
	if err := store.Users.UpdateExpiry(ctx, "user-1", time.Unix(100, 0)); err != nil {
		return "", err
	}
	return "done", nil
}

func TestDoRetriesTransientFailuresThenSucceeds(t *testing.T) {
	db, mock := newMock(t)
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users").WillReturnError(serializationFailure())
		mock.ExpectRollback()
	}
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := &recorder{}
	exec := New(db, WithMaxAttempts(3), WithBaseDelay(time.Microsecond), WithObserver(rec))

	calls := 0
	got, err := Do(context.Background(), exec, func(ctx context.Context, store *repository.Store) (string, error) {
		calls++
		return expireUser(ctx, store)
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{OutcomeRetried, OutcomeRetried, OutcomeCommitted}, rec.outcomes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoDoesNotRetryNonTransientErrors(t *testing.T) {
	cases := map[string]error{
		"conflict":     apierror.Conflict(map[string]string{"name": "already exists"}),
		"forbidden":    apierror.Forbidden("forbidden"),
		"unique":       &pgconn.PgError{Code: "23505"},
		"plain errors": errors.New("boom"),
	}

	for name, failure := range cases {
		t.Run(name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectBegin()
			mock.ExpectRollback()

			rec := &recorder{}
			exec := New(db, WithBaseDelay(time.Microsecond), WithObserver(rec))

			calls := 0
			_, err := Do(context.Background(), exec, func(ctx context.Context, store *repository.Store) (int, error) {
				calls++
				return 0, failure
			})
			require.ErrorIs(t, err, failure)
			assert.Equal(t, 1, calls)
			assert.Equal(t, []string{OutcomeFailed}, rec.outcomes)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDoExhaustsBudgetIntoInternalError(t *testing.T) {
	db, mock := newMock(t)
	for i := 0; i < 4; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	rec := &recorder{}
	exec := New(db, WithMaxAttempts(4), WithBaseDelay(time.Microsecond), WithObserver(rec))

	calls := 0
	_, err := Do(context.Background(), exec, func(ctx context.Context, store *repository.Store) (int, error) {
		calls++
		return 0, serializationFailure()
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.True(t, apierror.Is(err, apierror.CodeInternal))

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr), "the last store error stays reachable for logs")
	assert.Equal(t, OutcomeExhausted, rec.outcomes[len(rec.outcomes)-1])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoRetriesCommitFailures(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(serializationFailure())
	mock.ExpectBegin()
	mock.ExpectCommit()

	exec := New(db, WithBaseDelay(time.Microsecond))

	calls := 0
	err := exec.Run(context.Background(), func(ctx context.Context, store *repository.Store) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoWaitsLongerBetweenEachRetry(t *testing.T) {
	db, mock := newMock(t)
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	base := 20 * time.Millisecond
	exec := New(db, WithMaxAttempts(3), WithBaseDelay(base))

	var stamps []time.Time
	_, err := Do(context.Background(), exec, func(ctx context.Context, store *repository.Store) (int, error) {
		stamps = append(stamps, time.Now())
		return 0, serializationFailure()
	})
	require.Error(t, err)
	require.Len(t, stamps, 3)

	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), base)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 2*base)
}

func TestDoStopsOnCanceledContext(t *testing.T) {
	db, _ := newMock(t)
	exec := New(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, exec, func(ctx context.Context, store *repository.Store) (int, error) {
		calls++
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestCustomClassifier(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	flaky := errors.New("flaky")
	exec := New(db,
		WithBaseDelay(time.Microsecond),
		WithClassifier(func(err error) bool { return errors.Is(err, flaky) }),
	)

	calls := 0
	err := exec.Run(context.Background(), func(ctx context.Context, store *repository.Store) error {
		calls++
		if calls == 1 {
			return flaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
