package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lobbyist/internal/dbx"
	"lobbyist/internal/model"
	"lobbyist/pkg/apierror"
)

type UserRepository struct {
	db dbx.DBTX
}

func NewUserRepository(db dbx.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `u.id, u.name, u.create_ts, u.expire_ts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, u *model.User) error {
	var created int64
	var expires sql.NullInt64
	if err := row.Scan(&u.ID, &u.Name, &created, &expires); err != nil {
		return err
	}
	u.CreatedAt = fromMicros(created)
	u.ExpiresAt = fromNullMicros(expires)
	return nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, create_ts, expire_ts) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Name, toMicros(u.CreatedAt), nullMicros(u.ExpiresAt))
	if err != nil {
		if c := conflict(err, "name"); c != nil {
			return c
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByName returns the user whatever its validity, or nil when absent.
func (r *UserRepository) FindByName(ctx context.Context, name string) (*model.User, error) {
	var u model.User
	err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.name = $1`, name), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by name: %w", err)
	}
	return &u, nil
}

// FindValidByName returns the user only when it is valid at the given instant.
func (r *UserRepository) FindValidByName(ctx context.Context, name string, at time.Time) (*model.User, error) {
	var u model.User
	err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE u.name = $1 AND `+validOptional("u", "$2"),
		name, toMicros(at)), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find valid user by name: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET expire_ts = $2 WHERE id = $1`, id, toMicros(expiresAt))
	if err != nil {
		return fmt.Errorf("update user expiry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierror.NotFound("user not found", id)
	}
	return nil
}
