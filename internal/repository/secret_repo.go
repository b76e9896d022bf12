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

type SecretRepository struct {
	db dbx.DBTX
}

func NewSecretRepository(db dbx.DBTX) *SecretRepository {
	return &SecretRepository{db: db}
}

const secretColumns = `s.id, s.name, s.hash, s.user_id, s.create_ts, s.expire_ts`

func scanSecretInto(s *model.Secret, created *int64, expires *sql.NullInt64) []any {
	return []any{&s.ID, &s.Name, &s.Hash, &s.UserID, created, expires}
}

func scanSecretChain(row rowScanner, c *model.SecretChain) error {
	var sCreated, uCreated int64
	var sExpires, uExpires sql.NullInt64

	dest := scanSecretInto(&c.Secret, &sCreated, &sExpires)
	dest = append(dest, &c.User.ID, &c.User.Name, &uCreated, &uExpires)
	if err := row.Scan(dest...); err != nil {
		return err
	}

	c.Secret.CreatedAt = fromMicros(sCreated)
	c.Secret.ExpiresAt = fromNullMicros(sExpires)
	c.User.CreatedAt = fromMicros(uCreated)
	c.User.ExpiresAt = fromNullMicros(uExpires)
	return nil
}

func (r *SecretRepository) Create(ctx context.Context, s model.Secret) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO secrets (id, name, hash, user_id, create_ts, expire_ts)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, s.Hash, s.UserID, toMicros(s.CreatedAt), nullMicros(s.ExpiresAt))
	if err != nil {
		if c := conflict(err, "name"); c != nil {
			return c
		}
		return fmt.Errorf("create secret: %w", err)
	}
	return nil
}

// FindByName loads the secret with its owner, ignoring validity.
func (r *SecretRepository) FindByName(ctx context.Context, name string) (*model.SecretChain, error) {
	var c model.SecretChain
	err := scanSecretChain(r.db.QueryRowContext(ctx,
		`SELECT `+secretColumns+`, `+userColumns+`
		 FROM secrets s JOIN users u ON u.id = s.user_id
		 WHERE s.name = $1`, name), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find secret by name: %w", err)
	}
	return &c, nil
}

// FindValidByName loads the secret only when it and its owner are valid.
func (r *SecretRepository) FindValidByName(ctx context.Context, name string, at time.Time) (*model.SecretChain, error) {
	var c model.SecretChain
	err := scanSecretChain(r.db.QueryRowContext(ctx,
		`SELECT `+secretColumns+`, `+userColumns+`
		 FROM secrets s JOIN users u ON u.id = s.user_id
		 WHERE s.name = $1
		   AND `+validOptional("s", "$2")+`
		   AND `+validOptional("u", "$2"),
		name, toMicros(at)), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find valid secret by name: %w", err)
	}
	return &c, nil
}

// ListValidByUser returns the user's valid secrets ordered by creation.
func (r *SecretRepository) ListValidByUser(ctx context.Context, userID string, at time.Time) ([]model.Secret, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+secretColumns+`
		 FROM secrets s
		 WHERE s.user_id = $1 AND `+validOptional("s", "$2")+`
		 ORDER BY s.create_ts, s.name`,
		userID, toMicros(at))
	if err != nil {
		return nil, fmt.Errorf("list secrets by user: %w", err)
	}
	defer rows.Close()

	secrets := []model.Secret{}
	for rows.Next() {
		var s model.Secret
		var created int64
		var expires sql.NullInt64
		if err := rows.Scan(scanSecretInto(&s, &created, &expires)...); err != nil {
			return nil, fmt.Errorf("scan secret: %w", err)
		}
		s.CreatedAt = fromMicros(created)
		s.ExpiresAt = fromNullMicros(expires)
		secrets = append(secrets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate secrets: %w", err)
	}
	return secrets, nil
}

// UpdateHash rotates the secret's value in place.
func (r *SecretRepository) UpdateHash(ctx context.Context, id string, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE secrets SET hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update secret hash: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierror.NotFound("secret not found", id)
	}
	return nil
}

func (r *SecretRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE secrets SET expire_ts = $2 WHERE id = $1`, id, toMicros(expiresAt))
	if err != nil {
		return fmt.Errorf("update secret expiry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierror.NotFound("secret not found", id)
	}
	return nil
}
