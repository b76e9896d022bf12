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

const (
	accessTokenColumns  = `a.id, a.value, a.secret_id, a.create_ts, a.expire_ts`
	refreshTokenColumns = `r.id, r.value, r.access_token_id, r.create_ts, r.expire_ts`

	accessTokenChainFrom = `access_tokens a
		 JOIN secrets s ON s.id = a.secret_id
		 JOIN users u ON u.id = s.user_id`
	refreshTokenChainFrom = `refresh_tokens r
		 JOIN access_tokens a ON a.id = r.access_token_id
		 JOIN secrets s ON s.id = a.secret_id
		 JOIN users u ON u.id = s.user_id`
)

// chainScan collects the raw columns of a joined chain row and converts the
// stored microseconds once the row has been read.
type chainScan struct {
	refreshCreated, refreshExpires int64
	accessCreated, accessExpires   int64
	secretCreated, userCreated     int64
	secretExpires, userExpires     sql.NullInt64
}

func (cs *chainScan) refreshDest(t *model.RefreshToken) []any {
	return []any{&t.ID, &t.Value, &t.AccessTokenID, &cs.refreshCreated, &cs.refreshExpires}
}

func (cs *chainScan) accessDest(t *model.AccessToken) []any {
	return []any{&t.ID, &t.Value, &t.SecretID, &cs.accessCreated, &cs.accessExpires}
}

func (cs *chainScan) secretDest(s *model.Secret) []any {
	return scanSecretInto(s, &cs.secretCreated, &cs.secretExpires)
}

func (cs *chainScan) userDest(u *model.User) []any {
	return []any{&u.ID, &u.Name, &cs.userCreated, &cs.userExpires}
}

func (cs *chainScan) fillAccess(c *model.AccessTokenChain) {
	c.AccessToken.CreatedAt = fromMicros(cs.accessCreated)
	c.AccessToken.ExpiresAt = fromMicros(cs.accessExpires)
	cs.fillOwners(&c.Secret, &c.User)
}

func (cs *chainScan) fillOwners(s *model.Secret, u *model.User) {
	s.CreatedAt = fromMicros(cs.secretCreated)
	s.ExpiresAt = fromNullMicros(cs.secretExpires)
	u.CreatedAt = fromMicros(cs.userCreated)
	u.ExpiresAt = fromNullMicros(cs.userExpires)
}

func scanAccessTokenChain(row rowScanner, c *model.AccessTokenChain) error {
	var cs chainScan
	dest := cs.accessDest(&c.AccessToken)
	dest = append(dest, cs.secretDest(&c.Secret)...)
	dest = append(dest, cs.userDest(&c.User)...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	cs.fillAccess(c)
	return nil
}

func scanRefreshTokenChain(row rowScanner, c *model.RefreshTokenChain) error {
	var cs chainScan
	dest := cs.refreshDest(&c.RefreshToken)
	dest = append(dest, cs.accessDest(&c.AccessToken)...)
	dest = append(dest, cs.secretDest(&c.Secret)...)
	dest = append(dest, cs.userDest(&c.User)...)
	if err := row.Scan(dest...); err != nil {
		return err
	}

	c.RefreshToken.CreatedAt = fromMicros(cs.refreshCreated)
	c.RefreshToken.ExpiresAt = fromMicros(cs.refreshExpires)
	c.AccessToken.CreatedAt = fromMicros(cs.accessCreated)
	c.AccessToken.ExpiresAt = fromMicros(cs.accessExpires)
	cs.fillOwners(&c.Secret, &c.User)
	return nil
}

// chainValidity filters every hop of an access token chain at param.
func chainValidity(param string) string {
	return validMandatory("a", param) + ` AND ` + validOptional("s", param) + ` AND ` + validOptional("u", param)
}

type AccessTokenRepository struct {
	db dbx.DBTX
}

func NewAccessTokenRepository(db dbx.DBTX) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

func (r *AccessTokenRepository) Create(ctx context.Context, t model.AccessToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_tokens (id, value, secret_id, create_ts, expire_ts)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Value, t.SecretID, toMicros(t.CreatedAt), toMicros(t.ExpiresAt))
	if err != nil {
		if c := conflict(err, "value"); c != nil {
			return c
		}
		return fmt.Errorf("create access token: %w", err)
	}
	return nil
}

// FindByValue loads the token chain ignoring validity.
func (r *AccessTokenRepository) FindByValue(ctx context.Context, value string) (*model.AccessTokenChain, error) {
	var c model.AccessTokenChain
	err := scanAccessTokenChain(r.db.QueryRowContext(ctx,
		`SELECT `+accessTokenColumns+`, `+secretColumns+`, `+userColumns+`
		 FROM `+accessTokenChainFrom+`
		 WHERE a.value = $1`, value), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find access token: %w", err)
	}
	return &c, nil
}

// FindValidByValue loads the token chain only when every hop is valid.
func (r *AccessTokenRepository) FindValidByValue(ctx context.Context, value string, at time.Time) (*model.AccessTokenChain, error) {
	var c model.AccessTokenChain
	err := scanAccessTokenChain(r.db.QueryRowContext(ctx,
		`SELECT `+accessTokenColumns+`, `+secretColumns+`, `+userColumns+`
		 FROM `+accessTokenChainFrom+`
		 WHERE a.value = $1 AND `+chainValidity("$2"),
		value, toMicros(at)), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find valid access token: %w", err)
	}
	return &c, nil
}

// ListValidBySecret returns the secret's valid access tokens.
func (r *AccessTokenRepository) ListValidBySecret(ctx context.Context, secretID string, at time.Time) ([]model.AccessToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accessTokenColumns+`
		 FROM access_tokens a
		 WHERE a.secret_id = $1 AND `+validMandatory("a", "$2")+`
		 ORDER BY a.create_ts, a.value`,
		secretID, toMicros(at))
	if err != nil {
		return nil, fmt.Errorf("list access tokens by secret: %w", err)
	}
	defer rows.Close()

	tokens := []model.AccessToken{}
	for rows.Next() {
		var t model.AccessToken
		var cs chainScan
		if err := rows.Scan(cs.accessDest(&t)...); err != nil {
			return nil, fmt.Errorf("scan access token: %w", err)
		}
		t.CreatedAt = fromMicros(cs.accessCreated)
		t.ExpiresAt = fromMicros(cs.accessExpires)
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access tokens: %w", err)
	}
	return tokens, nil
}

// ListValidByUser returns every access token of the user whose whole chain
// is valid.
func (r *AccessTokenRepository) ListValidByUser(ctx context.Context, userID string, at time.Time) ([]model.AccessTokenChain, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accessTokenColumns+`, `+secretColumns+`, `+userColumns+`
		 FROM `+accessTokenChainFrom+`
		 WHERE u.id = $1 AND `+chainValidity("$2")+`
		 ORDER BY a.create_ts, a.value`,
		userID, toMicros(at))
	if err != nil {
		return nil, fmt.Errorf("list access tokens by user: %w", err)
	}
	defer rows.Close()

	chains := []model.AccessTokenChain{}
	for rows.Next() {
		var c model.AccessTokenChain
		if err := scanAccessTokenChain(rows, &c); err != nil {
			return nil, fmt.Errorf("scan access token: %w", err)
		}
		chains = append(chains, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access tokens: %w", err)
	}
	return chains, nil
}

func (r *AccessTokenRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access_tokens SET expire_ts = $2 WHERE id = $1`, id, toMicros(expiresAt))
	if err != nil {
		return fmt.Errorf("update access token expiry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierror.NotFound("access token not found", "")
	}
	return nil
}

type RefreshTokenRepository struct {
	db dbx.DBTX
}

func NewRefreshTokenRepository(db dbx.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t model.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, value, access_token_id, create_ts, expire_ts)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Value, t.AccessTokenID, toMicros(t.CreatedAt), toMicros(t.ExpiresAt))
	if err != nil {
		if c := conflict(err, "value"); c != nil {
			return c
		}
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindValidByValue loads the refresh token only when it and the access token
// chain above it are valid.
func (r *RefreshTokenRepository) FindValidByValue(ctx context.Context, value string, at time.Time) (*model.RefreshTokenChain, error) {
	var c model.RefreshTokenChain
	err := scanRefreshTokenChain(r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+`, `+accessTokenColumns+`, `+secretColumns+`, `+userColumns+`
		 FROM `+refreshTokenChainFrom+`
		 WHERE r.value = $1 AND `+validMandatory("r", "$2")+` AND `+chainValidity("$2"),
		value, toMicros(at)), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find valid refresh token: %w", err)
	}
	return &c, nil
}

func (r *RefreshTokenRepository) ListValidByAccessToken(ctx context.Context, accessTokenID string, at time.Time) ([]model.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+refreshTokenColumns+`
		 FROM refresh_tokens r
		 WHERE r.access_token_id = $1 AND `+validMandatory("r", "$2")+`
		 ORDER BY r.create_ts, r.value`,
		accessTokenID, toMicros(at))
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens by access token: %w", err)
	}
	defer rows.Close()

	tokens := []model.RefreshToken{}
	for rows.Next() {
		var t model.RefreshToken
		var cs chainScan
		if err := rows.Scan(cs.refreshDest(&t)...); err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		t.CreatedAt = fromMicros(cs.refreshCreated)
		t.ExpiresAt = fromMicros(cs.refreshExpires)
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh tokens: %w", err)
	}
	return tokens, nil
}

// ListValidByUser returns every refresh token of the user whose whole chain
// is valid.
func (r *RefreshTokenRepository) ListValidByUser(ctx context.Context, userID string, at time.Time) ([]model.RefreshTokenChain, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+refreshTokenColumns+`, `+accessTokenColumns+`, `+secretColumns+`, `+userColumns+`
		 FROM `+refreshTokenChainFrom+`
		 WHERE u.id = $1 AND `+validMandatory("r", "$2")+` AND `+chainValidity("$2")+`
		 ORDER BY r.create_ts, r.value`,
		userID, toMicros(at))
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens by user: %w", err)
	}
	defer rows.Close()

	chains := []model.RefreshTokenChain{}
	for rows.Next() {
		var c model.RefreshTokenChain
		if err := scanRefreshTokenChain(rows, &c); err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		chains = append(chains, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh tokens: %w", err)
	}
	return chains, nil
}

func (r *RefreshTokenRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET expire_ts = $2 WHERE id = $1`, id, toMicros(expiresAt))
	if err != nil {
		return fmt.Errorf("update refresh token expiry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierror.NotFound("refresh token not found", "")
	}
	return nil
}
