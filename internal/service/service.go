package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lobbyist/internal/credential"
	"lobbyist/internal/event"
	"lobbyist/internal/model"
	"lobbyist/internal/repository"
	"lobbyist/internal/txn"
	"lobbyist/pkg/apierror"
)

// Policy holds the configured bounds every lifecycle operation validates
// against before writing.
type Policy struct {
	UsernameLength  model.Range[int]
	PasswordMinLen  int
	AccessLifetime  model.Range[time.Duration]
	RefreshLifetime model.Range[time.Duration]

	SecretNameEntropy   int
	SecretValueEntropy  int
	AccessTokenEntropy  int
	RefreshTokenEntropy int
}

func DefaultPolicy() Policy {
	return Policy{
		UsernameLength:      model.Range[int]{Min: 4, Max: 64},
		PasswordMinLen:      8,
		AccessLifetime:      model.Range[time.Duration]{Min: time.Hour, Max: 72 * time.Hour, Default: 24 * time.Hour},
		RefreshLifetime:     model.Range[time.Duration]{Min: time.Hour, Max: 14 * 24 * time.Hour, Default: 7 * 24 * time.Hour},
		SecretNameEntropy:   192,
		SecretValueEntropy:  384,
		AccessTokenEntropy:  256,
		RefreshTokenEntropy: 256,
	}
}

// Lifetimes requested for a new token pair. Zero selects the default.
type Lifetimes struct {
	Access  time.Duration
	Refresh time.Duration
}

// Recorder receives one observation per finished operation.
type Recorder interface {
	ObserveOperation(operation string, outcome string, elapsed time.Duration)
}

// Deps is shared by every service. Bus and Metrics may be nil.
type Deps struct {
	Executor *txn.Executor
	Hasher   *credential.Hasher
	Policy   Policy
	Bus      event.Bus
	Metrics  Recorder
}

type base struct {
	deps Deps
	auth *Authorizer
}

func newBase(deps Deps) base {
	return base{deps: deps, auth: NewAuthorizer(deps.Hasher)}
}

// track is deferred by every operation with a pointer to its named error.
func (b base) track(operation string, start time.Time, errp *error) {
	if b.deps.Metrics == nil {
		return
	}
	b.deps.Metrics.ObserveOperation(operation, Outcome(*errp), time.Since(start))
}

// Outcome names an operation result for metrics and logs.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, model.ErrInvalidCredentials) {
		return "invalid_credentials"
	}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return strings.ToLower(apiErr.Code)
	}
	return "error"
}

func (b base) publish(typ event.Type, at time.Time, actor string, payload map[string]any) {
	if b.deps.Bus == nil {
		return
	}
	b.deps.Bus.Publish(event.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Payload:   payload,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		ActorID:   actor,
	})
}

func (b base) resolveLifetimes(l Lifetimes) (Lifetimes, error) {
	p := b.deps.Policy
	resolved := Lifetimes{
		Access:  p.AccessLifetime.Resolve(l.Access),
		Refresh: p.RefreshLifetime.Resolve(l.Refresh),
	}

	fields := map[string]string{}
	if !p.AccessLifetime.Contains(resolved.Access) {
		fields["access_token_lifetime"] = "lifetime must be between " + p.AccessLifetime.String()
	}
	if !p.RefreshLifetime.Contains(resolved.Refresh) {
		fields["refresh_token_lifetime"] = "lifetime must be between " + p.RefreshLifetime.String()
	}
	if len(fields) > 0 {
		return Lifetimes{}, apierror.BadRequest("invalid lifetime", fields)
	}
	return resolved, nil
}

// mintTokenPair creates an access token under the secret and a refresh token
// under that access token, both starting at at.
func (b base) mintTokenPair(ctx context.Context, store *repository.Store, at time.Time, secret model.Secret, l Lifetimes) (model.AccessToken, model.RefreshToken, error) {
	slog.Debug("service.token.mint_pair", "secret_id", secret.ID)

	accessValue, err := credential.GenerateOpaqueValue(b.deps.Policy.AccessTokenEntropy)
	if err != nil {
		return model.AccessToken{}, model.RefreshToken{}, err
	}
	refreshValue, err := credential.GenerateOpaqueValue(b.deps.Policy.RefreshTokenEntropy)
	if err != nil {
		return model.AccessToken{}, model.RefreshToken{}, err
	}

	access := model.AccessToken{
		ID:        uuid.NewString(),
		Value:     accessValue,
		SecretID:  secret.ID,
		CreatedAt: at,
		ExpiresAt: at.Add(l.Access),
	}
	if err := store.AccessTokens.Create(ctx, access); err != nil {
		return model.AccessToken{}, model.RefreshToken{}, err
	}

	refresh := model.RefreshToken{
		ID:            uuid.NewString(),
		Value:         refreshValue,
		AccessTokenID: access.ID,
		CreatedAt:     at,
		ExpiresAt:     at.Add(l.Refresh),
	}
	if err := store.RefreshTokens.Create(ctx, refresh); err != nil {
		return model.AccessToken{}, model.RefreshToken{}, err
	}

	return access, refresh, nil
}

// checkExpiry validates a requested expiry against the allowed window. A nil
// upper bound leaves the window open.
func checkExpiry(expiresAt time.Time, lower time.Time, upper *time.Time) error {
	if expiresAt.Before(lower) || (upper != nil && expiresAt.After(*upper)) {
		window := "[" + lower.UTC().Format(time.RFC3339) + "; "
		if upper != nil {
			window += upper.UTC().Format(time.RFC3339) + "]"
		} else {
			window += "none]"
		}
		return apierror.BadRequest("invalid expire time", map[string]string{
			"expire_ts": "expire time must be between " + window,
		})
	}
	return nil
}

func requireBearer(bearer string) error {
	if bearer == "" {
		return apierror.Unauthorized("missing access token")
	}
	return nil
}
