package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lobbyist/internal/credential"
	"lobbyist/internal/event"
	"lobbyist/internal/model"
	"lobbyist/internal/repository"
	"lobbyist/internal/txn"
	"lobbyist/pkg/apierror"
)

type CreateSecretInput struct {
	ExpiresAt *time.Time
}

// UpdateSecretInput carries the optional changes. A nil field is left as is.
type UpdateSecretInput struct {
	Value     *string
	ExpiresAt *time.Time
}

type SecretService struct {
	base
}

func NewSecretService(deps Deps) *SecretService {
	return &SecretService{base: newBase(deps)}
}

// CreateSecret mints an auxiliary secret for the caller's user. The plaintext
// value is returned here and never again.
func (s *SecretService) CreateSecret(ctx context.Context, at time.Time, bearer string, in CreateSecretInput) (view model.SecretView, err error) {
	slog.Debug("service.secret.create_secret")
	defer s.track("create_secret", time.Now(), &err)
	at = model.Timestamp(at)

	if err := requireBearer(bearer); err != nil {
		return model.SecretView{}, err
	}

	var expiresAt *time.Time
	if in.ExpiresAt != nil {
		t := model.Timestamp(*in.ExpiresAt)
		if err := checkExpiry(t, at, nil); err != nil {
			return model.SecretView{}, err
		}
		expiresAt = &t
	}

	name, err := credential.GenerateOpaqueValue(s.deps.Policy.SecretNameEntropy)
	if err != nil {
		return model.SecretView{}, err
	}
	value, err := credential.GenerateOpaqueValue(s.deps.Policy.SecretValueEntropy)
	if err != nil {
		return model.SecretView{}, err
	}
	hash, err := s.deps.Hasher.HashSecret(value)
	if err != nil {
		return model.SecretView{}, fmt.Errorf("hash secret: %w", err)
	}

	var owner string
	view, err = txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.SecretView, error) {
		caller, err := s.auth.Caller(ctx, store, at, bearer)
		if err != nil {
			return model.SecretView{}, err
		}
		if caller == nil {
			return model.SecretView{}, apierror.Forbidden("token is not authorized")
		}

		secret := model.Secret{
			ID:        uuid.NewString(),
			Name:      name,
			Hash:      hash,
			UserID:    caller.User.ID,
			CreatedAt: at,
			ExpiresAt: expiresAt,
		}
		if err := store.Secrets.Create(ctx, secret); err != nil {
			return model.SecretView{}, err
		}

		owner = caller.User.Name
		record := model.NewSecretRecord(secret, caller.User.Name)
		record.Value = value
		return model.SecretView{Secret: record, AccessTokens: []model.AccessTokenRecord{}}, nil
	})
	if err != nil {
		return model.SecretView{}, err
	}

	s.publish(event.TypeSecretCreated, at, owner, map[string]any{"user": owner, "secret": name})
	return view, nil
}

// ReadSecret is owner only. Secret names are credentials, so an absent name
// is answered exactly like someone else's secret.
func (s *SecretService) ReadSecret(ctx context.Context, at time.Time, name string, bearer string) (view model.SecretView, err error) {
	slog.Debug("service.secret.read_secret")
	defer s.track("read_secret", time.Now(), &err)
	at = model.Timestamp(at)

	return txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.SecretView, error) {
		verdict, err := s.auth.AuthorizeSecret(ctx, store, at, name, bearer, LookupAny)
		if err != nil {
			return model.SecretView{}, err
		}
		if !verdict.Authorized {
			return model.SecretView{}, apierror.Forbidden("cannot read secret")
		}
		return secretView(ctx, store, at, *verdict.Target)
	})
}

// UpdateSecret rotates an auxiliary secret's value or moves its expiry
// earlier. The primary password accepts neither change on this path.
func (s *SecretService) UpdateSecret(ctx context.Context, at time.Time, name string, bearer string, in UpdateSecretInput) (view model.SecretView, err error) {
	slog.Debug("service.secret.update_secret")
	defer s.track("update_secret", time.Now(), &err)
	at = model.Timestamp(at)

	if err := requireBearer(bearer); err != nil {
		return model.SecretView{}, err
	}

	var hash string
	if in.Value != nil {
		p := s.deps.Policy
		switch {
		case len(*in.Value) < p.PasswordMinLen:
			return model.SecretView{}, apierror.BadRequest("invalid secret", map[string]string{
				"value": fmt.Sprintf("secret length must be at least %d", p.PasswordMinLen),
			})
		case len(*in.Value) > credential.MaxSecretBytes:
			return model.SecretView{}, apierror.BadRequest("invalid secret", map[string]string{
				"value": fmt.Sprintf("secret length must be at most %d bytes", credential.MaxSecretBytes),
			})
		}
		if hash, err = s.deps.Hasher.HashSecret(*in.Value); err != nil {
			return model.SecretView{}, fmt.Errorf("hash secret: %w", err)
		}
	}

	var owner string
	view, err = txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.SecretView, error) {
		verdict, err := s.auth.AuthorizeSecret(ctx, store, at, name, bearer, LookupValid)
		if err != nil {
			return model.SecretView{}, err
		}
		if !verdict.Authorized {
			return model.SecretView{}, apierror.Forbidden("cannot update secret")
		}
		secret := verdict.Target
		owner = secret.User.Name

		if in.Value != nil && secret.IsPrimary() {
			return model.SecretView{}, apierror.BadRequest("cannot change secret", map[string]string{
				"value": "the primary password cannot be rotated through secret updates",
			})
		}

		if in.ExpiresAt != nil {
			if secret.IsPrimary() {
				return model.SecretView{}, apierror.BadRequest("cannot change secret", map[string]string{
					"expire_ts": "the primary password expires with its user",
				})
			}
			expiresAt := model.Timestamp(*in.ExpiresAt)
			if err := checkExpiry(expiresAt, secret.CreatedAt, secret.Secret.ExpiresAt); err != nil {
				return model.SecretView{}, err
			}
			if err := store.Secrets.UpdateExpiry(ctx, secret.ID, expiresAt); err != nil {
				return model.SecretView{}, err
			}
			secret.Secret.ExpiresAt = &expiresAt
		}

		if hash != "" {
			if err := store.Secrets.UpdateHash(ctx, secret.ID, hash); err != nil {
				return model.SecretView{}, err
			}
			secret.Hash = hash
		}

		return secretView(ctx, store, at, *secret)
	})
	if err != nil {
		return model.SecretView{}, err
	}

	if hash != "" {
		s.publish(event.TypeSecretRotated, at, owner, map[string]any{"user": owner, "secret": name})
	}
	if in.ExpiresAt != nil {
		s.publish(event.TypeSecretExpired, at, owner, map[string]any{"user": owner, "secret": name, "expire_ts": view.Secret.ExpiresAt})
	}
	return view, nil
}

// DeleteSecret expires an auxiliary secret at the request instant.
func (s *SecretService) DeleteSecret(ctx context.Context, at time.Time, name string, bearer string) (view model.SecretView, err error) {
	slog.Debug("service.secret.delete_secret")
	defer s.track("delete_secret", time.Now(), &err)
	at = model.Timestamp(at)

	if err := requireBearer(bearer); err != nil {
		return model.SecretView{}, err
	}

	var owner string
	view, err = txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.SecretView, error) {
		verdict, err := s.auth.AuthorizeSecret(ctx, store, at, name, bearer, LookupValid)
		if err != nil {
			return model.SecretView{}, err
		}
		if !verdict.Authorized {
			return model.SecretView{}, apierror.Forbidden("cannot delete secret")
		}
		secret := verdict.Target
		owner = secret.User.Name

		if secret.IsPrimary() {
			return model.SecretView{}, apierror.BadRequest("cannot delete secret", map[string]string{
				"name": "the primary password expires with its user",
			})
		}

		if err := store.Secrets.UpdateExpiry(ctx, secret.ID, at); err != nil {
			return model.SecretView{}, err
		}
		secret.Secret.ExpiresAt = &at
		return secretView(ctx, store, at, *secret)
	})
	if err != nil {
		return model.SecretView{}, err
	}

	s.publish(event.TypeSecretExpired, at, owner, map[string]any{"user": owner, "secret": name, "expire_ts": at})
	return view, nil
}

func secretView(ctx context.Context, store *repository.Store, at time.Time, secret model.SecretChain) (model.SecretView, error) {
	view := model.SecretView{
		Secret:       model.NewSecretRecord(secret.Secret, secret.User.Name),
		AccessTokens: []model.AccessTokenRecord{},
	}
	if !secret.ValidAt(at) {
		return view, nil
	}

	tokens, err := store.AccessTokens.ListValidBySecret(ctx, secret.ID, at)
	if err != nil {
		return model.SecretView{}, err
	}
	for _, token := range tokens {
		view.AccessTokens = append(view.AccessTokens, model.NewAccessTokenRecord(token, secret.Name))
	}
	return view, nil
}
