package service

import (
	"context"
	"errors"
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

type CreateUserInput struct {
	Name      string
	Password  string
	Lifetimes Lifetimes
}

type UpdateUserInput struct {
	ExpiresAt *time.Time
}

type UserService struct {
	base
}

func NewUserService(deps Deps) *UserService {
	return &UserService{base: newBase(deps)}
}

func validUsernameChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	}
	return false
}

func (s *UserService) validateCreate(in CreateUserInput) (Lifetimes, error) {
	p := s.deps.Policy
	fields := map[string]string{}

	switch {
	case in.Name == "":
		fields["name"] = "must provide username"
	case !p.UsernameLength.Contains(len(in.Name)):
		fields["name"] = fmt.Sprintf("username length must be between [%d; %d]", p.UsernameLength.Min, p.UsernameLength.Max)
	default:
		for _, r := range in.Name {
			if !validUsernameChar(r) {
				fields["name"] = "username must only contain letters, digits, '_', '-' and '.'"
				break
			}
		}
	}

	switch {
	case in.Password == "":
		fields["secret"] = "must provide secret"
	case len(in.Password) < p.PasswordMinLen:
		fields["secret"] = fmt.Sprintf("secret length must be at least %d", p.PasswordMinLen)
	case len(in.Password) > credential.MaxSecretBytes:
		fields["secret"] = fmt.Sprintf("secret length must be at most %d bytes", credential.MaxSecretBytes)
	}

	lifetimes, err := s.resolveLifetimes(in.Lifetimes)
	if err != nil {
		var apiErr *apierror.APIError
		if !errors.As(err, &apiErr) {
			return Lifetimes{}, err
		}
		for k, v := range apiErr.Fields {
			fields[k] = v
		}
	}

	if len(fields) > 0 {
		return Lifetimes{}, apierror.BadRequest("invalid user", fields)
	}
	return lifetimes, nil
}

// CreateUser registers a user with its primary password secret and a first
// token pair, all in one transaction.
func (s *UserService) CreateUser(ctx context.Context, at time.Time, in CreateUserInput) (created model.CreatedUser, err error) {
	slog.Debug("service.user.create_user", "name", in.Name)
	defer s.track("create_user", time.Now(), &err)
	at = model.Timestamp(at)

	lifetimes, err := s.validateCreate(in)
	if err != nil {
		return model.CreatedUser{}, err
	}

	hash, err := s.deps.Hasher.HashSecret(in.Password)
	if err != nil {
		return model.CreatedUser{}, fmt.Errorf("hash password: %w", err)
	}

	created, err = txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.CreatedUser, error) {
		user := model.User{ID: uuid.NewString(), Name: in.Name, CreatedAt: at}
		if err := store.Users.Create(ctx, user); err != nil {
			return model.CreatedUser{}, err
		}

		secret := model.Secret{ID: uuid.NewString(), Name: in.Name, Hash: hash, UserID: user.ID, CreatedAt: at}
		if err := store.Secrets.Create(ctx, secret); err != nil {
			return model.CreatedUser{}, err
		}

		access, refresh, err := s.mintTokenPair(ctx, store, at, secret, lifetimes)
		if err != nil {
			return model.CreatedUser{}, err
		}

		view, err := privateUserView(ctx, store, at, user)
		if err != nil {
			return model.CreatedUser{}, err
		}
		return model.CreatedUser{UserView: view, Tokens: model.NewTokenPair(access, refresh, secret.Name)}, nil
	})
	if err != nil {
		return model.CreatedUser{}, err
	}

	s.publish(event.TypeUserCreated, at, in.Name, map[string]any{"user": in.Name})
	return created, nil
}

// ReadUser returns the private projection to the owner and the public one to
// everyone else. User names are public, so an absent user is NotFound.
func (s *UserService) ReadUser(ctx context.Context, at time.Time, name string, bearer string) (view model.UserView, err error) {
	slog.Debug("service.user.read_user", "name", name)
	defer s.track("read_user", time.Now(), &err)
	at = model.Timestamp(at)

	return txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.UserView, error) {
		verdict, err := s.auth.AuthorizeUser(ctx, store, at, name, bearer, LookupAny)
		if err != nil {
			return model.UserView{}, err
		}
		if verdict.Target == nil {
			return model.UserView{}, apierror.NotFound("user does not exist", name)
		}
		if !verdict.Authorized {
			return publicUserView(*verdict.Target), nil
		}
		return privateUserView(ctx, store, at, *verdict.Target)
	})
}

// UpdateUser sets the user's expiry. Expiry can only move earlier and never
// before the user's creation.
func (s *UserService) UpdateUser(ctx context.Context, at time.Time, name string, bearer string, in UpdateUserInput) (view model.UserView, err error) {
	slog.Debug("service.user.update_user", "name", name)
	defer s.track("update_user", time.Now(), &err)
	at = model.Timestamp(at)

	if err := requireBearer(bearer); err != nil {
		return model.UserView{}, err
	}

	var expired bool
	view, err = txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.UserView, error) {
		user, err := s.ownedUser(ctx, store, at, name, bearer, "cannot update user")
		if err != nil {
			return model.UserView{}, err
		}

		if in.ExpiresAt != nil {
			expiresAt := model.Timestamp(*in.ExpiresAt)
			if err := checkExpiry(expiresAt, user.CreatedAt, user.ExpiresAt); err != nil {
				return model.UserView{}, err
			}
			if err := store.Users.UpdateExpiry(ctx, user.ID, expiresAt); err != nil {
				return model.UserView{}, err
			}
			user.ExpiresAt = &expiresAt
			expired = true
		}

		return privateUserView(ctx, store, at, *user)
	})
	if err != nil {
		return model.UserView{}, err
	}

	if expired {
		s.publish(event.TypeUserExpired, at, name, map[string]any{"user": name, "expire_ts": view.User.ExpiresAt})
	}
	return view, nil
}

// DeleteUser expires the user at the request instant.
func (s *UserService) DeleteUser(ctx context.Context, at time.Time, name string, bearer string) (view model.UserView, err error) {
	slog.Debug("service.user.delete_user", "name", name)
	defer s.track("delete_user", time.Now(), &err)
	at = model.Timestamp(at)

	if err := requireBearer(bearer); err != nil {
		return model.UserView{}, err
	}

	view, err = txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.UserView, error) {
		user, err := s.ownedUser(ctx, store, at, name, bearer, "cannot delete user")
		if err != nil {
			return model.UserView{}, err
		}
		if err := store.Users.UpdateExpiry(ctx, user.ID, at); err != nil {
			return model.UserView{}, err
		}
		user.ExpiresAt = &at
		return publicUserView(*user), nil
	})
	if err != nil {
		return model.UserView{}, err
	}

	s.publish(event.TypeUserExpired, at, name, map[string]any{"user": name, "expire_ts": at})
	return view, nil
}

func (s *UserService) ownedUser(ctx context.Context, store *repository.Store, at time.Time, name string, bearer string, denied string) (*model.User, error) {
	verdict, err := s.auth.AuthorizeUser(ctx, store, at, name, bearer, LookupAny)
	if err != nil {
		return nil, err
	}
	if verdict.Target == nil {
		return nil, apierror.NotFound("user does not exist", name)
	}
	if !verdict.Authorized {
		return nil, apierror.Forbidden(denied)
	}
	return verdict.Target, nil
}

func publicUserView(user model.User) model.UserView {
	return model.UserView{Visibility: model.VisibilityPublic, User: user}
}

// privateUserView lists the user's valid secrets and every token whose chain
// is valid at the given instant.
func privateUserView(ctx context.Context, store *repository.Store, at time.Time, user model.User) (model.UserView, error) {
	secrets, err := store.Secrets.ListValidByUser(ctx, user.ID, at)
	if err != nil {
		return model.UserView{}, err
	}
	accessTokens, err := store.AccessTokens.ListValidByUser(ctx, user.ID, at)
	if err != nil {
		return model.UserView{}, err
	}
	refreshTokens, err := store.RefreshTokens.ListValidByUser(ctx, user.ID, at)
	if err != nil {
		return model.UserView{}, err
	}

	view := model.UserView{
		Visibility:    model.VisibilityPrivate,
		User:          user,
		Secrets:       make([]model.SecretRecord, 0, len(secrets)),
		AccessTokens:  make([]model.AccessTokenRecord, 0, len(accessTokens)),
		RefreshTokens: make([]model.RefreshTokenRecord, 0, len(refreshTokens)),
	}
	for _, secret := range secrets {
		view.Secrets = append(view.Secrets, model.NewSecretRecord(secret, user.Name))
	}
	for _, token := range accessTokens {
		view.AccessTokens = append(view.AccessTokens, model.NewAccessTokenRecord(token.AccessToken, token.Secret.Name))
	}
	for _, token := range refreshTokens {
		view.RefreshTokens = append(view.RefreshTokens, model.NewRefreshTokenRecord(token.RefreshToken, token.AccessToken.Value))
	}
	return view, nil
}
