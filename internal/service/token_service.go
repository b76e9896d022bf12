package service

import (
	"context"
	"log/slog"
	"time"

	"lobbyist/internal/event"
	"lobbyist/internal/model"
	"lobbyist/internal/repository"
	"lobbyist/internal/txn"
	"lobbyist/pkg/apierror"
)

type TokenService struct {
	base
}

func NewTokenService(deps Deps) *TokenService {
	return &TokenService{base: newBase(deps)}
}

// CreateAccessToken authenticates a secret and mints a token pair under it.
// Every authentication failure is reported as ErrInvalidCredentials.
func (s *TokenService) CreateAccessToken(ctx context.Context, at time.Time, secretName string, plaintext string, l Lifetimes) (pair model.TokenPair, err error) {
	slog.Debug("service.token.create_access_token")
	defer s.track("create_access_token", time.Now(), &err)
	at = model.Timestamp(at)

	lifetimes, err := s.resolveLifetimes(l)
	if err != nil {
		return model.TokenPair{}, err
	}

	var owner string
	pair, err = txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.TokenPair, error) {
		secret, err := s.auth.AuthenticateSecret(ctx, store, at, secretName, plaintext)
		if err != nil {
			return model.TokenPair{}, err
		}
		owner = secret.User.Name

		access, refresh, err := s.mintTokenPair(ctx, store, at, secret.Secret, lifetimes)
		if err != nil {
			return model.TokenPair{}, err
		}
		return model.NewTokenPair(access, refresh, secret.Name), nil
	})
	if err != nil {
		return model.TokenPair{}, err
	}

	s.publish(event.TypeAccessTokenCreated, at, owner, map[string]any{"user": owner, "secret": secretName})
	return pair, nil
}

// RefreshAccessToken trades a valid refresh token for a new pair under the
// same secret. The presented token's access token expires at the request
// instant, which also retires every refresh token chained beneath it. A
// replay at that same instant is refused.
func (s *TokenService) RefreshAccessToken(ctx context.Context, at time.Time, refreshValue string, l Lifetimes) (pair model.TokenPair, err error) {
	slog.Debug("service.token.refresh_access_token")
	defer s.track("refresh_access_token", time.Now(), &err)
	at = model.Timestamp(at)

	if refreshValue == "" {
		return model.TokenPair{}, apierror.Unauthorized("missing refresh token")
	}

	lifetimes, err := s.resolveLifetimes(l)
	if err != nil {
		return model.TokenPair{}, err
	}

	var owner, secretName string
	pair, err = txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.TokenPair, error) {
		chain, err := store.RefreshTokens.FindValidByValue(ctx, refreshValue, at)
		if err != nil {
			return model.TokenPair{}, err
		}
		// Validity is inclusive, so a chain retired at this very instant still
		// matches. Its expiry must lie strictly ahead for a refresh.
		if chain == nil || !chain.AccessToken.ExpiresAt.After(at) {
			return model.TokenPair{}, model.ErrInvalidCredentials
		}
		owner, secretName = chain.User.Name, chain.Secret.Name

		access, refresh, err := s.mintTokenPair(ctx, store, at, chain.Secret, lifetimes)
		if err != nil {
			return model.TokenPair{}, err
		}

		if err := store.AccessTokens.UpdateExpiry(ctx, chain.AccessToken.ID, at); err != nil {
			return model.TokenPair{}, err
		}
		return model.NewTokenPair(access, refresh, chain.Secret.Name), nil
	})
	if err != nil {
		return model.TokenPair{}, err
	}

	s.publish(event.TypeAccessTokenRefreshed, at, owner, map[string]any{"user": owner, "secret": secretName})
	return pair, nil
}

// ReadAccessToken shows a token and its valid refresh tokens to the token's
// own user.
func (s *TokenService) ReadAccessToken(ctx context.Context, at time.Time, value string, bearer string) (view model.AccessTokenView, err error) {
	slog.Debug("service.token.read_access_token")
	defer s.track("read_access_token", time.Now(), &err)
	at = model.Timestamp(at)

	return txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.AccessTokenView, error) {
		verdict, err := s.auth.AuthorizeAccessToken(ctx, store, at, value, bearer, LookupAny)
		if err != nil {
			return model.AccessTokenView{}, err
		}
		if !verdict.Authorized {
			return model.AccessTokenView{}, apierror.Forbidden("cannot read access token")
		}
		return accessTokenView(ctx, store, at, *verdict.Target)
	})
}

// DeleteAccessToken expires a token at the request instant.
func (s *TokenService) DeleteAccessToken(ctx context.Context, at time.Time, value string, bearer string) (view model.AccessTokenView, err error) {
	slog.Debug("service.token.delete_access_token")
	defer s.track("delete_access_token", time.Now(), &err)
	at = model.Timestamp(at)

	if err := requireBearer(bearer); err != nil {
		return model.AccessTokenView{}, err
	}

	var owner string
	view, err = txn.Do(ctx, s.deps.Executor, func(ctx context.Context, store *repository.Store) (model.AccessTokenView, error) {
		verdict, err := s.auth.AuthorizeAccessToken(ctx, store, at, value, bearer, LookupValid)
		if err != nil {
			return model.AccessTokenView{}, err
		}
		if !verdict.Authorized {
			return model.AccessTokenView{}, apierror.Forbidden("cannot delete access token")
		}
		token := verdict.Target
		owner = token.User.Name

		if err := store.AccessTokens.UpdateExpiry(ctx, token.ID, at); err != nil {
			return model.AccessTokenView{}, err
		}
		token.AccessToken.ExpiresAt = at
		return accessTokenView(ctx, store, at, *token)
	})
	if err != nil {
		return model.AccessTokenView{}, err
	}

	s.publish(event.TypeAccessTokenExpired, at, owner, map[string]any{"user": owner, "secret": view.AccessToken.SecretName})
	return view, nil
}

func accessTokenView(ctx context.Context, store *repository.Store, at time.Time, token model.AccessTokenChain) (model.AccessTokenView, error) {
	view := model.AccessTokenView{
		AccessToken:   model.NewAccessTokenRecord(token.AccessToken, token.Secret.Name),
		RefreshTokens: []model.RefreshTokenRecord{},
	}
	if !token.ValidAt(at) {
		return view, nil
	}

	refreshTokens, err := store.RefreshTokens.ListValidByAccessToken(ctx, token.ID, at)
	if err != nil {
		return model.AccessTokenView{}, err
	}
	for _, refresh := range refreshTokens {
		view.RefreshTokens = append(view.RefreshTokens, model.NewRefreshTokenRecord(refresh, token.Value))
	}
	return view, nil
}
