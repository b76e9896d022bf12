package service

import (
	"context"
	"time"

	"lobbyist/internal/credential"
	"lobbyist/internal/model"
	"lobbyist/internal/repository"
)

// Lookup selects whether a target is loaded only while valid or regardless
// of its window.
type Lookup int

const (
	LookupValid Lookup = iota
	LookupAny
)

// Verdict is the outcome of resolving a target and a caller. Authorized is
// true only when both resolved and share the same root user.
type Verdict[T any] struct {
	Target     *T
	Caller     *model.AccessTokenChain
	Authorized bool
}

type Authorizer struct {
	hasher *credential.Hasher
}

func NewAuthorizer(hasher *credential.Hasher) *Authorizer {
	return &Authorizer{hasher: hasher}
}

func authorize[T any](target *T, caller *model.AccessTokenChain, owner func(*T) string) Verdict[T] {
	return Verdict[T]{
		Target:     target,
		Caller:     caller,
		Authorized: target != nil && caller != nil && owner(target) == caller.User.ID,
	}
}

// Caller resolves a presented access token through its whole chain. Empty,
// unknown and expired values all resolve to nil.
func (a *Authorizer) Caller(ctx context.Context, store *repository.Store, at time.Time, bearer string) (*model.AccessTokenChain, error) {
	if bearer == "" {
		return nil, nil
	}
	return store.AccessTokens.FindValidByValue(ctx, bearer, at)
}

func (a *Authorizer) AuthorizeUser(ctx context.Context, store *repository.Store, at time.Time, name string, bearer string, lookup Lookup) (Verdict[model.User], error) {
	var target *model.User
	var err error
	if lookup == LookupValid {
		target, err = store.Users.FindValidByName(ctx, name, at)
	} else {
		target, err = store.Users.FindByName(ctx, name)
	}
	if err != nil {
		return Verdict[model.User]{}, err
	}

	caller, err := a.Caller(ctx, store, at, bearer)
	if err != nil {
		return Verdict[model.User]{}, err
	}
	return authorize(target, caller, func(u *model.User) string { return u.ID }), nil
}

func (a *Authorizer) AuthorizeSecret(ctx context.Context, store *repository.Store, at time.Time, name string, bearer string, lookup Lookup) (Verdict[model.SecretChain], error) {
	var target *model.SecretChain
	var err error
	if lookup == LookupValid {
		target, err = store.Secrets.FindValidByName(ctx, name, at)
	} else {
		target, err = store.Secrets.FindByName(ctx, name)
	}
	if err != nil {
		return Verdict[model.SecretChain]{}, err
	}

	caller, err := a.Caller(ctx, store, at, bearer)
	if err != nil {
		return Verdict[model.SecretChain]{}, err
	}
	return authorize(target, caller, func(s *model.SecretChain) string { return s.User.ID }), nil
}

func (a *Authorizer) AuthorizeAccessToken(ctx context.Context, store *repository.Store, at time.Time, value string, bearer string, lookup Lookup) (Verdict[model.AccessTokenChain], error) {
	var target *model.AccessTokenChain
	var err error
	if lookup == LookupValid {
		target, err = store.AccessTokens.FindValidByValue(ctx, value, at)
	} else {
		target, err = store.AccessTokens.FindByValue(ctx, value)
	}
	if err != nil {
		return Verdict[model.AccessTokenChain]{}, err
	}

	caller, err := a.Caller(ctx, store, at, bearer)
	if err != nil {
		return Verdict[model.AccessTokenChain]{}, err
	}
	return authorize(target, caller, func(t *model.AccessTokenChain) string { return t.User.ID }), nil
}

// AuthenticateSecret verifies a plaintext against a valid secret. Unknown
// names, expired chains and wrong values all return ErrInvalidCredentials
// after a bcrypt comparison of the same cost.
func (a *Authorizer) AuthenticateSecret(ctx context.Context, store *repository.Store, at time.Time, name string, plaintext string) (*model.SecretChain, error) {
	secret, err := store.Secrets.FindValidByName(ctx, name, at)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		a.hasher.VerifyAbsent(plaintext)
		return nil, model.ErrInvalidCredentials
	}
	if !a.hasher.VerifySecret(plaintext, secret.Hash) {
		return nil, model.ErrInvalidCredentials
	}
	return secret, nil
}
