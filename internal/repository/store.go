package repository

import "lobbyist/internal/dbx"

// Store bundles the repositories bound to one connection or transaction.
type Store struct {
	Users         *UserRepository
	Secrets       *SecretRepository
	AccessTokens  *AccessTokenRepository
	RefreshTokens *RefreshTokenRepository
}

func New(db dbx.DBTX) *Store {
	return &Store{
		Users:         NewUserRepository(db),
		Secrets:       NewSecretRepository(db),
		AccessTokens:  NewAccessTokenRepository(db),
		RefreshTokens: NewRefreshTokenRepository(db),
	}
}
