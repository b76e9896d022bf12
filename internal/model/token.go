package model

import "time"

// AccessToken is a short-lived bearer credential minted from a secret. The
// value itself is the bearer secret and the natural lookup key.
type AccessToken struct {
	ID        string
	Value     string
	SecretID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (t AccessToken) ValidAt(at time.Time) bool {
	return ValidMandatory(t.CreatedAt, t.ExpiresAt, at)
}

// RefreshToken mints new access tokens without the secret plaintext.
type RefreshToken struct {
	ID            string
	Value         string
	AccessTokenID string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

func (t RefreshToken) ValidAt(at time.Time) bool {
	return ValidMandatory(t.CreatedAt, t.ExpiresAt, at)
}

// AccessTokenChain is an access token with its secret and user.
type AccessTokenChain struct {
	AccessToken
	Secret Secret
	User   User
}

func (c AccessTokenChain) ValidAt(at time.Time) bool {
	return c.AccessToken.ValidAt(at) && c.Secret.ValidAt(at) && c.User.ValidAt(at)
}

// RefreshTokenChain walks all the way up to the user.
type RefreshTokenChain struct {
	RefreshToken
	AccessToken AccessToken
	Secret      Secret
	User        User
}

func (c RefreshTokenChain) ValidAt(at time.Time) bool {
	return c.RefreshToken.ValidAt(at) &&
		c.AccessToken.ValidAt(at) &&
		c.Secret.ValidAt(at) &&
		c.User.ValidAt(at)
}
