package model

import "time"

// User is the root of every credential chain. A user owns secrets; its expiry
// is set once to deactivate the account and is never cleared.
type User struct {
	ID        string     `json:"-"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"create_ts"`
	ExpiresAt *time.Time `json:"expire_ts,omitempty"`
}

func (u User) ValidAt(at time.Time) bool {
	return ValidOptional(u.CreatedAt, u.ExpiresAt, at)
}

// Secret is credential material owned by a user. The secret named after its
// owner is the primary password; all others are API credentials.
type Secret struct {
	ID        string
	Name      string
	Hash      string
	UserID    string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

func (s Secret) ValidAt(at time.Time) bool {
	return ValidOptional(s.CreatedAt, s.ExpiresAt, at)
}

// SecretChain is a secret loaded together with its owner.
type SecretChain struct {
	Secret
	User User
}

// IsPrimary reports whether the secret is the owner's password.
func (c SecretChain) IsPrimary() bool {
	return c.Secret.Name == c.User.Name
}

// ValidAt checks every hop of the chain.
func (c SecretChain) ValidAt(at time.Time) bool {
	return c.Secret.ValidAt(at) && c.User.ValidAt(at)
}
