// Package credential hashes secret material and generates opaque values.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxSecretBytes is the longest plaintext bcrypt accepts.
const MaxSecretBytes = 72

var ErrSecretTooLong = errors.New("secret exceeds 72 bytes")

type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher builds a hasher with the given bcrypt work factor. It also hashes
// a throwaway value at that cost so that lookups for unknown secrets can spend
// the same time as real comparisons.
func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("lobbyist-absent-secret"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Hasher{cost: cost, dummy: dummy}, nil
}

// HashSecret salts and hashes plaintext. Two calls on the same input produce
// different hashes that both verify.
func (h *Hasher) HashSecret(plaintext string) (string, error) {
	if len(plaintext) > MaxSecretBytes {
		return "", ErrSecretTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

func (h *Hasher) VerifySecret(plaintext string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// VerifyAbsent performs a comparison that always fails.
func (h *Hasher) VerifyAbsent(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
	return false
}

// GenerateOpaqueValue returns a URL-safe string carrying at least entropyBits
// bits from crypto/rand.
func GenerateOpaqueValue(entropyBits int) (string, error) {
	if entropyBits <= 0 {
		return "", fmt.Errorf("entropy must be positive, got %d", entropyBits)
	}

	buf := make([]byte, (entropyBits+7)/8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
