package credential

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashSecret(t *testing.T) {
	t.Parallel()

	hasher, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("salts every hash", func(t *testing.T) {
		first, err := hasher.HashSecret("hunter2pass")
		require.NoError(t, err)
		second, err := hasher.HashSecret("hunter2pass")
		require.NoError(t, err)

		require.NotEqual(t, first, second)
		require.True(t, hasher.VerifySecret("hunter2pass", first))
		require.True(t, hasher.VerifySecret("hunter2pass", second))
	})

	t.Run("rejects the wrong plaintext", func(t *testing.T) {
		hash, err := hasher.HashSecret("hunter2pass")
		require.NoError(t, err)

		require.False(t, hasher.VerifySecret("hunter3pass", hash))
		require.False(t, hasher.VerifySecret("", hash))
	})

	t.Run("rejects input bcrypt would truncate", func(t *testing.T) {
		_, err := hasher.HashSecret(strings.Repeat("a", MaxSecretBytes+1))
		require.ErrorIs(t, err, ErrSecretTooLong)
	})

	t.Run("never stores plaintext", func(t *testing.T) {
		hash, err := hasher.HashSecret("hunter2pass")
		require.NoError(t, err)
		require.NotContains(t, hash, "hunter2pass")
	})

	t.Run("absent secrets never verify", func(t *testing.T) {
		require.False(t, hasher.VerifyAbsent("lobbyist-absent-secret"))
	})
}

func TestNewHasherRejectsCostOutOfRange(t *testing.T) {
	t.Parallel()

	_, err := NewHasher(bcrypt.MinCost - 1)
	require.Error(t, err)
	_, err = NewHasher(bcrypt.MaxCost + 1)
	require.Error(t, err)
}

func TestGenerateOpaqueValue(t *testing.T) {
	t.Parallel()

	for _, bits := range []int{1, 128, 192, 256, 384} {
		value, err := GenerateOpaqueValue(bits)
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(value)
		require.NoError(t, err, "value must be url-safe base64")
		require.GreaterOrEqual(t, len(raw)*8, bits)
		require.NotContains(t, value, "=")
		require.NotContains(t, value, "+")
		require.NotContains(t, value, "/")
	}

	seen := map[string]struct{}{}
	for i := 0; i < 256; i++ {
		value, err := GenerateOpaqueValue(128)
		require.NoError(t, err)
		_, dup := seen[value]
		require.False(t, dup)
		seen[value] = struct{}{}
	}

	_, err := GenerateOpaqueValue(0)
	require.Error(t, err)
}

func TestSecretValueEntropyFitsBcrypt(t *testing.T) {
	t.Parallel()

	value, err := GenerateOpaqueValue(384)
	require.NoError(t, err)
	require.LessOrEqual(t, len(value), MaxSecretBytes)
}
