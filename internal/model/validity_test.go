package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidMandatory(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(time.Hour)

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before creation", created.Add(-time.Microsecond), false},
		{"at creation", created, true},
		{"inside window", created.Add(30 * time.Minute), true},
		{"at expiry", expires, true},
		{"after expiry", expires.Add(time.Microsecond), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ValidMandatory(created, expires, tc.at))

			token := AccessToken{CreatedAt: created, ExpiresAt: expires}
			require.Equal(t, tc.want, token.ValidAt(tc.at))
		})
	}
}

func TestValidOptional(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(time.Hour)

	cases := []struct {
		name    string
		expires *time.Time
		at      time.Time
		want    bool
	}{
		{"before creation without expiry", nil, created.Add(-time.Microsecond), false},
		{"at creation without expiry", nil, created, true},
		{"far future without expiry", nil, created.AddDate(100, 0, 0), true},
		{"before creation with expiry", &expires, created.Add(-time.Microsecond), false},
		{"at creation with expiry", &expires, created, true},
		{"at expiry", &expires, expires, true},
		{"after expiry", &expires, expires.Add(time.Microsecond), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ValidOptional(created, tc.expires, tc.at))

			user := User{CreatedAt: created, ExpiresAt: tc.expires}
			require.Equal(t, tc.want, user.ValidAt(tc.at))
		})
	}
}

func TestChainValidityChecksEveryHop(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	chain := RefreshTokenChain{
		RefreshToken: RefreshToken{CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)},
		AccessToken:  AccessToken{CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)},
		Secret:       Secret{CreatedAt: now.Add(-time.Hour)},
		User:         User{CreatedAt: now.Add(-time.Hour)},
	}
	require.True(t, chain.ValidAt(now))

	expiredUser := chain
	expiredUser.User.ExpiresAt = &past
	require.False(t, expiredUser.ValidAt(now))

	expiredSecret := chain
	expiredSecret.Secret.ExpiresAt = &past
	require.False(t, expiredSecret.ValidAt(now))

	expiredAccess := chain
	expiredAccess.AccessToken.ExpiresAt = past
	require.False(t, expiredAccess.ValidAt(now))
}

func TestTimestampNormalizes(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2026, 5, 1, 15, 0, 0, 123456789, loc)
	out := Timestamp(in)

	require.Equal(t, time.UTC, out.Location())
	require.Equal(t, 123456000, out.Nanosecond())
	require.True(t, out.Equal(in.Truncate(time.Microsecond)))
}

func TestRange(t *testing.T) {
	t.Parallel()

	r := Range[time.Duration]{Min: time.Hour, Max: 72 * time.Hour, Default: 24 * time.Hour}

	require.True(t, r.Contains(time.Hour))
	require.True(t, r.Contains(72*time.Hour))
	require.False(t, r.Contains(time.Hour-time.Second))
	require.False(t, r.Contains(72*time.Hour+time.Second))
	require.Equal(t, 24*time.Hour, r.Resolve(0))
	require.Equal(t, 2*time.Hour, r.Resolve(2*time.Hour))
	require.Equal(t, "[1h0m0s; 72h0m0s] (default: 24h0m0s)", r.String())
}
