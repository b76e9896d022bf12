package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobbyist/internal/model"
	"lobbyist/pkg/apierror"
)

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "invalid credentials",
			err:    model.ErrInvalidCredentials,
			status: http.StatusUnauthorized,
			body:   `{"success":false,"error":{"code":"UNAUTHORIZED","message":"secret is invalid or does not match a valid hash"}}`,
		},
		{
			name:   "bad request keeps fields",
			err:    apierror.BadRequest("invalid user", map[string]string{"name": "must provide username"}),
			status: http.StatusBadRequest,
			body:   `{"success":false,"error":{"code":"BAD_REQUEST","message":"invalid user","fields":{"name":"must provide username"}}}`,
		},
		{
			name:   "forbidden",
			err:    apierror.Forbidden("cannot read secret"),
			status: http.StatusForbidden,
			body:   `{"success":false,"error":{"code":"FORBIDDEN","message":"cannot read secret"}}`,
		},
		{
			name:   "internal hides its cause",
			err:    apierror.Internal("the store could not complete the request", errors.New("database is locked")),
			status: http.StatusInternalServerError,
			body:   `{"success":false,"error":{"code":"INTERNAL_ERROR","message":"the store could not complete the request"}}`,
		},
		{
			name:   "unclassified",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			body:   `{"success":false,"error":{"code":"INTERNAL_ERROR","message":"unexpected server error"}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestDecodeBody(t *testing.T) {
	var payload model.TokenLifetimeRequest

	r := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	require.NoError(t, decodeBody(httptest.NewRecorder(), r, &payload))
	assert.Zero(t, payload.AccessTokenLifetime)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"access_token_lifetime": 7200}`))
	require.NoError(t, decodeBody(httptest.NewRecorder(), r, &payload))
	assert.Equal(t, int64(7200), payload.AccessTokenLifetime)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"access_token_lifetime": "soon"}`))
	err := decodeBody(httptest.NewRecorder(), r, &payload)
	assert.True(t, apierror.Is(err, apierror.CodeBadRequest))
}

func TestEpochSeconds(t *testing.T) {
	got, err := epochSeconds("expire_ts", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	v := int64(1777628400)
	got, err = epochSeconds("expire_ts", &v)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Unix(v, 0)))

	for _, bad := range []int64{-1, maxEpochSeconds + 1} {
		_, err = epochSeconds("expire_ts", &bad)
		assert.True(t, apierror.Is(err, apierror.CodeBadRequest), "value %d", bad)
	}
}

func TestLifetimes(t *testing.T) {
	l, err := lifetimes(3600, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, l.Access)
	assert.Zero(t, l.Refresh)

	_, err = lifetimes(0, -5)
	require.Error(t, err)
	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Fields, "refresh_token_lifetime")
}
