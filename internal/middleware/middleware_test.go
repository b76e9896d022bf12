package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobbyist/internal/model"
)

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestParseAuthorization(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   Presented
	}{
		{"absent", "", Presented{Scheme: SchemeNone}},
		{"bearer", "Bearer abc", Presented{Scheme: SchemeBearer, Token: "abc"}},
		{"bearer lower case", "bearer  abc ", Presented{Scheme: SchemeBearer, Token: "abc"}},
		{"bearer without token", "Bearer", Presented{Scheme: SchemeMalformed}},
		{"basic", "Basic YWxpY2U6aHVudGVyMnBhc3M=", Presented{Scheme: SchemeBasic, Name: "alice", Secret: "hunter2pass"}},
		{"basic not base64", "Basic !!!", Presented{Scheme: SchemeMalformed}},
		{"unknown scheme", "Digest abc", Presented{Scheme: SchemeMalformed}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			assert.Equal(t, tc.want, ParseAuthorization(r))
		})
	}
}

func TestRequireBearer(t *testing.T) {
	h := Credentials(RequireBearer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", BearerFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetBasicAuth("alice", "hunter2pass")
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
}

func TestRequireBasic(t *testing.T) {
	h := Credentials(RequireBasic(http.HandlerFunc(ok)))

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.SetBasicAuth("alice", "hunter2pass")
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="lobbyist"`, rec.Header().Get("WWW-Authenticate"))
}

func TestOptionalBearer(t *testing.T) {
	h := Credentials(OptionalBearer(http.HandlerFunc(ok)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Token abc")
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServerTimeIsStampedOnce(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	calls := 0
	clock := func() time.Time {
		calls++
		return fixed
	}

	var seen []time.Time
	h := ServerTime(clock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, ServerTimeFromContext(r.Context()), ServerTimeFromContext(r.Context()))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 1, calls)
	require.Len(t, seen, 2)
	assert.True(t, seen[0].Equal(fixed))
	assert.Equal(t, time.UTC, seen[0].Location())
	assert.Equal(t, seen[0], seen[1])
}

func TestAcceptJSON(t *testing.T) {
	h := AcceptJSON(http.HandlerFunc(ok))

	for accept, want := range map[string]int{
		"":                           http.StatusNoContent,
		"application/json":           http.StatusNoContent,
		"text/html, */*;q=0.1":       http.StatusNoContent,
		"application/*":              http.StatusNoContent,
		"text/html":                  http.StatusNotAcceptable,
		"application/json;q=0, text": http.StatusNotAcceptable,
	} {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if accept != "" {
			r.Header.Set("Accept", accept)
		}
		h.ServeHTTP(rec, r)
		assert.Equal(t, want, rec.Code, "Accept: %q", accept)
	}
}

func TestRecoveryRendersEnvelope(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"INTERNAL_ERROR","message":"unexpected server error"}}`, rec.Body.String())
}

func TestLoggingTagsRequests(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	var requestID string
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = RequestIDFromContext(r.Context())
		writeError(w, http.StatusForbidden, "FORBIDDEN", "cannot read secret")
	}))

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/secrets/abc", nil)
	r.Header.Set("Authorization", "Bearer should-not-appear")
	h.ServeHTTP(rec, r)

	require.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(requestIDHeader))

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"error_code":"FORBIDDEN"`)
	assert.Contains(t, out, requestID)
	assert.NotContains(t, out, "should-not-appear")
}

func TestLoggingOmitsPathParameters(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	const token = "tXiFSloBXAvX_FPBUkSihPhH57lAjZj9z509tdAct3A"

	r := chi.NewRouter()
	r.Use(Logging)
	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/access/{value}", ok)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/access/"+token, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/access/"+token, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	out := buf.String()
	assert.Contains(t, out, `"route":"/api/v1/access/{value}"`)
	assert.Contains(t, out, `"route":"unmatched"`)
	assert.NotContains(t, out, token)
}

func TestTimeoutRendersEnvelope(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	h := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request timed out"}}`, rec.Body.String())
}

func TestTimeoutKeepsHandlerHeaders(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "pong", rec.Body.String())
}
