package middleware

import (
	"context"
	"net/http"
	"strings"
)

type Scheme int

const (
	SchemeNone Scheme = iota
	SchemeBearer
	SchemeBasic
	SchemeMalformed
)

// Presented is the credential a request carried in its Authorization header.
// Nothing here is verified; the service layer decides what it is worth.
type Presented struct {
	Scheme Scheme
	Token  string
	Name   string
	Secret string
}

const credentialsContextKey contextKey = "credentials"

// ParseAuthorization splits an Authorization header into a bearer token or a
// basic name and secret. Anything else is SchemeMalformed.
func ParseAuthorization(r *http.Request) Presented {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return Presented{Scheme: SchemeNone}
	}

	scheme, rest, _ := strings.Cut(header, " ")
	switch strings.ToLower(scheme) {
	case "bearer":
		token := strings.TrimSpace(rest)
		if token == "" {
			return Presented{Scheme: SchemeMalformed}
		}
		return Presented{Scheme: SchemeBearer, Token: token}
	case "basic":
		name, secret, ok := r.BasicAuth()
		if !ok || name == "" {
			return Presented{Scheme: SchemeMalformed}
		}
		return Presented{Scheme: SchemeBasic, Name: name, Secret: secret}
	}
	return Presented{Scheme: SchemeMalformed}
}

// Credentials stores the parsed Authorization header on the request context.
func Credentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), credentialsContextKey, ParseAuthorization(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func CredentialsFromContext(ctx context.Context) Presented {
	p, _ := ctx.Value(credentialsContextKey).(Presented)
	return p
}

// BearerFromContext returns the presented bearer token, or "" for any other
// presentation.
func BearerFromContext(ctx context.Context) string {
	p := CredentialsFromContext(ctx)
	if p.Scheme != SchemeBearer {
		return ""
	}
	return p.Token
}

func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CredentialsFromContext(r.Context()).Scheme != SchemeBearer {
			w.Header().Set("WWW-Authenticate", `Bearer realm="lobbyist"`)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireBasic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CredentialsFromContext(r.Context()).Scheme != SchemeBasic {
			w.Header().Set("WWW-Authenticate", `Basic realm="lobbyist"`)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid basic credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OptionalBearer lets requests without credentials through but still rejects
// a header that cannot be parsed as a bearer token.
func OptionalBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch CredentialsFromContext(r.Context()).Scheme {
		case SchemeNone, SchemeBearer:
			next.ServeHTTP(w, r)
		default:
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
		}
	})
}
