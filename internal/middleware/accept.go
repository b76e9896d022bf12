package middleware

import (
	"mime"
	"net/http"
	"strings"
)

// AcceptJSON answers 406 when the client's Accept header rules out JSON.
// A missing header accepts anything.
func AcceptJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := strings.TrimSpace(r.Header.Get("Accept"))
		if accept != "" && !acceptsJSON(accept) {
			writeError(w, http.StatusNotAcceptable, "NOT_ACCEPTABLE", "responses are only available as application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func acceptsJSON(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if q, ok := params["q"]; ok && strings.Trim(q, "0.") == "" {
			continue
		}
		switch mediaType {
		case "application/json", "application/*", "*/*":
			return true
		}
	}
	return false
}
