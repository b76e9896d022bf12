package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"lobbyist/internal/middleware"
	"lobbyist/internal/model"
	"lobbyist/pkg/apierror"
)

// maxEpochSeconds is 9999-12-31T23:59:59Z.
const maxEpochSeconds = 253402300799

const maxBodyBytes = 64 << 10

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError renders every failure through the same envelope. Failed secret
// authentication always produces the same bytes, whatever the cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    apierror.CodeInternal,
		Message: "unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = "secret is invalid or does not match a valid hash"
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
		body.Fields = apiErr.Fields
		if apiErr.Code == apierror.CodeInternal {
			slog.Error("request failed",
				"request_id", middleware.RequestIDFromContext(r.Context()),
				"error", err,
				"cause", errors.Unwrap(apiErr),
			)
		}
	default:
		slog.Error("unhandled error",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

// decodeBody reads an optional JSON body. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apierror.BadRequest("invalid JSON body", nil)
}

// epochSeconds converts a wire expiry to an instant.
func epochSeconds(field string, v *int64) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	if *v < 0 || *v > maxEpochSeconds {
		return nil, apierror.BadRequest("invalid expire time", map[string]string{
			field: "must be an epoch second between 0 and 253402300799",
		})
	}
	t := time.Unix(*v, 0).UTC()
	return &t, nil
}

// lifetimeSeconds converts a wire lifetime. Zero selects the configured
// default downstream.
func lifetimeSeconds(field string, v int64) (time.Duration, error) {
	if v < 0 || v > math.MaxInt64/int64(time.Second) {
		return 0, apierror.BadRequest("invalid lifetime", map[string]string{
			field: "must be a non-negative number of seconds",
		})
	}
	return time.Duration(v) * time.Second, nil
}
