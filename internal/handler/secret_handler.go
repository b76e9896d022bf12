package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lobbyist/internal/middleware"
	"lobbyist/internal/model"
	"lobbyist/internal/service"
)

type SecretHandler struct {
	service *service.SecretService
}

func NewSecretHandler(service *service.SecretService) *SecretHandler {
	return &SecretHandler{service: service}
}

func (h *SecretHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateSecretRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	expiresAt, err := epochSeconds("expire_ts", payload.ExpireTS)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	view, err := h.service.CreateSecret(ctx, middleware.ServerTimeFromContext(ctx), middleware.BearerFromContext(ctx), service.CreateSecretInput{
		ExpiresAt: expiresAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, view)
}

func (h *SecretHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.ReadSecret(ctx, middleware.ServerTimeFromContext(ctx), chi.URLParam(r, "name"), middleware.BearerFromContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, view)
}

func (h *SecretHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.UpdateSecretRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	expiresAt, err := epochSeconds("expire_ts", payload.ExpireTS)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	view, err := h.service.UpdateSecret(ctx, middleware.ServerTimeFromContext(ctx), chi.URLParam(r, "name"), middleware.BearerFromContext(ctx), service.UpdateSecretInput{
		Value:     payload.Value,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, view)
}

func (h *SecretHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.DeleteSecret(ctx, middleware.ServerTimeFromContext(ctx), chi.URLParam(r, "name"), middleware.BearerFromContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, view)
}
