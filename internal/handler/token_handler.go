package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lobbyist/internal/middleware"
	"lobbyist/internal/model"
	"lobbyist/internal/service"
)

type TokenHandler struct {
	service *service.TokenService
}

func NewTokenHandler(service *service.TokenService) *TokenHandler {
	return &TokenHandler{service: service}
}

// CreateAccess authenticates with Basic secret-name:value.
func (h *TokenHandler) CreateAccess(w http.ResponseWriter, r *http.Request) {
	l, err := decodeLifetimes(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	presented := middleware.CredentialsFromContext(ctx)
	pair, err := h.service.CreateAccessToken(ctx, middleware.ServerTimeFromContext(ctx), presented.Name, presented.Secret, l)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, pair)
}

// Refresh takes the refresh token as the bearer credential.
func (h *TokenHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	l, err := decodeLifetimes(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	pair, err := h.service.RefreshAccessToken(ctx, middleware.ServerTimeFromContext(ctx), middleware.BearerFromContext(ctx), l)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, pair)
}

func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.ReadAccessToken(ctx, middleware.ServerTimeFromContext(ctx), chi.URLParam(r, "value"), middleware.BearerFromContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, view)
}

func (h *TokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.DeleteAccessToken(ctx, middleware.ServerTimeFromContext(ctx), chi.URLParam(r, "value"), middleware.BearerFromContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, view)
}

func decodeLifetimes(w http.ResponseWriter, r *http.Request) (service.Lifetimes, error) {
	var payload model.TokenLifetimeRequest
	if err := decodeBody(w, r, &payload); err != nil {
		return service.Lifetimes{}, err
	}
	return lifetimes(payload.AccessTokenLifetime, payload.RefreshTokenLifetime)
}

func lifetimes(accessSeconds, refreshSeconds int64) (service.Lifetimes, error) {
	access, err := lifetimeSeconds("access_token_lifetime", accessSeconds)
	if err != nil {
		return service.Lifetimes{}, err
	}
	refresh, err := lifetimeSeconds("refresh_token_lifetime", refreshSeconds)
	if err != nil {
		return service.Lifetimes{}, err
	}
	return service.Lifetimes{Access: access, Refresh: refresh}, nil
}
