package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lobbyist/internal/middleware"
	"lobbyist/internal/model"
	"lobbyist/internal/service"
)

type UserHandler struct {
	service *service.UserService
}

func NewUserHandler(service *service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateUserRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	l, err := lifetimes(payload.AccessTokenLifetime, payload.RefreshTokenLifetime)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.service.CreateUser(r.Context(), middleware.ServerTimeFromContext(r.Context()), service.CreateUserInput{
		Name:      payload.Name,
		Password:  payload.Secret,
		Lifetimes: l,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.ReadUser(ctx, middleware.ServerTimeFromContext(ctx), chi.URLParam(r, "name"), middleware.BearerFromContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, view)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.UpdateUserRequest
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
	view, err := h.service.UpdateUser(ctx, middleware.ServerTimeFromContext(ctx), chi.URLParam(r, "name"), middleware.BearerFromContext(ctx), service.UpdateUserInput{
		ExpiresAt: expiresAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, view)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.DeleteUser(ctx, middleware.ServerTimeFromContext(ctx), chi.URLParam(r, "name"), middleware.BearerFromContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, view)
}
