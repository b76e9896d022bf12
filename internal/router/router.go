package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lobbyist/internal/config"
	"lobbyist/internal/handler"
	"lobbyist/internal/middleware"
)

type Handlers struct {
	User    *handler.UserHandler
	Secret  *handler.SecretHandler
	Token   *handler.TokenHandler
	Health  http.HandlerFunc
	Metrics http.Handler
}

// New mounts the API. clock stamps the server time of each request.
func New(cfg *config.Config, clock func() time.Time, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", h.Health)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(middleware.AcceptJSON)
		api.Use(middleware.ServerTime(clock))
		api.Use(middleware.Credentials)

		api.Route("/users", func(users chi.Router) {
			users.Post("/", h.User.Create)
			users.With(middleware.OptionalBearer).Get("/{name}", h.User.Get)
			users.With(middleware.RequireBearer).Patch("/{name}", h.User.Update)
			users.With(middleware.RequireBearer).Delete("/{name}", h.User.Delete)
		})

		api.Route("/secrets", func(secrets chi.Router) {
			secrets.Use(middleware.RequireBearer)
			secrets.Post("/", h.Secret.Create)
			secrets.Get("/{name}", h.Secret.Get)
			secrets.Patch("/{name}", h.Secret.Update)
			secrets.Delete("/{name}", h.Secret.Delete)
		})

		api.With(middleware.RequireBasic).Post("/access", h.Token.CreateAccess)
		api.With(middleware.RequireBearer).Get("/access/{value}", h.Token.Get)
		api.With(middleware.RequireBearer).Delete("/access/{value}", h.Token.Delete)
		api.With(middleware.RequireBearer).Post("/refresh", h.Token.Refresh)
	})

	return r
}
