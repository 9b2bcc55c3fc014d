package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the HTTP API. A nil limiter disables rate limiting.
func NewRouter(d Deps, limiter *RateLimiter) http.Handler {
	h := NewHandlers(d)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if d.Config.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(Recover(h.log, h.development))
	r.Use(AccessLog(h.log))
	r.Use(Metrics)
	r.Use(CORS(d.Config.CORSOrigin))

	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.notFound)

	r.Get("/health", h.healthz)
	r.Get("/health/live", h.live)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimit(limiter))

		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/auth/profile", h.profile)
			r.Put("/auth/profile", h.updateProfile)
			r.Post("/auth/logout", h.logout)

			r.Route("/files", func(r chi.Router) {
				r.Get("/", h.listFiles)
				r.Post("/upload", h.uploadFile)
				r.Post("/upload-multiple", h.uploadFiles)
				r.Get("/{id}", h.getFile)
				r.Put("/{id}", h.updateFile)
				r.Delete("/{id}", h.deleteFile)
				r.Get("/{id}/download", h.downloadFile)
				r.Get("/{id}/url", h.fileURL)
				r.Put("/{id}/move", h.moveFile)
			})

			r.Route("/folders", func(r chi.Router) {
				r.Get("/", h.listFolders)
				r.Post("/", h.createFolder)
				r.Get("/{id}", h.getFolder)
				r.Put("/{id}", h.updateFolder)
				r.Delete("/{id}", h.deleteFolder)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.listUsers)
				r.Post("/", h.createUser)
				r.Put("/{id}", h.updateUser)
				r.Delete("/{id}", h.deleteUser)
				r.Patch("/{id}/toggle-status", h.toggleUserStatus)
			})
		})
	})

	return r
}
