package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ayush/ivr-designer/internal/auth"
	"github.com/ayush/ivr-designer/internal/designer"
	"github.com/ayush/ivr-designer/internal/metrics"
	"github.com/ayush/ivr-designer/internal/middleware"
)

type routerDeps struct {
	AllowedOrigins []string
	Logger         *zap.Logger
	Sessions       auth.Sessions
	Auth           *auth.Handler
	Designer       *designer.Handler
	Metrics        *metrics.Collector
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", d.Auth.Register)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.Auth.Register)
			r.Post("/login", d.Auth.Login)
			r.Post("/logout", d.Auth.Logout)
			r.With(middleware.RequireAuth(d.Sessions, d.Logger)).Get("/me", d.Auth.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.Sessions, d.Logger))
			d.Designer.Routes(r)
		})
	})

	return r
}
