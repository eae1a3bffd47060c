// Package server assembles the HTTP router.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"meeting-scheduler-api/internal/auth"
	"meeting-scheduler-api/internal/middleware"
)

const serviceName = "meeting-scheduler-server"

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Logger         zerolog.Logger
	Tokens         *auth.Tokens
	GraphQL        http.Handler
	Store          Pinger
	ClientOrigin   string
	RequestTimeout time.Duration
}

func NewRouter(o Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(o.Logger))
	r.Use(accessLog)
	r.Use(chiMiddleware.Recoverer)
	if o.RequestTimeout > 0 {
		r.Use(chiMiddleware.Timeout(o.RequestTimeout))
	}
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{o.ClientOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.ClientIP)
	r.Use(middleware.Authenticate(o.Tokens))

	r.Get("/", health(o.Store))
	r.Handle("/graphql", o.GraphQL)

	return r
}

var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("request_id", middleware.RequestIDFrom(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
})

// securityHeaders sets the usual hardening headers for an API that serves no HTML.
func securityHeaders(next http.Handler) http.Handler {
	return chi.Chain(
		chiMiddleware.SetHeader("X-Content-Type-Options", "nosniff"),
		chiMiddleware.SetHeader("X-Frame-Options", "DENY"),
		chiMiddleware.SetHeader("Referrer-Policy", "no-referrer"),
		chiMiddleware.SetHeader("Cross-Origin-Resource-Policy", "same-site"),
	).Handler(next)
}

func health(st Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if st != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := st.Ping(ctx); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("store ping failed")
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status, "service": serviceName})
	}
}
