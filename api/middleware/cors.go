package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/solespace/solespace-backend/pkg/config"
)

// CORS returns middleware that applies the configured origin policy. The
// CSRF header must be allowed for browser checkouts to succeed.
func CORS(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", csrfHeader(cfg), "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
