package http

import (
	"github.com/albocarride/server/internal/http/handlers"
	"github.com/albocarride/server/internal/middleware"
	"github.com/albocarride/server/internal/ratelimit"
	"github.com/albocarride/server/internal/repo"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps holds what the router wires into handlers
type RouterDeps struct {
	OTPHandler    *handlers.OTPHandler
	HealthHandler *handlers.HealthHandler
	// SendLimiter and VerifyLimiter are per-IP limits for the two OTP endpoints.
	SendLimiter   ratelimit.Limiter
	VerifyLimiter ratelimit.Limiter
	// TokenVerifier enables GET /me; nil when the identity provider issues opaque tokens.
	TokenVerifier middleware.TokenVerifier
	Accounts      repo.AccountRepo
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", d.HealthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimitMiddleware(d.SendLimiter, middleware.GetIPKey)).
			Post("/send-otp", d.OTPHandler.HandleSendOTP)
		r.With(middleware.RateLimitMiddleware(d.VerifyLimiter, middleware.GetIPKey)).
			Post("/verify-otp", d.OTPHandler.HandleVerifyOTP)
	})

	// Protected routes (require valid JWT)
	if d.TokenVerifier != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(d.TokenVerifier, d.Accounts))
			r.Get("/me", handlers.HandleMe)
		})
	}

	return r
}
