package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-user-auth/internal/application/ratelimit"
	"github.com/go-user-auth/internal/application/session"
	"github.com/go-user-auth/internal/application/user"
	"github.com/go-user-auth/internal/application/verification"
	"github.com/go-user-auth/internal/config"
	"github.com/go-user-auth/internal/domain"
	"github.com/go-user-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-user-auth/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

const (
	requestTimeout = 60 * time.Second
	maxBodyBytes   = 1 << 20
)

// Router is the application HTTP handler. Close releases the background
// work of the per-IP throttle.
type Router struct {
	http.Handler
	throttle *appmiddleware.RateLimiter
}

func (r *Router) Close() { r.throttle.Stop() }

// NewRouter wires the services over deps and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) *Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))
	r.Use(chimiddleware.RequestSize(maxBodyBytes))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.NotFound(appmiddleware.NotFound)
	r.MethodNotAllowed(appmiddleware.MethodNotAllowed)

	throttle := appmiddleware.NewRateLimiter(rate.Limit(cfg.HTTPRateLimit), cfg.HTTPRateBurst)

	limiter := ratelimit.New(deps.Cache, ratelimit.Config{
		MaxAttempts: cfg.LoginMaxAttempts,
		Window:      cfg.LoginWindow,
		FailOpen:    cfg.RateLimitFailOpen,
	})
	verificationSvc := verification.NewService(verification.ServiceDeps{
		Tickets:   deps.Cache,
		Tokens:    deps.Tokens,
		Publisher: deps.Publisher,
		Accounts:  deps.Accounts,
		TTL:       cfg.VerificationTTL(),
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		Accounts: deps.Accounts,
		Registry: deps.Cache,
		Limiter:  limiter,
		Password: deps.Hasher,
		Tokens:   deps.Tokens,
	})
	userSvc := user.NewService(user.ServiceDeps{
		Accounts:     deps.Accounts,
		Hasher:       deps.Hasher,
		Verification: verificationSvc,
		Sessions:     sessionSvc,
	})

	exposeErrors := cfg.IsDevelopment()
	healthH := handler.NewHealthHandler(deps.Checks)
	authH := handler.NewAuthHandler(handler.AuthHandlerDeps{
		Users:        userSvc,
		Verification: verificationSvc,
		Sessions:     sessionSvc,
		Cookies: handler.CookieOptions{
			Secure:     cfg.IsProduction(),
			AccessTTL:  deps.Tokens.TTL(domain.TokenAccess),
			RefreshTTL: deps.Tokens.TTL(domain.TokenRefresh),
		},
		ExposeErrors: exposeErrors,
	})
	userH := handler.NewUserHandler(userSvc, exposeErrors)

	r.Get("/health", healthH.Health)

	r.Route("/api/auth", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.With(throttle.Limit).Post("/register", authH.Register)
		r.Get("/verify/{token}", authH.Verify)
		r.With(throttle.Limit).Post("/login", authH.Login)
		r.Post("/logout", authH.Logout)
		r.With(throttle.Limit).Post("/refresh-token", authH.Refresh)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.Tokens))

			r.Get("/users", userH.List)
			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Delete("/users/{id}", userH.Delete)
		})
	})

	return &Router{Handler: r, throttle: throttle}
}
