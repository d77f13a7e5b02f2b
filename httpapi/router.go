package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/middleware"
	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig wires the router to the engine and its optional backends.
type RouterConfig struct {
	Service Service
	Log     zerolog.Logger
	// Registry enables request metrics and serves it on GET /metrics when set.
	Registry *prometheus.Registry
	// Health reports backend readiness for GET /health. Nil means always healthy.
	Health func(ctx context.Context) error
	// RequestTimeout bounds each request. Zero disables the timeout.
	RequestTimeout time.Duration
}

// NewRouter mounts the identity endpoints with request logging and recovery.
func NewRouter(cfg RouterConfig) http.Handler {
	h := NewHandler(cfg.Service, cfg.Log)
	full := middleware.Guard(cfg.Service)
	partial := middleware.GuardPartial(cfg.Service)

	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(loggerMiddleware(cfg.Log))
	r.Use(chimid.Recoverer)
	if cfg.Registry != nil {
		r.Use(newRequestMetrics(cfg.Registry).middleware)
	}
	if cfg.RequestTimeout > 0 {
		r.Use(chimid.Timeout(cfg.RequestTimeout))
	}
	r.Use(clientContext)

	r.Get("/health", healthHandler(cfg.Health))
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/verify-email/{actionTokenId}", h.VerifyEmail)
		r.Post("/reset-password", h.RequestPasswordReset)
		r.Post("/reset-password/confirm/{actionTokenId}", h.ConfirmPasswordReset)
		r.Get("/change-email/confirm/{actionTokenId}", h.ConfirmEmailChange)

		// The bearer token on these three is the refresh token.
		r.Post("/refresh-token", h.RefreshToken)
		r.Post("/logout", h.Logout)
		r.Post("/logout-all", h.LogoutAll)

		r.Route("/sso", func(r chi.Router) {
			r.Post("/generate", h.GenerateSSO)
			r.Post("/process-token", h.ProcessSSOToken)
			r.Post("/hash", h.AuthenticateSSO)
			r.Group(func(r chi.Router) {
				r.Use(full)
				r.Post("/link_by_hash", h.LinkSSO)
				r.Delete("/unlink", h.UnlinkSSO)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(full)
			r.Get("/me", h.Me)
			r.Post("/verify-email", h.ResendVerification)
			r.Post("/change-email", h.RequestEmailChange)
			r.Post("/change-password", h.ChangePassword)
			r.Delete("/account", h.DeleteAccount)
		})
	})

	r.Route("/2fa", func(r chi.Router) {
		r.With(partial).Post("/authenticate", h.AuthenticateTwoFactor)
		r.Group(func(r chi.Router) {
			r.Use(full)
			r.Post("/generate", h.GenerateTwoFactor)
			r.Post("/enable", h.EnableTwoFactor)
			r.Post("/disable", h.DisableTwoFactor)
		})
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				writeErr(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "unhealthy")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// loggerMiddleware writes one line per request. Headers and bodies are never logged
// since they carry tokens.
func loggerMiddleware(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimid.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("request_id", chimid.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// clientContext copies the caller's address and user agent into the context for audit events.
func clientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := goIdentity.WithClientIP(r.Context(), ip)
		ctx = goIdentity.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
