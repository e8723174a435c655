package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/vibes/pkg/usecase"
	"github.com/secmon-lab/vibes/pkg/utils/logging"
)

type Server struct {
	router             *chi.Mux
	uc                 *usecase.UseCases
	slackSigningSecret string
	rateLimiter        *RateLimiter
}

type Options func(*Server)

// WithSlackSigningSecret enables the Slack webhook routes
func WithSlackSigningSecret(secret string) Options {
	return func(s *Server) {
		s.slackSigningSecret = secret
	}
}

// WithRateLimiter overrides the extension endpoint rate limiter
func WithRateLimiter(rl *RateLimiter) Options {
	return func(s *Server) {
		s.rateLimiter = rl
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.rateLimiter == nil {
		s.rateLimiter = NewRateLimiter(DefaultRateLimit, DefaultRateWindow)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// OAuth endpoints: install flow and Spotify connect flow
	r.Get("/auth/slack", slackAuthHandler(uc))
	r.Get("/auth/spotify/start", spotifyStartHandler(uc))
	r.Get("/auth/spotify", spotifyCallbackHandler(uc))

	// Dashboard API behind session cookies
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(uc))
			r.Get("/user/status", userStatusHandler(uc))
			r.Post("/user/sharing", userSharingHandler(uc))
			r.Post("/user/disconnect", userDisconnectHandler(uc))
			r.Post("/user/extension-token", extensionTokenHandler(uc))
			r.Get("/spotify/connect-url", spotifyConnectURLHandler(uc))
			r.Post("/auth/logout", logoutHandler(uc))
		})

		// Extension endpoints use bearer tokens and a rate limit instead
		r.Route("/extension", func(r chi.Router) {
			r.Use(s.rateLimiter.Middleware)
			r.Post("/now-playing", nowPlayingHandler(uc))
			r.Get("/status", extensionStatusHandler(uc))
			r.Get("/version", extensionVersionHandler())
		})
	})

	// Slack webhooks: no session, signature verification instead
	if s.slackSigningSecret != "" {
		r.Route("/hooks/slack", func(r chi.Router) {
			r.Use(SlackSignatureMiddleware(s.slackSigningSecret))
			r.Post("/event", slackEventHandler(uc))
			r.Post("/command", slackCommandHandler(uc))
			r.Post("/interaction", slackInteractionHandler(uc))
		})
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources
func (s *Server) Close() {
	s.rateLimiter.Close()
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
