package api

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"vidtube/internal/auth"
	"vidtube/internal/config"
	"vidtube/internal/db"
	"vidtube/internal/media"
)

const jsonBodyMaxBytes = 1 << 20

type Server struct {
	router *chi.Mux
	config *config.Config
}

// NewServer wires the HTTP surface. localMedia is nil unless media is hosted
// on local disk, in which case /media/* serves it.
func NewServer(
	cfg *config.Config,
	database *db.DB,
	uploader media.Uploader,
	localMedia *media.LocalStore,
) *Server {
	users := database.Users()
	subscriptions := database.Subscriptions()

	tokens := auth.NewTokenService(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	sessions := auth.NewSessions(users, tokens)
	uploads := newUploadReader(cfg.Storage.TempDir, cfg.Storage.UploadMaxBytes)
	sanitizer := newTextSanitizer()
	cookies := cookieConfig{secure: cfg.Auth.SecureCookies()}

	authHandler := NewAuthHandler(users, sessions, uploads, uploader, cookies, sanitizer, cfg.Auth.BcryptCost)
	userHandler := NewUserHandler(users, subscriptions, uploads, uploader, sanitizer, cfg.Auth.BcryptCost)
	subscriptionHandler := NewSubscriptionHandler(users, subscriptions)
	healthHandler := NewHealthHandler(database)

	authMiddleware := NewAuthMiddleware(tokens)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.Server.CORSOrigins))
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)

	if localMedia != nil {
		mediaHandler := NewMediaHandler(localMedia)
		r.Get(media.PathPrefix+"*", handle(mediaHandler.Get))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(rateLimit(10, time.Minute)).Post("/register", handle(authHandler.Register))

			r.Group(func(r chi.Router) {
				r.Use(maxBodySizeMiddleware(jsonBodyMaxBytes))
				r.With(rateLimit(10, time.Minute)).Post("/login", handle(authHandler.Login))
				r.With(rateLimit(30, time.Minute)).Post("/refresh-token", handle(authHandler.RefreshToken))
			})

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Patch("/update-avatar", handle(userHandler.UpdateAvatar))
				r.Patch("/update-cover-image", handle(userHandler.UpdateCoverImage))

				r.Group(func(r chi.Router) {
					r.Use(maxBodySizeMiddleware(jsonBodyMaxBytes))
					r.Post("/logout", handle(authHandler.Logout))
					r.Post("/change-password", handle(userHandler.ChangePassword))
					r.Get("/current-user", handle(userHandler.CurrentUser))
					r.Patch("/update-account", handle(userHandler.UpdateAccount))
					r.Get("/c/{username}", handle(userHandler.ChannelProfile))
				})
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Use(maxBodySizeMiddleware(jsonBodyMaxBytes))
			r.Post("/c/{channelID}", handle(subscriptionHandler.Subscribe))
			r.Delete("/c/{channelID}", handle(subscriptionHandler.Unsubscribe))
			r.Get("/c/{channelID}", handle(subscriptionHandler.ListSubscribers))
			r.Get("/u/{subscriberID}", handle(subscriptionHandler.ListSubscribedChannels))
		})
	})

	r.NotFound(handle(func(w http.ResponseWriter, r *http.Request) error {
		return notFound("Route not found")
	}))
	r.MethodNotAllowed(handle(func(w http.ResponseWriter, r *http.Request) error {
		return &APIError{Status: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}))

	return &Server{
		router: r,
		config: cfg,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// rateLimit limits requests per client IP. RealIP runs earlier in the chain,
// so RemoteAddr already carries the forwarded address.
func rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, tooManyRequests("Too many requests, please try again later"))
		}),
	)
}

// corsMiddleware allows credentialed requests from the configured origins and
// from loopback development servers.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(strings.TrimSpace(origin), "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := allowed[origin]; !ok && !isLoopbackOrigin(origin) {
				writeError(w, r, forbidden("Origin not allowed"))
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
