package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"campusnet/internal/auth"
	"campusnet/internal/config"
	"campusnet/internal/db"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(cfg *config.Config, database *db.DB, emailService EmailSender) (*Server, error) {
	tokenService := auth.NewTokenService(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost, cfg.Auth.HashWorkers)

	userRepo := db.NewUserRepository(database)
	universityRepo := db.NewUniversityRepository(database)

	authHandler := NewAuthHandler(
		database,
		tokenService,
		hasher,
		emailService,
		cfg.Auth.ResetTokenTTL,
		cfg.Auth.RotationWindow,
	)
	userHandler := NewUserHandler(userRepo)
	universityHandler := NewUniversityHandler(universityRepo)
	healthHandler := NewHealthHandler(database)

	authMiddleware := NewAuthMiddleware(tokenService, userRepo)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

		r.Route("/auth", func(r chi.Router) {
			strict := authRateLimit(10, time.Minute)
			loose := authRateLimit(30, time.Minute)

			r.With(strict).Post("/register", authHandler.Register)
			r.With(strict).Post("/login", authHandler.Login)
			r.With(strict).Post("/resend-verification-email", authHandler.ResendVerificationEmail)
			r.With(strict).Post("/forgot-password", authHandler.ForgotPassword)
			r.With(strict).Post("/reset-password", authHandler.ResetPassword)
			r.Get("/verify-email", authHandler.VerifyEmail)
			r.With(loose).Post("/refresh-token", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/me", userHandler.GetMe)
			r.Patch("/me", userHandler.UpdateMe)
		})

		r.Get("/universities", universityHandler.List)
	})

	return &Server{
		router: r,
		config: cfg,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func authRateLimit(requestLimit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, ErrNameTooManyRequests, "Too many requests, please try again later")
		}),
	)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
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
