package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/chamasats/backend/src/backend"
	"github.com/username/chamasats/backend/src/config"
	"github.com/username/chamasats/backend/src/database"
	"github.com/username/chamasats/backend/src/handlers"
	"github.com/username/chamasats/backend/src/logger"
	"github.com/username/chamasats/backend/src/reconciler"
	"github.com/username/chamasats/backend/src/security"
	"github.com/username/chamasats/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter *rate.Limiter

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000":  true,
			"https://chamasats.coop": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("ChamaSats reconciliation backend starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid: must be at least 32 characters.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), config.Cfg.RateLimitBurst)

	upstream := backend.NewClient(config.Cfg.UpstreamBaseURL, config.Cfg.UpstreamToken, config.Cfg.UpstreamTimeout)
	chamaClient := backend.NewChamaClient(upstream)
	personalClient := backend.NewPersonalClient(upstream)
	membershipClient := backend.NewMembershipClient(upstream)

	rec := reconciler.New(reconciler.Config{
		Interval: config.Cfg.PollInterval,
		Timeout:  config.Cfg.PollTimeout,
	})

	store := services.NewSnapshotStore(database.DB)
	txService := services.NewTransactionManager(
		chamaClient,
		personalClient,
		membershipClient,
		store,
		rec,
		config.Cfg.MemberCacheExpiry,
	)

	authService := security.NewAuthService(config.Cfg.JWTSecret, 24*time.Hour)
	txHandler := handlers.NewTransactionHandler(txService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "ChamaSats backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handlers.AuthMiddleware(authService))

			r.Get("/transactions", txHandler.HandleListTransactions)
			r.Get("/transactions/{context}/{id}", txHandler.HandleGetTransaction)
			r.Post("/transactions/deposit", txHandler.HandleCreateDeposit)
			r.Post("/transactions/withdraw", txHandler.HandleCreateWithdrawal)
			r.Post("/transactions/subscribe", txHandler.HandleSubscribeShares)
			r.Post("/transactions/transfer", txHandler.HandleTransferShares)
			r.Post("/transactions/{context}/{id}/actions/{action}", txHandler.HandlePerformAction)

			r.Get("/limits", txHandler.HandleGetLimits)
		})
	})

	r.NotFound(handlers.NotFoundHandler)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.L.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Server shutdown failed", "error", err)
	}

	// Drain reconciliation polls so no callback fires into a closed world.
	txService.Close()
	logger.L.Info("Shutdown complete")
}
