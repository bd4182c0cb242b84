// QuickChess - Game Session Coordinator Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/quickchess/server/internal/api"
	"github.com/quickchess/server/internal/cache"
	"github.com/quickchess/server/internal/config"
	"github.com/quickchess/server/internal/game"
	"github.com/quickchess/server/internal/hub"
	"github.com/quickchess/server/internal/identity"
	"github.com/quickchess/server/internal/lock"
	"github.com/quickchess/server/internal/middleware"
	"github.com/quickchess/server/internal/rules"
	"github.com/quickchess/server/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Storage tiers: Redis when configured, in-process otherwise.
	var sessionCache cache.SessionCache
	var locks lock.Locker
	if cfg.UseRedis() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("Redis health check failed", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				slog.Error("Failed to close Redis client", "error", closeErr)
			}
		}()
		sessionCache = cache.NewRedis(rdb, cfg.CompletedSessionTTL)
		locks = lock.NewRedisLocker(rdb, cfg.LockTimeout, cfg.LockHoldTTL)
		slog.Info("Redis session tier connected", "addr", cfg.RedisAddr)
	} else {
		sessionCache = cache.NewMemory(cfg.CompletedSessionTTL)
		locks = lock.NewKeyedMutex(cfg.LockTimeout)
		slog.Info("Using in-process session tier")
	}

	// Initialize services.
	reconciler := game.NewReconciler(repo, cfg.ReconcileInterval)
	coordinator := game.NewCoordinator(sessionCache, repo, rules.NewChessEngine(), locks, reconciler)
	sessionHub := hub.New(coordinator)
	coordinator.SetBroadcaster(sessionHub)

	// Initialize handlers.
	sessionHandler := api.NewSessionHandler(coordinator)
	wsHandler := hub.NewWebSocketHandler(sessionHub, coordinator, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	sessionHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/session", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout, WebSocket connections stay open
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reconciler.Start(ctx)

	// Start server in goroutine.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	// Flush any pending durable writes before closing the database.
	reconciler.Flush(shutdownCtx)

	slog.Info("Server stopped")
}
