package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"skillgate/internal/cache"
	"skillgate/internal/config"
	"skillgate/internal/logger"
	"skillgate/internal/repository"
	"skillgate/internal/service"
	"skillgate/internal/transport/rest"
	"skillgate/internal/transport/ws"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var rootCmd = &cobra.Command{
	Use:          "skillgate-server",
	Short:        "Skills verification quiz API",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

func init() {
	rootCmd.Flags().String("port", "", "HTTP port (overrides HTTP_PORT)")
	rootCmd.Flags().String("log-level", "", "Log level (overrides LOG_LEVEL)")
	rootCmd.Flags().Bool("skip-indexes", false, "Do not create MongoDB indexes on startup")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		cfg.HTTPPort = p
	}
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		cfg.LogLevel = l
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)

	ctx := context.Background()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer mongoClient.Disconnect(context.Background())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Info().Str("database", cfg.MongoDatabase).Msg("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDatabase)

	if skip, _ := cmd.Flags().GetBool("skip-indexes"); !skip {
		if err := ensureIndexes(ctx, db); err != nil {
			return err
		}
	}

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	defer wsHub.Close()

	// Initialize repositories
	attemptRepo := repository.NewAttemptRepo(db)
	teamRepo := repository.NewTeamRepo(db)
	poolRepo := repository.NewQuestionPoolRepo(db)
	usageRepo := repository.NewUsageRepo(db)

	// Initialize caches
	rateLimit := cache.NewRateLimitCache(rdb, cache.RateLimits{
		Window:   cfg.RateLimitWindow,
		PerIP:    cfg.RateLimitPerIP,
		PerEmail: cfg.RateLimitPerEmail,
	})

	// Initialize services
	tokens := service.NewTokenService(cfg.TokenSecret, cfg.AttemptWindow, cfg.VerificationTTL)
	attemptSvc := service.NewAttemptService(
		attemptRepo, teamRepo, poolRepo, usageRepo, rateLimit,
		service.NewQuizGenerator(), tokens,
		cfg.AttemptWindow, cfg.VerificationTTL,
	)
	if cfg.PoolCacheTTL > 0 {
		attemptSvc.SetPoolCache(cache.NewPoolCache(rdb, cfg.PoolCacheTTL))
	}
	attemptSvc.SetBroadcaster(wsHub)
	teamSvc := service.NewTeamService(teamRepo)

	router := rest.NewRouter(&rest.Container{
		QuizService:       attemptSvc,
		VerifyService:     attemptSvc,
		Teams:             teamSvc,
		WSHub:             wsHub,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	attemptSvc.WaitBackground()

	log.Info().Msg("Server exited")
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, ensure := range []func(context.Context, *mongo.Database) error{
		repository.EnsureAttemptIndexes,
		repository.EnsureTeamIndexes,
		repository.EnsureQuestionIndexes,
		repository.EnsureUsageIndexes,
	} {
		if err := ensure(ctx, db); err != nil {
			return err
		}
	}
	return nil
}
