package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/book-market-backend/internal/config"
	"github.com/shinyyama/book-market-backend/internal/db"
	"github.com/shinyyama/book-market-backend/internal/events"
	"github.com/shinyyama/book-market-backend/internal/imagestore"
	appmw "github.com/shinyyama/book-market-backend/internal/middleware"
	"github.com/shinyyama/book-market-backend/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}

	var publisher events.Publisher = &events.Fallback{Logger: logger}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		logger.Warn("rabbitmq url missing; notification events disabled", zap.String("component", "bootstrap"))
	} else if p, err := events.NewProducer(cfg.RabbitMQURL, cfg.NotificationExchange, logger); err != nil {
		logger.Warn("rabbitmq connect failed; notification events disabled", zap.String("component", "bootstrap"), zap.Error(err))
	} else {
		publisher = p
		logger.Info("rabbitmq connected", zap.String("component", "bootstrap"), zap.String("exchange", cfg.NotificationExchange))
	}
	defer publisher.Close()

	var limiter appmw.RateLimiter
	if client := connectRedis(ctx, cfg.RedisURL, logger); client != nil {
		defer client.Close()
		limiter = appmw.NewRedisRateLimiter(client, cfg.RateLimitPrefix)
	}

	var images imagestore.URLResolver = imagestore.Passthrough{}
	if cfg.ImageBucket != "" {
		signer, err := imagestore.NewGCSSigner(ctx, cfg.ImageBucket, cfg.CredentialsFile, cfg.ImageURLTTL)
		if err != nil {
			logger.Warn("gcs signer init failed; image references served as stored", zap.String("component", "bootstrap"), zap.Error(err))
		} else {
			defer signer.Close()
			images = signer
		}
	}

	deps := server.Deps{
		DB:                       conn,
		Logger:                   logger,
		Publisher:                publisher,
		Images:                   images,
		Limiter:                  limiter,
		NegotiationRatePerMinute: cfg.NegotiationRatePerMinute,
		GitSHA:                   cfg.GitSHA,
		BuildTime:                cfg.BuildTime,
	}
	if cfg.AuthDisabled {
		logger.Warn("authentication disabled; trusting "+appmw.DebugUIDHeader, zap.String("component", "bootstrap"))
		deps.Auth = appmw.DevAuth
	} else {
		authMw, err := appmw.NewAuthMiddleware(ctx, cfg.FirebaseProjectID, logger)
		if err != nil {
			return err
		}
		deps.Auth = echo.MiddlewareFunc(authMw.RequireAuth)
		if client := authMw.Client(); client != nil {
			deps.Profiles = client
		}
	}

	srv := server.New(deps)
	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", addr), zap.String("git_sha", cfg.GitSHA))
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// connectRedis returns nil when Redis is not configured or not reachable; rate limiting is then off.
func connectRedis(ctx context.Context, rawURL string, logger *zap.Logger) *redis.Client {
	if strings.TrimSpace(rawURL) == "" {
		logger.Warn("redis url missing; negotiation rate limiting disabled", zap.String("component", "bootstrap"))
		return nil
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		logger.Warn("redis url parse failed; negotiation rate limiting disabled", zap.String("component", "bootstrap"), zap.Error(err))
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; negotiation rate limiting disabled", zap.String("component", "bootstrap"), zap.Error(err))
		client.Close()
		return nil
	}
	logger.Info("redis connected", zap.String("component", "bootstrap"))
	return client
}
