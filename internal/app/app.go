package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hallbook/hallbook/internal/config"
	"github.com/hallbook/hallbook/internal/payment"
	"github.com/hallbook/hallbook/internal/postgres"
	"github.com/hallbook/hallbook/internal/redis"
	postgresrepo "github.com/hallbook/hallbook/internal/repository/postgres"
	redisrepo "github.com/hallbook/hallbook/internal/repository/redis"
	"github.com/hallbook/hallbook/internal/service"
	"github.com/hallbook/hallbook/internal/service/booking"
	httpgin "github.com/hallbook/hallbook/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	migrator, err := NewMigrator(pgxPool)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	if err := migrator.Run(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	_ = migrator.Close()

	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewBookingsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(
		rdb, redisrepo.KeyRateLimit("create"), cfg.Booking.CreateRateLimit, cfg.Booking.CreateRateWin)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Payment gateway
	gateway := payment.NewStripeClient(cfg.Stripe.SecretKey)

	// Initialize services
	services := service.NewServices(store, gateway, cache, pubsub, logger, service.Config{
		Booking: booking.Config{Currency: cfg.Booking.Currency},
	})

	// Initialize Gin router
	jwtManager := httpgin.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	router := httpgin.NewRouter(services, idempotencyStore, limiter, jwtManager, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
