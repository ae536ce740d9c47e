package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	sharedauth "github.com/aurawellness/gamification-service/shared-libs/auth"
	"github.com/aurawellness/gamification-service/shared-libs/logging"
	sharedserver "github.com/aurawellness/gamification-service/shared-libs/server"

	"github.com/aurawellness/gamification-service/internal/config"
	"github.com/aurawellness/gamification-service/internal/gamification"
	"github.com/aurawellness/gamification-service/internal/httpapi"
	"github.com/aurawellness/gamification-service/internal/notification"
)

const serviceName = "gamification-service"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger(serviceName)

	repos, cleanup, err := newRepositories(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("repository init error: %w", err))
	}
	defer cleanup()

	notificationService, err := notification.NewService(repos.notifications, notification.NewSystemClock(), notification.NewUUIDGenerator())
	if err != nil {
		panic(fmt.Errorf("notification service init error: %w", err))
	}

	sinks, closeSinks := newSinks(cfg, notificationService, logger)
	defer closeSinks()

	dispatcher := notification.NewDispatcher(notification.DispatcherConfig{
		QueueSize:       cfg.Notifications.QueueSize,
		Workers:         cfg.Notifications.Workers,
		MaxAttempts:     cfg.Notifications.MaxAttempts,
		DeliveryTimeout: cfg.Notifications.DeliveryTimeout,
		RetryBackoff:    cfg.Notifications.RetryBackoff,
	}, logger, sinks...)
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	go dispatcher.Start(dispatchCtx)

	defaultLoc, err := cfg.Gamification.DefaultLocation()
	if err != nil {
		panic(fmt.Errorf("default timezone: %w", err))
	}

	gamificationService, err := gamification.NewService(repos.profiles, gamification.NewSystemClock(),
		gamification.WithNotifier(dispatcher),
		gamification.WithUnreadCounter(notificationService),
		gamification.WithLogger(logger),
		gamification.WithDefaultLocation(defaultLoc),
		gamification.WithMaxAttempts(cfg.Gamification.MaxAttempts),
		gamification.WithNotifyTimeout(cfg.Gamification.NotifyTimeout),
	)
	if err != nil {
		panic(fmt.Errorf("gamification service init error: %w", err))
	}

	verifier, err := sharedauth.NewVerifier(sharedauth.Config{
		Mode:     cfg.Auth.Mode,
		JWKSURL:  cfg.Auth.JWKSURL,
		Audience: cfg.Auth.Audience,
		Issuer:   cfg.Auth.Issuer,
	})
	if err != nil {
		panic(fmt.Errorf("auth verifier error: %w", err))
	}

	limiter := httpapi.NewUserRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	go limiter.Run(ctx)

	router := sharedserver.NewRouter(serviceName, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sharedauth.Middleware(verifier, sharedauth.WithUserHeader(cfg.Auth.TrustUserHeader)))

			httpapi.RegisterRoutes(r, httpapi.Handlers{
				Gamification:  gamificationService,
				Notifications: notificationService,
				Limiter:       limiter,
				Logger:        logger,
			})
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	runErr := sharedserver.Run(ctx, srv, logger)

	// Deliver what is still queued before the stores close.
	stopDispatch()
	dispatcher.Wait()

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		panic(runErr)
	}
}

type repositories struct {
	profiles      gamification.Repository
	notifications notification.Repository
}

func newRepositories(ctx context.Context, cfg config.Config) (repositories, func(), error) {
	switch cfg.DataStore {
	case config.DataStoreFirestore:
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return repositories{}, nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
		}

		client, err := firestore.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			return repositories{}, nil, fmt.Errorf("firestore client: %w", err)
		}

		repos := repositories{
			profiles:      gamification.NewFirestoreRepository(client),
			notifications: notification.NewFirestoreRepository(client),
		}
		cleanup := func() {
			_ = client.Close()
		}
		return repos, cleanup, nil
	case config.DataStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return repositories{}, nil, fmt.Errorf("redis ping: %w", err)
		}

		repos := repositories{
			profiles:      gamification.NewRedisRepository(client),
			notifications: notification.NewMemoryRepository(),
		}
		cleanup := func() {
			_ = client.Close()
		}
		return repos, cleanup, nil
	default:
		repos := repositories{
			profiles:      gamification.NewMemoryRepository(),
			notifications: notification.NewMemoryRepository(),
		}
		return repos, func() {}, nil
	}
}

func newSinks(cfg config.Config, inbox *notification.Service, logger *slog.Logger) ([]notification.Sink, func()) {
	sinks := []notification.Sink{notification.NewInboxSink(inbox)}

	switch cfg.Notifications.Publisher {
	case config.PublisherKafka:
		publisher := notification.NewKafkaPublisher(cfg.Notifications.KafkaBrokers, cfg.Notifications.Topic)
		sinks = append(sinks, publisher)
		return sinks, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("kafka publisher close failed", slog.Any("error", err))
			}
		}
	case config.PublisherLog:
		sinks = append(sinks, notification.NewLogSink(logger))
	}
	return sinks, func() {}
}
