package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sharedauth "github.com/aurawellness/gamification-service/shared-libs/auth"
	"github.com/aurawellness/gamification-service/shared-libs/envconfig"
	"github.com/aurawellness/gamification-service/shared-libs/pubsub"
)

// Config encapsulates the runtime configuration for the gamification service.
type Config struct {
	Port          string `validate:"required,numeric"`
	GCPProjectID  string
	DataStore     DataStore
	Auth          AuthConfig
	Firestore     FirestoreConfig
	Redis         RedisConfig
	Gamification  GamificationConfig
	Notifications NotificationConfig
	RateLimit     RateLimitConfig
}

// DataStore enumerates supported persistence backends.
type DataStore string

const (
	// DataStoreMemory keeps profiles and notifications in process (local development/testing).
	DataStoreMemory DataStore = "memory"
	// DataStoreFirestore stores profiles and notifications in Google Cloud Firestore.
	DataStoreFirestore DataStore = "firestore"
	// DataStoreRedis stores profiles in Redis; notifications stay in memory.
	DataStoreRedis DataStore = "redis"
)

// Publisher selects the external notification sink.
type Publisher string

const (
	PublisherNone  Publisher = "none"
	PublisherLog   Publisher = "log"
	PublisherKafka Publisher = "kafka"
)

// AuthConfig stores authentication middleware setup.
type AuthConfig struct {
	Mode     sharedauth.Mode
	JWKSURL  string
	Audience string
	Issuer   string
	// TrustUserHeader accepts X-User-ID from internal callers without a token. It defaults
	// to true only for AUTH_MODE=noop.
	TrustUserHeader bool
}

// FirestoreConfig tailors Firestore client behavior.
type FirestoreConfig struct {
	EmulatorHost string
}

// RedisConfig points at the profile store when DATASTORE=redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0,lte=15"`
}

// GamificationConfig tunes the engine.
type GamificationConfig struct {
	DefaultTimezone string `validate:"required"`
	MaxAttempts     int    `validate:"gte=1,lte=10"`
	NotifyTimeout   time.Duration
}

// NotificationConfig tunes the dispatcher and its sinks.
type NotificationConfig struct {
	Publisher       Publisher
	KafkaBrokers    []string
	Topic           string
	QueueSize       int `validate:"gte=1"`
	Workers         int `validate:"gte=1,lte=64"`
	MaxAttempts     int `validate:"gte=1,lte=10"`
	DeliveryTimeout time.Duration
	RetryBackoff    time.Duration
}

// RateLimitConfig bounds how often one user may record activities.
type RateLimitConfig struct {
	PerMinute float64 `validate:"gte=0"`
	Burst     int     `validate:"gte=0"`
}

// Load reads environment variables into Config with validation.
func Load() (Config, error) {
	var errs []error
	intVar := func(name string, fallback int) int {
		v, err := envconfig.GetInt(name, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	boolVar := func(name string, fallback bool) bool {
		v, err := envconfig.GetBool(name, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durationVar := func(name string, fallback time.Duration) time.Duration {
		v, err := envconfig.GetDuration(name, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	authMode := sharedauth.Mode(strings.ToLower(envconfig.Get("AUTH_MODE", string(sharedauth.ModeNoop))))

	cfg := Config{
		Port:         envconfig.Get("PORT", "8080"),
		GCPProjectID: envconfig.Get("GCP_PROJECT_ID", ""),
		DataStore:    DataStore(strings.ToLower(envconfig.Get("DATASTORE", string(DataStoreMemory)))),
		Auth: AuthConfig{
			Mode:     authMode,
			JWKSURL:  envconfig.Get("CLERK_JWKS_URL", ""),
			Audience: envconfig.Get("CLERK_AUDIENCE", ""),
			Issuer:   envconfig.Get("CLERK_ISSUER", ""),

			// Verified tokens are the default identity source under clerk.
			TrustUserHeader: boolVar("AUTH_TRUST_USER_HEADER", authMode != sharedauth.ModeClerk),
		},
		Firestore: FirestoreConfig{
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
		},
		Redis: RedisConfig{
			Addr:     envconfig.Get("REDIS_ADDR", ""),
			Password: envconfig.Get("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Gamification: GamificationConfig{
			DefaultTimezone: envconfig.Get("GAMIFICATION_DEFAULT_TIMEZONE", "UTC"),
			MaxAttempts:     intVar("GAMIFICATION_MAX_ATTEMPTS", 3),
			NotifyTimeout:   durationVar("GAMIFICATION_NOTIFY_TIMEOUT", 2*time.Second),
		},
		Notifications: NotificationConfig{
			Publisher:       Publisher(strings.ToLower(envconfig.Get("NOTIFICATION_PUBLISHER", string(PublisherLog)))),
			KafkaBrokers:    envconfig.GetList("KAFKA_BROKERS"),
			Topic:           envconfig.Get("NOTIFICATION_TOPIC", pubsub.TopicNotificationEvents),
			QueueSize:       intVar("NOTIFICATION_QUEUE_SIZE", 256),
			Workers:         intVar("NOTIFICATION_WORKERS", 2),
			MaxAttempts:     intVar("NOTIFICATION_MAX_ATTEMPTS", 3),
			DeliveryTimeout: durationVar("NOTIFICATION_DELIVERY_TIMEOUT", 5*time.Second),
			RetryBackoff:    durationVar("NOTIFICATION_RETRY_BACKOFF", 200*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			PerMinute: float64(intVar("ACTIVITY_RATE_PER_MINUTE", 30)),
			Burst:     intVar("ACTIVITY_RATE_BURST", 10),
		},
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	if err := envconfig.Validate(cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DefaultLocation resolves the configured fallback timezone.
func (c GamificationConfig) DefaultLocation() (*time.Location, error) {
	return time.LoadLocation(c.DefaultTimezone)
}

func validate(cfg Config) error {
	switch cfg.DataStore {
	case DataStoreMemory:
		// no-op
	case DataStoreFirestore:
		if cfg.GCPProjectID == "" {
			return fmt.Errorf("gcp project id required when datastore=firestore")
		}
	case DataStoreRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when DATASTORE=redis")
		}
	default:
		return fmt.Errorf("unsupported datastore: %s", cfg.DataStore)
	}

	switch cfg.Auth.Mode {
	case sharedauth.ModeClerk:
		if cfg.Auth.JWKSURL == "" {
			return fmt.Errorf("CLERK_JWKS_URL is required when AUTH_MODE=clerk")
		}
	case sharedauth.ModeNoop:
		// no-op
	default:
		return fmt.Errorf("unsupported auth mode: %s", cfg.Auth.Mode)
	}

	switch cfg.Notifications.Publisher {
	case PublisherNone, PublisherLog:
		// no-op
	case PublisherKafka:
		if len(cfg.Notifications.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when NOTIFICATION_PUBLISHER=kafka")
		}
		if strings.TrimSpace(cfg.Notifications.Topic) == "" {
			return fmt.Errorf("NOTIFICATION_TOPIC must not be empty")
		}
	default:
		return fmt.Errorf("unsupported notification publisher: %s", cfg.Notifications.Publisher)
	}

	if _, err := cfg.Gamification.DefaultLocation(); err != nil {
		return fmt.Errorf("GAMIFICATION_DEFAULT_TIMEZONE: %w", err)
	}
	if cfg.Notifications.DeliveryTimeout <= 0 || cfg.Notifications.RetryBackoff <= 0 {
		return fmt.Errorf("notification timeouts must be positive")
	}

	return nil
}
