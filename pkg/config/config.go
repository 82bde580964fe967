package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	AuthDriverOpaque = "opaque"
	AuthDriverJWT    = "jwt"

	SearchDriverMemory = "memory"
	SearchDriverChroma = "chroma"

	EventsDriverLocal  = "local"
	EventsDriverPubSub = "pubsub"
	EventsDriverNATS   = "nats"
)

type Config struct {
	AppEnv      string
	Port        string
	LogLevel    string
	ServiceName string

	DBDriver    string
	DatabaseURL string

	AuthDriver        string
	JWTSecret         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	RefreshCookieName string
	TokenPruneEvery   time.Duration

	RedisAddr        string
	LoginMaxAttempts int
	LoginLockout     time.Duration

	RateLimitUserRPS float64
	RateLimitIPRPS   float64
	RateLimitBurst   int

	SearchDriver     string
	ChromaURL        string
	ChromaAPIKey     string
	ChromaTenant     string
	ChromaDatabase   string
	ChromaCollection string
	GeminiApiKey     string

	EventsDriver      string
	IndexWorkers      int
	GoogleProjectID   string
	GooglePubSubTopic string
	GoogleCredentials string
	NATSURL           string
	NATSIndexSubject  string
	NATSTokenSubject  string

	SentryDSN    string
	OTLPEndpoint string
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVICE_NAME", "blogpost-backend")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=blogpost port=5432 sslmode=disable")
	v.SetDefault("AUTH_DRIVER", AuthDriverOpaque)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("REFRESH_COOKIE_NAME", "refreshToken")
	v.SetDefault("TOKEN_PRUNE_INTERVAL", "1h")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_LOCKOUT", "15m")
	v.SetDefault("RATE_LIMIT_USER_RPS", 2)
	v.SetDefault("RATE_LIMIT_IP_RPS", 1)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	v.SetDefault("SEARCH_DRIVER", SearchDriverMemory)
	v.SetDefault("CHROMA_COLLECTION", "posts")
	v.SetDefault("EVENTS_DRIVER", EventsDriverLocal)
	v.SetDefault("INDEX_WORKERS", 3)
	v.SetDefault("GOOGLE_PUBSUB_TOPIC", "post-index")
	v.SetDefault("NATS_URL", "nats://127.0.0.1:4222")
	v.SetDefault("NATS_INDEX_SUBJECT", "posts.index")
	v.SetDefault("NATS_TOKEN_SUBJECT", "auth.token")

	return &Config{
		AppEnv:      v.GetString("APP_ENV"),
		Port:        v.GetString("PORT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		ServiceName: v.GetString("SERVICE_NAME"),

		DBDriver:    v.GetString("DB_DRIVER"),
		DatabaseURL: v.GetString("DATABASE_URL"),

		AuthDriver:        v.GetString("AUTH_DRIVER"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		AccessTokenTTL:    v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:   v.GetDuration("REFRESH_TOKEN_TTL"),
		RefreshCookieName: v.GetString("REFRESH_COOKIE_NAME"),
		TokenPruneEvery:   v.GetDuration("TOKEN_PRUNE_INTERVAL"),

		RedisAddr:        v.GetString("REDIS_ADDR"),
		LoginMaxAttempts: v.GetInt("LOGIN_MAX_ATTEMPTS"),
		LoginLockout:     v.GetDuration("LOGIN_LOCKOUT"),

		RateLimitUserRPS: v.GetFloat64("RATE_LIMIT_USER_RPS"),
		RateLimitIPRPS:   v.GetFloat64("RATE_LIMIT_IP_RPS"),
		RateLimitBurst:   v.GetInt("RATE_LIMIT_BURST"),

		SearchDriver:     v.GetString("SEARCH_DRIVER"),
		ChromaURL:        v.GetString("CHROMA_URL"),
		ChromaAPIKey:     v.GetString("CHROMA_API_KEY"),
		ChromaTenant:     v.GetString("CHROMA_TENANT"),
		ChromaDatabase:   v.GetString("CHROMA_DATABASE"),
		ChromaCollection: v.GetString("CHROMA_COLLECTION"),
		GeminiApiKey:     v.GetString("GEMINI_API_KEY"),

		EventsDriver:      v.GetString("EVENTS_DRIVER"),
		IndexWorkers:      v.GetInt("INDEX_WORKERS"),
		GoogleProjectID:   v.GetString("GOOGLE_PROJECT_ID"),
		GooglePubSubTopic: v.GetString("GOOGLE_PUBSUB_TOPIC"),
		GoogleCredentials: v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
		NATSURL:           v.GetString("NATS_URL"),
		NATSIndexSubject:  v.GetString("NATS_INDEX_SUBJECT"),
		NATSTokenSubject:  v.GetString("NATS_TOKEN_SUBJECT"),

		SentryDSN:    v.GetString("SENTRY_DSN"),
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL (%s) must be longer than ACCESS_TOKEN_TTL (%s)", c.RefreshTokenTTL, c.AccessTokenTTL)
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.AuthDriver {
	case AuthDriverOpaque:
	case AuthDriverJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_DRIVER=jwt")
		}
	default:
		return fmt.Errorf("unknown AUTH_DRIVER %q", c.AuthDriver)
	}
	switch c.SearchDriver {
	case SearchDriverMemory, SearchDriverChroma:
	default:
		return fmt.Errorf("unknown SEARCH_DRIVER %q", c.SearchDriver)
	}
	switch c.EventsDriver {
	case EventsDriverLocal, EventsDriverNATS:
	case EventsDriverPubSub:
		if c.GoogleProjectID == "" {
			return fmt.Errorf("GOOGLE_PROJECT_ID is required when EVENTS_DRIVER=pubsub")
		}
	default:
		return fmt.Errorf("unknown EVENTS_DRIVER %q", c.EventsDriver)
	}
	if c.RefreshCookieName == "" {
		return fmt.Errorf("REFRESH_COOKIE_NAME must not be empty")
	}
	return nil
}
