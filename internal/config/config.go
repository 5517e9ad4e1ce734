package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Stripe   StripeConfig
	Auth     AuthConfig
	Auction  AuctionConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	BidUpdates       string
	AuctionCancelled string
	AuctionListed    string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type AuthConfig struct {
	OIDCIssuer string
}

// AuctionConfig carries the business constants of the settlement engine.
// The percentages apply to forfeited seller deposits (compensation) and
// to the winning amount (platform fee).
type AuctionConfig struct {
	CompensationBeforeExpiryPct int64
	CompensationAfterExpiryPct  int64
	PlatformFeePct              int64
	LeaseTTL                    time.Duration
	PaymentWindow               time.Duration
	DefaultCurrency             string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "auction_user"),
			Password:     getEnv("DB_PASSWORD", "auction_pass"),
			Database:     getEnv("DB_NAME", "auctiondb"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				BidUpdates:       getEnv("KAFKA_TOPIC_BID_UPDATES", "auction-bid-updates"),
				AuctionCancelled: getEnv("KAFKA_TOPIC_AUCTION_CANCELLED", "auction-cancelled"),
				AuctionListed:    getEnv("KAFKA_TOPIC_AUCTION_LISTED", "auction-listed"),
			},
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
		Auction: AuctionConfig{
			CompensationBeforeExpiryPct: int64(getEnvInt("COMPENSATION_BEFORE_EXPIRY_PCT", 15)),
			CompensationAfterExpiryPct:  int64(getEnvInt("COMPENSATION_AFTER_EXPIRY_PCT", 20)),
			PlatformFeePct:              int64(getEnvInt("PLATFORM_FEE_PCT", 10)),
			LeaseTTL:                    time.Duration(getEnvInt("AUCTION_LEASE_TTL_MINUTES", 5)) * time.Minute,
			PaymentWindow:               time.Duration(getEnvInt("PAYMENT_WINDOW_HOURS", 48)) * time.Hour,
			DefaultCurrency:             getEnv("DEFAULT_CURRENCY", "usd"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
