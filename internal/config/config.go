package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	HTTPAddr string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SyncIntervalMinutes   int
	FullSyncIntervalHours int
	SyncEnabledSources    []string

	Squarespace SquarespaceConfig
	BigCommerce BigCommerceConfig
	Minibc      MinibcConfig
}

// SquarespaceConfig carries credentials and filters for the Squarespace
// commerce API.
type SquarespaceConfig struct {
	APIKey            string
	ClientID          string
	ClientSecret      string
	MembershipSKUs    []string
	AllowedWebsiteIDs []string
}

// BigCommerceConfig carries credentials for the BigCommerce store API.
type BigCommerceConfig struct {
	StoreHash      string
	ClientID       string
	AccessToken    string
	MembershipSKUs []string
	WebhookSecret  string
}

// MinibcConfig carries credentials for the MiniBC recurring-subscriptions API.
type MinibcConfig struct {
	APIKey         string
	MembershipSKUs []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "membersync"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "membersync"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		SyncIntervalMinutes:   getenvInt("SYNC_INTERVAL_MINUTES", 60),
		FullSyncIntervalHours: getenvInt("FULL_SYNC_INTERVAL_HOURS", 24),
		SyncEnabledSources:    getenvList("SYNC_ENABLED_SOURCES"),

		Squarespace: SquarespaceConfig{
			APIKey:            strings.TrimSpace(getenv("SQUARESPACE_API_KEY", "")),
			ClientID:          strings.TrimSpace(getenv("SQUARESPACE_CLIENT_ID", "")),
			ClientSecret:      strings.TrimSpace(getenv("SQUARESPACE_CLIENT_SECRET", "")),
			MembershipSKUs:    getenvList("SQUARESPACE_MEMBERSHIP_SKUS"),
			AllowedWebsiteIDs: getenvList("SQUARESPACE_ALLOWED_WEBSITE_IDS"),
		},
		BigCommerce: BigCommerceConfig{
			StoreHash:      strings.TrimSpace(getenv("BIGCOMMERCE_STORE_HASH", "")),
			ClientID:       strings.TrimSpace(getenv("BIGCOMMERCE_CLIENT_ID", "")),
			AccessToken:    strings.TrimSpace(getenv("BIGCOMMERCE_ACCESS_TOKEN", "")),
			MembershipSKUs: getenvList("BIGCOMMERCE_MEMBERSHIP_SKUS"),
			WebhookSecret:  strings.TrimSpace(getenv("BIGCOMMERCE_WEBHOOK_SECRET", "")),
		},
		Minibc: MinibcConfig{
			APIKey:         strings.TrimSpace(getenv("MINIBC_API_KEY", "")),
			MembershipSKUs: getenvList("MINIBC_MEMBERSHIP_SKUS"),
		},
	}
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func getenvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
