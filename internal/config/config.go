package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port string

	MongoURI     string
	MongoDB      string
	MongoMinPool uint64
	MongoMaxPool uint64

	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int

	FirebaseProjectID string
	GoogleClientID    string
	GoogleSecret      string
	GoogleRedirectURI string
	OAuthStateSecret  string

	RedisAddr       string
	RateLimitPerMin int

	RabbitURL      string
	RabbitExchange string

	DDEnabled bool
}

func Load() Config {
	return Config{
		Port:         getenv("APP_PORT", "8080"),
		MongoURI:     getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getenv("MONGO_DB", "savitara"),
		MongoMinPool: uint64(atoi(getenv("MONGO_MIN_POOL", "5"))),
		MongoMaxPool: uint64(atoi(getenv("MONGO_MAX_POOL", "50"))),

		JWTSecret:      getenv("JWT_SECRET", "default_secret_key"),
		AccessTTLMin:   atoi(getenv("ACCESS_TTL_MIN", "30")),
		RefreshTTLDays: atoi(getenv("REFRESH_TTL_DAYS", "7")),

		FirebaseProjectID: getenv("FIREBASE_PROJECT_ID", ""),
		GoogleClientID:    getenv("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:      getenv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI: getenv("GOOGLE_REDIRECT_URI", ""),
		OAuthStateSecret:  getenv("OAUTH_STATE_SECRET", "state_secret"),

		RedisAddr:       getenv("REDIS_ADDR", ""),
		RateLimitPerMin: atoi(getenv("RATE_LIMIT_PER_MIN", "10")),

		RabbitURL:      getenv("RABBIT_URL", ""),
		RabbitExchange: getenv("RABBIT_EXCHANGE", "auth.events"),

		DDEnabled: getenv("DD_ENABLED", "") == "true",
	}
}

func atoi(s string) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return 0
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
