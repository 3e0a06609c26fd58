package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Session    string
	StorageKey string

	CartStore            string
	SQLitePath           string
	SQLiteMigrationsPath string
	RedisAddr            string
	RedisPassword        string
	MongoURI             string
	MongoDBName          string

	PurchaseAPIURL     string
	PurchaseAPIToken   string
	PurchaseAPITimeout time.Duration

	KafkaBrokers    []string
	EventsTopic     string
	OutboxTopic     string
	ConsumerGroupID string
	NATSURL         string

	LedgerEnabled        bool
	DBHost               string
	DBPort               int
	DBUser               string
	DBPassword           string
	DBName               string
	LedgerMigrationsPath string
}

func Load() *Config {
	session := getEnv("SESSION_ID", "default")
	return &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		Session:    session,
		StorageKey: getEnv("CART_STORAGE_KEY", "shoppingCart"),

		CartStore:            getEnv("CART_STORE", "sqlite"),
		SQLitePath:           getEnv("SQLITE_PATH", "./storefront.db"),
		SQLiteMigrationsPath: getEnv("SQLITE_MIGRATIONS_PATH", "./internal/storage/migrations"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		MongoURI:             getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:          getEnv("MONGO_DB_NAME", "storefront"),

		PurchaseAPIURL:     getEnv("PURCHASE_API_URL", "http://localhost:5000/api"),
		PurchaseAPIToken:   getEnv("PURCHASE_API_TOKEN", ""),
		PurchaseAPITimeout: getEnvDuration("PURCHASE_API_TIMEOUT", 10*time.Second),

		KafkaBrokers:    getEnvList("KAFKA_BROKERS"),
		EventsTopic:     getEnv("EVENTS_TOPIC", "storefront-events"),
		OutboxTopic:     getEnv("OUTBOX_TOPIC", "checkout-outbox"),
		ConsumerGroupID: getEnv("CONSUMER_GROUP_ID", "storefront-library-"+session),
		NATSURL:         getEnv("NATS_URL", ""),

		LedgerEnabled:        getEnvBool("LEDGER_ENABLED", false),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnvInt("DB_PORT", 5432),
		DBUser:               getEnv("DB_USER", "postgres"),
		DBPassword:           getEnv("DB_PASSWORD", "postgres"),
		DBName:               getEnv("DB_NAME", "storefront"),
		LedgerMigrationsPath: getEnv("LEDGER_MIGRATIONS_PATH", "./internal/ledger/migrations"),
	}
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
