package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CRDBDSN      string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string

	APIAddr       string
	InventoryAddr string
	InventoryURL  string

	// HoldGrace is added past a booking's end date when a hold is granted, so
	// clock skew and in-flight retries cannot expire a live saga's hold.
	HoldGrace time.Duration

	AcquireTimeout time.Duration
	MutateTimeout  time.Duration
	AcquireRetries int
	MutateRetries  int

	SweepInterval  time.Duration
	IdempotencyTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		CRDBDSN:      os.Getenv("CRDB_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		APIAddr:       envStr("API_ADDR", ":8080"),
		InventoryAddr: envStr("INVENTORY_ADDR", ":8081"),
		InventoryURL:  envStr("INVENTORY_URL", "http://localhost:8081"),

		HoldGrace: envDur("HOLD_GRACE", time.Hour),

		AcquireTimeout: envDur("GATEWAY_ACQUIRE_TIMEOUT", 10*time.Second),
		MutateTimeout:  envDur("GATEWAY_MUTATE_TIMEOUT", 5*time.Second),
		AcquireRetries: envInt("GATEWAY_ACQUIRE_RETRIES", 3),
		MutateRetries:  envInt("GATEWAY_MUTATE_RETRIES", 2),

		SweepInterval:  envDur("SWEEP_INTERVAL", time.Minute),
		IdempotencyTTL: envDur("IDEMPOTENCY_TTL", time.Hour),
	}, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
