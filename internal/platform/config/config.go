package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything main needs to wire the service. Values come
// from the environment so deployments stay twelve-factor.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	DatabaseURL string
	Redis       Redis
	Kafka       Kafka

	AuditBuffer int
}

// Redis holds cache connection settings. An empty URL disables the hash
// index cache entirely.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka holds audit stream settings. Empty brokers keep audit events in the
// database outbox only.
type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:            envOr("PFASCERT_ADDR", ":8080"),
		ShutdownTimeout: envDuration("PFASCERT_SHUTDOWN_TIMEOUT", 10*time.Second),
		DatabaseURL:     os.Getenv("PFASCERT_DATABASE_URL"),
		Redis: Redis{
			URL:          os.Getenv("PFASCERT_REDIS_URL"),
			PoolSize:     envInt("PFASCERT_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PFASCERT_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("PFASCERT_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PFASCERT_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PFASCERT_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("PFASCERT_KAFKA_BROKERS")),
			Topic:   envOr("PFASCERT_KAFKA_AUDIT_TOPIC", "pfascert.audit"),
		},
		AuditBuffer: envInt("PFASCERT_AUDIT_BUFFER", 256),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
