package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the explicit runtime configuration, read once at startup.
type Config struct {
	HTTPAddr string

	MySQLDSN      string
	MySQLMaxOpen  int
	MySQLMaxIdle  int
	RedisAddr     string
	RedisPoolSize int

	LogLevel string

	AuditQueueSize int

	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
}

// Load reads .env when present, then the environment, falling back to
// development defaults.
func Load() Config {
	godotenv.Load()

	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		MySQLDSN:      getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/gasops?parseTime=true"),
		MySQLMaxOpen:  getEnvInt("MYSQL_MAX_OPEN", 50),
		MySQLMaxIdle:  getEnvInt("MYSQL_MAX_IDLE", 25),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPoolSize: getEnvInt("REDIS_POOL_SIZE", 50),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		AuditQueueSize: getEnvInt("AUDIT_QUEUE_SIZE", 1024),

		FreeDeliveryThreshold: getEnvDecimal("FREE_DELIVERY_THRESHOLD", decimal.NewFromInt(2000)),
		DeliveryFee:           getEnvDecimal("DELIVERY_FEE", decimal.NewFromInt(50)),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fallback
	}
	return d
}
