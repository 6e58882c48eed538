package app

import (
	"os"
	"strconv"
	"time"
)

// Config описывает настройки запуска приложения.
// Пустой PostgresDSN переключает хранилище на in-memory реализацию,
// пустые адреса внешних сервисов — на mock-клиенты.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	PostgresDSN string
	RedisAddr   string

	IdentityURL string
	CatalogURL  string

	KafkaBrokers string

	ReconcileInterval time.Duration
	HTTPClientTimeout time.Duration

	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
}

// DefaultConfig возвращает базовые значения для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:           ":8080",
		MetricsAddr:        ":9090",
		ReconcileInterval:  5 * time.Minute,
		HTTPClientTimeout:  5 * time.Second,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// ConfigFromEnv собирает конфигурацию из переменных окружения ORDERING_*.
// Отсутствующие или некорректные значения заменяются значениями по умолчанию.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("ORDERING_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("ORDERING_METRICS_ADDR", cfg.MetricsAddr)
	cfg.PostgresDSN = envString("ORDERING_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = envString("ORDERING_REDIS_ADDR", cfg.RedisAddr)
	cfg.IdentityURL = envString("ORDERING_IDENTITY_URL", cfg.IdentityURL)
	cfg.CatalogURL = envString("ORDERING_CATALOG_URL", cfg.CatalogURL)
	cfg.KafkaBrokers = envString("ORDERING_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.ReconcileInterval = envDuration("ORDERING_RECONCILE_INTERVAL", cfg.ReconcileInterval)
	cfg.HTTPClientTimeout = envDuration("ORDERING_HTTP_CLIENT_TIMEOUT", cfg.HTTPClientTimeout)
	cfg.BreakerMaxFailures = envInt("ORDERING_BREAKER_MAX_FAILURES", cfg.BreakerMaxFailures)
	cfg.BreakerOpenTimeout = envDuration("ORDERING_BREAKER_OPEN_TIMEOUT", cfg.BreakerOpenTimeout)

	return cfg
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
