package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string
	LogLevel    string

	ServerPort int

	DatabaseURL string

	JWTAccessSecret []byte
	AuthHTTPURL     string

	KafkaBrokers []string

	Gateway GatewayConfig

	BillingGracePeriod time.Duration
	Currency           string
}

type GatewayConfig struct {
	BaseURL   string
	APISecret string
	StoreID   string
	Timeout   time.Duration
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "commerce"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),
		AuthHTTPURL:     os.Getenv("AUTH_URL"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		Gateway: GatewayConfig{
			BaseURL:   EnvDefault("GATEWAY_BASE_URL", "https://api.portone.io"),
			APISecret: os.Getenv("GATEWAY_API_SECRET"),
			StoreID:   os.Getenv("GATEWAY_STORE_ID"),
			Timeout:   EnvDurationDefault("GATEWAY_TIMEOUT", 10*time.Second),
		},

		BillingGracePeriod: EnvDurationDefault("BILLING_GRACE_PERIOD", 72*time.Hour),
		Currency:           EnvDefault("CURRENCY", "KRW"),
	}
}

// WriteTimeout covers a handler that makes three sequential gateway calls and then publishes
// an event, as crowdfund checkout and webhook settlement can.
func (c Config) WriteTimeout() time.Duration {
	return 3*c.Gateway.Timeout + 10*time.Second
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
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

// EnvDurationDefault accepts Go duration strings ("90s", "72h") or a bare number of seconds.
func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
