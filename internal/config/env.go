package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Env struct {
	AppAddr  string `mapstructure:"APP_ADDR"`
	GinMode  string `mapstructure:"GIN_MODE"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDriver string `mapstructure:"DB_DRIVER"`
	DBDSN    string `mapstructure:"DB_DSN"`

	Gateway               string        `mapstructure:"GATEWAY"`
	StripeSecretKey       string        `mapstructure:"STRIPE_SECRET_KEY"`
	GatewayTimeout        time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	MockGatewayLatency    time.Duration `mapstructure:"MOCK_GATEWAY_LATENCY"`
	MockChargeFailureRate float64       `mapstructure:"MOCK_CHARGE_FAILURE_RATE"`
	MockRefundFailureRate float64       `mapstructure:"MOCK_REFUND_FAILURE_RATE"`
	DefaultCurrency       string        `mapstructure:"DEFAULT_CURRENCY"`

	// Redis backs the booking locks and the receipt mail queue.
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisLockDB   int           `mapstructure:"REDIS_LOCK_DB"`
	RedisQueueDB  int           `mapstructure:"REDIS_QUEUE_DB"`
	LockTTL       time.Duration `mapstructure:"LOCK_TTL"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	JWTSecret          string `mapstructure:"JWT_SECRET"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerMin    int    `mapstructure:"RATE_LIMIT_PER_MIN"`
}

var defaults = map[string]any{
	"APP_ADDR":                 ":8080",
	"GIN_MODE":                 "",
	"ENV":                      "development",
	"LOG_LEVEL":                "info",
	"DB_DRIVER":                "sqlite",
	"DB_DSN":                   "file:settlement.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
	"GATEWAY":                  "mock",
	"STRIPE_SECRET_KEY":        "",
	"GATEWAY_TIMEOUT":          "10s",
	"MOCK_GATEWAY_LATENCY":     "300ms",
	"MOCK_CHARGE_FAILURE_RATE": 0.05,
	"MOCK_REFUND_FAILURE_RATE": 0.02,
	"DEFAULT_CURRENCY":         "USD",
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_LOCK_DB":            0,
	"REDIS_QUEUE_DB":           1,
	"LOCK_TTL":                 "30s",
	"KAFKA_BROKERS":            "",
	"KAFKA_TOPIC":              "settlement-events",
	"JWT_SECRET":               "",
	"CORS_ALLOWED_ORIGINS":     "*",
	"RATE_LIMIT_PER_MIN":       120,
}

// LoadEnv reads config.yaml from . or ./config when present; environment
// variables always win.
func LoadEnv() (Env, error) {
	return load(viper.New(), true)
}

func load(v *viper.Viper, readFile bool) (Env, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if readFile {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Env{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var env Env
	if err := v.Unmarshal(&env); err != nil {
		return Env{}, fmt.Errorf("decode config: %w", err)
	}
	env.normalize()
	return env, env.validate()
}

func (e *Env) normalize() {
	e.AppAddr = strings.TrimSpace(e.AppAddr)
	if e.AppAddr == "" {
		e.AppAddr = ":8080"
	}
	e.DBDriver = strings.ToLower(strings.TrimSpace(e.DBDriver))
	e.Gateway = strings.ToLower(strings.TrimSpace(e.Gateway))
	e.DefaultCurrency = strings.ToUpper(strings.TrimSpace(e.DefaultCurrency))
	if e.DefaultCurrency == "" {
		e.DefaultCurrency = "USD"
	}
}

func (e Env) validate() error {
	switch e.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or mysql, got %q", e.DBDriver)
	}
	switch e.Gateway {
	case "mock":
	case "stripe":
		if e.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when GATEWAY=stripe")
		}
	default:
		return fmt.Errorf("GATEWAY must be mock or stripe, got %q", e.Gateway)
	}
	if e.MockChargeFailureRate < 0 || e.MockChargeFailureRate > 1 || e.MockRefundFailureRate < 0 || e.MockRefundFailureRate > 1 {
		return fmt.Errorf("mock failure rates must be between 0 and 1")
	}
	return nil
}

func (e Env) IsProduction() bool { return e.Env == "production" }

// KafkaBrokerList splits KAFKA_BROKERS on commas.
func (e Env) KafkaBrokerList() []string { return splitList(e.KafkaBrokers) }

func (e Env) CORSOrigins() []string { return splitList(e.CORSAllowedOrigins) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
