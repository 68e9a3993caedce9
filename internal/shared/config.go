package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	Store       string // mysql | memory
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	JWTSecret string

	PaymentsBase string
	PaymentsKey  string
	PaymentsRPS  int

	AWSRegion        string
	NotifyFrom       string
	NotifyAdminEmail string
	DocumentsBucket  string
	S3Endpoint       string

	SlotUnitMinutes  int
	ReconcileWorkers int
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over .env entries.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env could not be read")
	}
	return fromEnv()
}

func fromEnv() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:           env("APP_ENV", "prod"),
		LogLevel:         env("LOG_LEVEL", "info"),
		HTTPAddr:         env("HTTP_ADDR", ":8080"),
		MetricsAddr:      env("METRICS_ADDR", ""),
		Store:            env("STORE", "mysql"),
		MySQLDSN:         env("MYSQL_DSN", "root:root@tcp(localhost:3306)/rental?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:        env("REDIS_ADDR", "localhost:6379"),
		RedisPass:        env("REDIS_PASSWORD", ""),
		RedisDB:          atoi("REDIS_DB", 0),
		CacheTTL:         time.Duration(atoi("CACHE_TTL_SECONDS", 60)) * time.Second,
		JWTSecret:        env("JWT_SECRET", ""),
		PaymentsBase:     env("PAYMENTS_BASE_URL", "https://api.stripe.com"),
		PaymentsKey:      env("PAYMENTS_API_KEY", ""),
		PaymentsRPS:      atoi("PAYMENTS_RPS", 5),
		AWSRegion:        env("AWS_REGION", "eu-west-1"),
		NotifyFrom:       env("NOTIFY_FROM", ""),
		NotifyAdminEmail: env("NOTIFY_ADMIN_EMAIL", ""),
		DocumentsBucket:  env("DOCUMENTS_BUCKET", ""),
		S3Endpoint:       env("S3_ENDPOINT", ""),
		SlotUnitMinutes:  atoi("SLOT_UNIT_MINUTES", 10),
		ReconcileWorkers: atoi("RECONCILE_WORKERS", 4),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty; every bearer token will be rejected")
	}
	if c.PaymentsKey == "" {
		log.Warn().Msg("PAYMENTS_API_KEY is empty")
	}
	if c.ReconcileWorkers < 1 {
		c.ReconcileWorkers = 1
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
