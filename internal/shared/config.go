package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPAddr       string
	MetricsAddr    string
	MySQLDSN       string
	MigrateOnStart bool

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration
	CacheNS   string

	ChangeFeedDriver string // redis|nats|memory
	NATSURL          string

	Geocoder         string // table|nominatim
	NominatimBaseURL string
	GeocoderRPS      int

	JWTSecret string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	SearchDebounce  time.Duration
	BackfillWorkers int
	RateLimitRPS    float64
	RateLimitBurst  int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ":9100"),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/localdir?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC"),
		MigrateOnStart: boolean("MIGRATE_ON_START", true),

		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		CacheNS:   env("CACHE_NAMESPACE", "localdir:"),

		ChangeFeedDriver: strings.ToLower(env("CHANGEFEED_DRIVER", "redis")),
		NATSURL:          env("NATS_URL", "nats://localhost:4222"),

		Geocoder:         strings.ToLower(env("GEOCODER", "table")),
		NominatimBaseURL: env("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderRPS:      atoi("GEOCODER_RPS", 1),

		JWTSecret: env("JWT_SECRET", ""),

		MinioEndpoint:  env("MINIO_ENDPOINT", ""),
		MinioAccessKey: env("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: env("MINIO_SECRET_KEY", ""),
		MinioBucket:    env("MINIO_BUCKET", "listing-images"),
		MinioUseSSL:    boolean("MINIO_USE_SSL", false),

		SearchDebounce:  time.Duration(atoi("SEARCH_DEBOUNCE_MS", 300)) * time.Millisecond,
		BackfillWorkers: atoi("BACKFILL_WORKERS", 4),
		RateLimitRPS:    atof("RATE_LIMIT_RPS", 10),
		RateLimitBurst:  atoi("RATE_LIMIT_BURST", 20),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty; all requests are anonymous")
	}
	if c.MinioEndpoint == "" {
		log.Warn().Msg("MINIO_ENDPOINT is empty; image uploads are disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func boolean(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
