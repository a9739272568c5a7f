package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minAuthSecretLength = 32

type Config struct {
	Environment            string
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	ReportCacheTTLSeconds  int
	LocationTimeoutSeconds int
	LogLevel               string
	SeedAdminPassword      string
	SeedRepPassword        string
}

// LoadDotEnv reads a .env file into the process environment outside
// production. Variables already set win over the file.
func LoadDotEnv(path string) error {
	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		return nil
	}
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		Environment:            strings.ToLower(getEnv("APP_ENV", "development")),
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		ReportCacheTTLSeconds:  positiveInt("REPORT_CACHE_TTL_SECONDS", 60),
		LocationTimeoutSeconds: positiveInt("LOCATION_TIMEOUT_SECONDS", 10),
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", "info")),
		SeedAdminPassword:      os.Getenv("SEED_ADMIN_PASSWORD"),
		SeedRepPassword:        os.Getenv("SEED_REP_PASSWORD"),
	}
}

// Validate rejects settings the server must not start with.
func (c Config) Validate() error {
	if len(c.AuthSecret) < minAuthSecretLength {
		return fmt.Errorf("AUTH_SECRET must be set and at least %d characters", minAuthSecretLength)
	}
	if c.IsProduction() && (c.SeedAdminPassword == "" || c.SeedRepPassword == "") {
		return errors.New("SEED_ADMIN_PASSWORD and SEED_REP_PASSWORD are required in production")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func (c Config) LocationTimeout() time.Duration {
	return time.Duration(c.LocationTimeoutSeconds) * time.Second
}

func positiveInt(key string, fallback int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < 1 {
		return fallback
	}
	return val
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
