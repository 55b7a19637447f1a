package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "PETAUTH_"

// dotenvFile is loaded before reading the environment when present.
// Variables already set in the process environment take precedence.
var dotenvFile = ".env"

// parseEnv overlays PETAUTH_* environment variables onto config.
//
//	PETAUTH_HTTP_ADDR, PETAUTH_GRPC_ADDR, PETAUTH_DATABASE_DSN,
//	PETAUTH_SECRET_KEY, PETAUTH_ISSUER, PETAUTH_ACCESS_TOKEN_TTL,
//	PETAUTH_REFRESH_TOKEN_TTL, PETAUTH_REFRESH_RENEW_THRESHOLD,
//	PETAUTH_STORE_BACKEND, PETAUTH_REDIS_ADDR, PETAUTH_REDIS_PASSWORD,
//	PETAUTH_REDIS_DB, PETAUTH_STORE_TIMEOUT, PETAUTH_STORE_RETRY_BACKOFF,
//	PETAUTH_BCRYPT_COST, PETAUTH_LOG_LEVEL, PETAUTH_SHUTDOWN_TIMEOUT
//
// Durations use Go syntax ("15m", "336h").
func parseEnv(config *Config) error {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", dotenvFile, err)
	}

	strs := map[string]*string{
		"HTTP_ADDR":      &config.HTTPAddr,
		"GRPC_ADDR":      &config.GRPCAddr,
		"DATABASE_DSN":   &config.DatabaseDSN,
		"SECRET_KEY":     &config.SecretKey,
		"ISSUER":         &config.Issuer,
		"STORE_BACKEND":  &config.StoreBackend,
		"REDIS_ADDR":     &config.RedisAddr,
		"REDIS_PASSWORD": &config.RedisPassword,
		"LOG_LEVEL":      &config.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":        &config.AccessTokenTTL,
		"REFRESH_TOKEN_TTL":       &config.RefreshTokenTTL,
		"REFRESH_RENEW_THRESHOLD": &config.RefreshRenewThreshold,
		"STORE_TIMEOUT":           &config.StoreTimeout,
		"STORE_RETRY_BACKOFF":     &config.StoreRetryBackoff,
		"SHUTDOWN_TIMEOUT":        &config.ShutdownTimeout,
	}
	for name, dst := range durations {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"REDIS_DB":    &config.RedisDB,
		"BCRYPT_COST": &config.BcryptCost,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	return nil
}
