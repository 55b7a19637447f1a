package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/petauth/internal/flagx"
	"github.com/dmitrijs2005/petauth/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Durations accept
// both "15m" and integer nanoseconds. Zero values leave the current
// setting untouched.
type FileConfig struct {
	HTTPAddr              string         `json:"http_addr" yaml:"http_addr"`
	GRPCAddr              string         `json:"grpc_addr" yaml:"grpc_addr"`
	DatabaseDSN           string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey             string         `json:"secret_key" yaml:"secret_key"`
	Issuer                string         `json:"issuer" yaml:"issuer"`
	AccessTokenTTL        timex.Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshTokenTTL       timex.Duration `json:"refresh_token_ttl" yaml:"refresh_token_ttl"`
	RefreshRenewThreshold timex.Duration `json:"refresh_renew_threshold" yaml:"refresh_renew_threshold"`
	StoreBackend          string         `json:"store_backend" yaml:"store_backend"`
	RedisAddr             string         `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword         string         `json:"redis_password" yaml:"redis_password"`
	RedisDB               int            `json:"redis_db" yaml:"redis_db"`
	StoreTimeout          timex.Duration `json:"store_timeout" yaml:"store_timeout"`
	StoreRetryBackoff     timex.Duration `json:"store_retry_backoff" yaml:"store_retry_backoff"`
	BcryptCost            int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	LogLevel              string         `json:"log_level" yaml:"log_level"`
	ShutdownTimeout       timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// parseFile loads the file named by -c or -config, if any. Files ending in
// .yaml or .yml are decoded as YAML, anything else as JSON.
func parseFile(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(config *Config) {
	setString(&config.HTTPAddr, fc.HTTPAddr)
	setString(&config.GRPCAddr, fc.GRPCAddr)
	setString(&config.DatabaseDSN, fc.DatabaseDSN)
	setString(&config.SecretKey, fc.SecretKey)
	setString(&config.Issuer, fc.Issuer)
	setString(&config.StoreBackend, fc.StoreBackend)
	setString(&config.RedisAddr, fc.RedisAddr)
	setString(&config.RedisPassword, fc.RedisPassword)
	setString(&config.LogLevel, fc.LogLevel)

	setDuration(&config.AccessTokenTTL, fc.AccessTokenTTL)
	setDuration(&config.RefreshTokenTTL, fc.RefreshTokenTTL)
	setDuration(&config.RefreshRenewThreshold, fc.RefreshRenewThreshold)
	setDuration(&config.StoreTimeout, fc.StoreTimeout)
	setDuration(&config.StoreRetryBackoff, fc.StoreRetryBackoff)
	setDuration(&config.ShutdownTimeout, fc.ShutdownTimeout)

	if fc.RedisDB != 0 {
		config.RedisDB = fc.RedisDB
	}
	if fc.BcryptCost != 0 {
		config.BcryptCost = fc.BcryptCost
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
