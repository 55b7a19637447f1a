package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/petauth/internal/flagx"
)

var knownFlags = []string{
	"-a", "-g", "-d", "-s", "-i", "-t", "-r", "-w", "-b",
	"-redis-addr", "-redis-password", "-redis-db",
	"-store-timeout", "-bcrypt-cost", "-log-level",
}

// parseFlags populates Config fields from command-line flags.
//
//	-a string            HTTP bind address (e.g. ":8080")
//	-g string            gRPC bind address (e.g. ":50051")
//	-d string            PostgreSQL DSN
//	-s string            token signing secret
//	-i string            token issuer
//	-t duration          access token TTL
//	-r duration          refresh token TTL
//	-w duration          refresh renew threshold
//	-b string            refresh store backend: postgres, redis or memory
//	-redis-addr string
//	-redis-password string
//	-redis-db int
//	-store-timeout duration
//	-bcrypt-cost int
//	-log-level string
//
// os.Args is filtered with flagx.FilterArgs first so flags belonging to
// other components (such as -c) do not cause parse errors.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port to run server")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "token issuer")
	fs.DurationVar(&config.AccessTokenTTL, "t", config.AccessTokenTTL, "access token TTL")
	fs.DurationVar(&config.RefreshTokenTTL, "r", config.RefreshTokenTTL, "refresh token TTL")
	fs.DurationVar(&config.RefreshRenewThreshold, "w", config.RefreshRenewThreshold, "refresh token renew threshold")
	fs.StringVar(&config.StoreBackend, "b", config.StoreBackend, "refresh store backend (postgres, redis, memory)")
	fs.StringVar(&config.RedisAddr, "redis-addr", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPassword, "redis-password", config.RedisPassword, "redis password")
	fs.IntVar(&config.RedisDB, "redis-db", config.RedisDB, "redis database")
	fs.DurationVar(&config.StoreTimeout, "store-timeout", config.StoreTimeout, "store call timeout")
	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt cost")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level (debug, info, warn, error)")

	return fs.Parse(args)
}
