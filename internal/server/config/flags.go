package config

import (
	"github.com/spf13/pflag"
)

const (
	flagConfigFile = "config"
	flagEnvFile    = "env-file"
)

// newFlagSet declares every setting as a flag whose default is the current
// value in c. Flag names map to viper keys by replacing '-' with '_'.
func newFlagSet(c *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("cerberus", pflag.ContinueOnError)

	fs.StringP(flagConfigFile, "c", "", "path to a YAML/JSON/TOML config file")
	fs.String(flagEnvFile, "", "path to a .env file (default: ./.env if present)")

	fs.String("environment", c.Environment, "runtime environment: development or production")
	fs.StringP("http-address", "a", c.EndpointAddrHTTP, "HTTP bind address")
	fs.StringP("grpc-address", "g", c.EndpointAddrGRPC, "gRPC health endpoint bind address")

	fs.StringP("database-dsn", "d", c.DatabaseDSN, "PostgreSQL DSN")
	fs.Int("database-max-conns", c.DatabaseMaxConns, "maximum open database connections")
	fs.Int("database-min-conns", c.DatabaseMinConns, "idle database connections kept open")
	fs.Duration("database-idle-timeout", c.DatabaseIdleTimeout, "idle connection lifetime")
	fs.Duration("store-timeout", c.StoreTimeout, "deadline for a single store operation")

	fs.StringP("secret-key", "s", c.SecretKey, "HMAC secret for signing session tokens")
	fs.IntP("token-expiration-hours", "t", c.TokenExpirationHours, "session token lifetime in hours")

	fs.Uint32("argon2-memory", c.Argon2Memory, "argon2id memory cost in KiB")
	fs.Uint32("argon2-time", c.Argon2Time, "argon2id passes")
	fs.Uint8("argon2-threads", c.Argon2Threads, "argon2id lanes")

	fs.Int("lockout-threshold", c.LockoutThreshold, "failed logins before the account is locked")
	fs.Duration("lockout-duration", c.LockoutDuration, "how long a locked account stays locked")

	fs.Bool("check-sessions", c.CheckSessions, "reject tokens whose session was revoked")
	fs.StringSlice("public-paths", c.PublicPaths, "paths served without authentication")
	fs.Duration("session-cache-ttl", c.SessionCacheTTL, "how long an active-session lookup is cached")
	fs.StringSlice("trusted-proxies", c.TrustedProxies, "proxy IPs/CIDRs allowed to set X-Forwarded-For")

	fs.String("redis-addr", c.RedisAddr, "redis address for the session cache; empty disables it")
	fs.String("redis-password", c.RedisPassword, "redis password")
	fs.Int("redis-db", c.RedisDB, "redis database number")

	fs.String("log-level", c.LogLevel, "debug, info, warn or error")
	fs.String("log-format", c.LogFormat, "json or console")

	return fs
}
