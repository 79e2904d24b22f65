package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "CERBERUS"

// legacyEnv lists unprefixed variable names accepted for compatibility with
// existing deployments. The prefixed name wins when both are set.
var legacyEnv = map[string]string{
	"database_dsn":           "DATABASE_URL",
	"secret_key":             "JWT_SECRET",
	"token_expiration_hours": "JWT_EXPIRATION_HOURS",
	"http_address":           "BIND_ADDRESS",
	"environment":            "ENVIRONMENT",
}

// LoadConfig builds a Config from defaults, an optional config file, the
// environment and args, then validates it.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	flags := newFlagSet(cfg)
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := loadEnvFile(flags); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == flagConfigFile || f.Name == flagEnvFile {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
		envs := []string{EnvPrefix + "_" + strings.ToUpper(key)}
		if legacy, ok := legacyEnv[key]; ok {
			envs = append(envs, legacy)
		}
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}

	if path, _ := flags.GetString(flagConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.apply(v)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadEnvFile loads the explicit --env-file, or ./.env when it exists.
// Variables already present in the environment are not overridden.
func loadEnvFile(flags *pflag.FlagSet) error {
	path, _ := flags.GetString(flagEnvFile)
	if path == "" {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) apply(v *viper.Viper) {
	c.Environment = strings.ToLower(v.GetString("environment"))
	c.EndpointAddrHTTP = v.GetString("http_address")
	c.EndpointAddrGRPC = v.GetString("grpc_address")

	c.DatabaseDSN = v.GetString("database_dsn")
	c.DatabaseMaxConns = v.GetInt("database_max_conns")
	c.DatabaseMinConns = v.GetInt("database_min_conns")
	c.DatabaseIdleTimeout = v.GetDuration("database_idle_timeout")
	c.StoreTimeout = v.GetDuration("store_timeout")

	c.SecretKey = v.GetString("secret_key")
	c.TokenExpirationHours = v.GetInt("token_expiration_hours")

	c.Argon2Memory = v.GetUint32("argon2_memory")
	c.Argon2Time = v.GetUint32("argon2_time")
	c.Argon2Threads = uint8(v.GetUint("argon2_threads"))

	c.LockoutThreshold = v.GetInt("lockout_threshold")
	c.LockoutDuration = v.GetDuration("lockout_duration")

	c.CheckSessions = v.GetBool("check_sessions")
	c.PublicPaths = splitList(v.GetStringSlice("public_paths"))
	c.SessionCacheTTL = v.GetDuration("session_cache_ttl")
	c.TrustedProxies = splitList(v.GetStringSlice("trusted_proxies"))

	c.RedisAddr = v.GetString("redis_addr")
	c.RedisPassword = v.GetString("redis_password")
	c.RedisDB = v.GetInt("redis_db")

	c.LogLevel = v.GetString("log_level")
	c.LogFormat = v.GetString("log_format")
}

// splitList accepts both repeated values and a single comma-separated
// string, which is how a list arrives from an environment variable.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
