package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	HashAlg string

	SchemaCacheTTLSeconds int

	SnapshotJobLimit    int
	SnapshotJobMaxLimit int

	VerifyMaxEvents      int
	VerifyTimeoutSeconds int

	WorkflowDailyCapDefault int

	PolicyBundlePath string
	PolicyBundleID   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                addr,
		PostgresDSN:             os.Getenv("POSTGRES_DSN"),
		LogLevel:                envDefault("LOG_LEVEL", "info"),
		HashAlg:                 envDefault("HASH_ALG", "sha256"),
		SchemaCacheTTLSeconds:   envIntDefault("SCHEMA_CACHE_TTL_SECONDS", 300),
		SnapshotJobLimit:        envIntDefault("SNAPSHOT_JOB_LIMIT", 500),
		SnapshotJobMaxLimit:     envIntDefault("SNAPSHOT_JOB_MAX_LIMIT", 2000),
		VerifyMaxEvents:         envIntDefault("VERIFY_MAX_EVENTS", 100000),
		VerifyTimeoutSeconds:    envIntDefault("VERIFY_TIMEOUT_SECONDS", 60),
		WorkflowDailyCapDefault: envIntDefault("WORKFLOW_DAILY_CAP_DEFAULT", 100),
		PolicyBundlePath:        os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:          envDefault("POLICY_BUNDLE_ID", "default_v0"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func (c Config) SchemaCacheTTL() time.Duration {
	if c.SchemaCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.SchemaCacheTTLSeconds) * time.Second
}

func (c Config) VerifyTimeout() time.Duration {
	if c.VerifyTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.VerifyTimeoutSeconds) * time.Second
}
