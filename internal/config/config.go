package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Enabled     bool
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
	URLExpiry       time.Duration
}

type AppConfig struct {
	Port string

	// DataDir holds the CSV ledger and the JSON account and schedule files.
	DataDir string
	// RecordStore is "csv" or "postgres".
	RecordStore string

	Postgres PostgresConfig
	Redis    RedisConfig

	// ExportStorage is "local" or "s3".
	ExportStorage     string
	S3                S3Config
	ExportDir         string
	FilesPublicPrefix string
	ExternalURL       string
	ExportRetention   time.Duration

	SessionTTL       time.Duration
	CleanupSchedule  string
	AllowAdminSignup bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration value %q: %v", s, err)
	}
	return d
}

func Load() AppConfig {
	return AppConfig{
		Port:        getenv("APP_PORT", "8010"),
		DataDir:     getenv("DATA_DIR", "data"),
		RecordStore: getenv("RECORD_STORE", "csv"),
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     mustAtoi(getenv("PG_PORT", "5432")),
			User:     getenv("PG_USER", "postgres"),
			Password: getenv("PG_PASSWORD", ""),
			DBName:   getenv("PG_DB", "fee_ledger"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:     mustBool(getenv("REDIS_ENABLED", "false")),
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "fee_ledger_"),
		},
		ExportStorage: getenv("EXPORT_STORAGE", "local"),
		S3: S3Config{
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "fee-exports"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", "exports/"),
			URLExpiry:       mustDuration(getenv("S3_URL_EXPIRY", "1h")),
		},
		ExportDir:         getenv("EXPORT_DIR", "storage/exports"),
		FilesPublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
		ExternalURL:       getenv("EXTERNAL_URL", ""),
		ExportRetention:   mustDuration(getenv("EXPORT_RETENTION", "30m")),
		SessionTTL:        mustDuration(getenv("SESSION_TTL", "12h")),
		CleanupSchedule:   getenv("CLEANUP_SCHEDULE", "@every 5m"),
		AllowAdminSignup:  mustBool(getenv("ALLOW_ADMIN_SIGNUP", "false")),
	}
}
