package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT (shared across all tenants)
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Redis (KPI snapshot cache)
	RedisURL string

	// Object storage (raw import payloads, message media)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string

	// WhatsApp Business Cloud API
	WhatsAppAPIURL       string
	WhatsAppToken        string
	WhatsAppWebhookToken string
	WhatsAppTimeout      time.Duration

	// Campaign worker
	CampaignWorkers       int
	CampaignSendInterval  time.Duration
	CampaignLeaseDuration time.Duration
	CampaignMaxAttempts   int

	// Import pipeline
	ImportMaxFileBytes int64
	ImportCommitChunk  int

	// Admin
	AdminEmails string
	AdminToken  string

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "wappdesk"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m")),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h")),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "wappdesk"),
		MinioUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		MinioPublicURL: getEnv("MINIO_PUBLIC_URL", "http://localhost:9000"),

		WhatsAppAPIURL:       getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0"),
		WhatsAppToken:        getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppWebhookToken: getEnv("WHATSAPP_WEBHOOK_TOKEN", ""),
		WhatsAppTimeout:      parseDuration(getEnv("WHATSAPP_TIMEOUT", "30s")),

		CampaignWorkers:       parseInt(getEnv("CAMPAIGN_WORKERS", "4"), 4),
		CampaignSendInterval:  parseDuration(getEnv("CAMPAIGN_SEND_INTERVAL", "1s")),
		CampaignLeaseDuration: parseDuration(getEnv("CAMPAIGN_LEASE_DURATION", "60s")),
		CampaignMaxAttempts:   parseInt(getEnv("CAMPAIGN_MAX_ATTEMPTS", "3"), 3),

		ImportMaxFileBytes: int64(parseInt(getEnv("IMPORT_MAX_FILE_MB", "10"), 10)) * 1024 * 1024,
		ImportCommitChunk:  parseInt(getEnv("IMPORT_COMMIT_CHUNK", "200"), 200),

		AdminEmails: getEnv("ADMIN_EMAILS", ""),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
