package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string

	// Invoice defaults
	DefaultCgstPercent float64
	DefaultSgstPercent float64
	PdfURLTTL          time.Duration

	// Shop branding / sessions
	DefaultShopName  string
	SessionTTL       time.Duration
	LogoMaxDimension int
	LogoMaxSizeMB    int

	// App Defaults
	AppName string

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode, // Set from flag
	}

	var err error

	// Helper function to get env var or default
	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	// Helper function to get required env var
	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "invoicedb")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AppName = getEnv("APP_NAME", "DevBills")
	cfg.DefaultShopName = getEnv("DEFAULT_SHOP_NAME", "Shop")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	// Sessions last a week unless configured otherwise.
	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "604800"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	cfg.DefaultCgstPercent, err = strconv.ParseFloat(getEnv("DEFAULT_CGST_PERCENT", "9"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_CGST_PERCENT: %w", err)
	}

	cfg.DefaultSgstPercent, err = strconv.ParseFloat(getEnv("DEFAULT_SGST_PERCENT", "9"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_SGST_PERCENT: %w", err)
	}

	pdfURLTTLSeconds, err := strconv.ParseInt(getEnv("PDF_URL_TTL_SECONDS", "900"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF_URL_TTL_SECONDS: %w", err)
	}
	cfg.PdfURLTTL = time.Duration(pdfURLTTLSeconds) * time.Second

	sessionTTLHours, err := strconv.ParseInt(getEnv("SESSION_TTL_HOURS", "720"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL_HOURS: %w", err)
	}
	cfg.SessionTTL = time.Duration(sessionTTLHours) * time.Hour

	cfg.LogoMaxDimension, err = strconv.Atoi(getEnv("LOGO_MAX_DIMENSION", "512"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGO_MAX_DIMENSION: %w", err)
	}

	cfg.LogoMaxSizeMB, err = strconv.Atoi(getEnv("LOGO_MAX_SIZE_MB", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGO_MAX_SIZE_MB: %w", err)
	}

	// Rate Limiting
	cfg.RateLimitSoftBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_BUCKET_SIZE", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitSoftRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_REFILL_RATE", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_REFILL_RATE: %w", err)
	}
	cfg.RateLimitHardBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitHardRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
