package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"

	EmailTransportSMTP = "smtp"
	EmailTransportSES  = "ses"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode      string // Set via flag, not env
	MockServices bool
	LogLevel     string
	LogFormat    string

	// Storage
	StoreDriver string
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret      string
	JwtTTL         time.Duration
	EmailVerifyTTL time.Duration

	// Server
	ApiPort           string
	ServiceApiPort    string
	CorsAllowedOrigin string

	// Stripe
	StripeWebhookSecret string
	WebhookTolerance    time.Duration

	// Email
	EmailTransport  string
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	LogEmailsPath   string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	UploadURLTTL       time.Duration

	// App Defaults
	AppName        string
	AppBaseURL     string
	PasswordRegexp string

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
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		n, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(n) * time.Second, nil
	}

	cfg.MockServices = getEnv("MOCK_SERVICES", "") == "true"
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	cfg.StoreDriver = getEnv("STORE_DRIVER", StoreDriverMongo)
	switch cfg.StoreDriver {
	case StoreDriverMongo:
		cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
		if err != nil {
			return nil, err
		}
	case StoreDriverMemory:
		cfg.MongoURI = getEnv("MONGO_URI", "")
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "quoteajob")

	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.CorsAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", "*")
	cfg.StripeWebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", "")
	cfg.EmailTransport = getEnv("EMAIL_TRANSPORT", EmailTransportSMTP)
	if cfg.EmailTransport != EmailTransportSMTP && cfg.EmailTransport != EmailTransportSES {
		return nil, fmt.Errorf("invalid EMAIL_TRANSPORT: %q", cfg.EmailTransport)
	}
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@quoteajob.com")
	cfg.LogEmailsPath = getEnv("LOG_EMAILS", "")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "eu-west-2")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AppName = getEnv("APP_NAME", "QuoteAJob")
	cfg.AppBaseURL = getEnv("APP_BASE_URL", "http://localhost:3000")
	cfg.PasswordRegexp = getEnv("PASSWORD_REGEXP", "^.{8,}$")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "86400"); err != nil {
		return nil, err
	}
	if cfg.WebhookTolerance, err = getSeconds("WEBHOOK_TOLERANCE_SECONDS", "300"); err != nil {
		return nil, err
	}
	if cfg.UploadURLTTL, err = getSeconds("UPLOAD_URL_TTL_SECONDS", "900"); err != nil {
		return nil, err
	}

	emailVerifyTTLHours, err := strconv.ParseInt(getEnv("EMAIL_VERIFY_TTL_HOURS", "48"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_VERIFY_TTL_HOURS: %w", err)
	}
	cfg.EmailVerifyTTL = time.Duration(emailVerifyTTLHours) * time.Hour

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	// Rate Limiting
	cfg.RateLimitSoftBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_BUCKET_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitSoftRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_REFILL_RATE", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_REFILL_RATE: %w", err)
	}
	cfg.RateLimitHardBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_BUCKET_SIZE", "40"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitHardRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_REFILL_RATE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
