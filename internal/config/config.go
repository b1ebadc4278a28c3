package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	MongoURI string
	DBName   string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CookieSecure    bool
	CORSOrigin      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL           string
	NotificationQueue string

	RateLimitEnabled  bool
	RateLimitCapacity int
	RateLimitRefill   int
	RateLimitInterval time.Duration

	OTPTTL         time.Duration
	OTPMaxAttempts int
	OTPMaxIssues   int
	OTPIssueWindow time.Duration

	SSLStoreID     string
	SSLStorePasswd string
	SSLGatewayURL  string
	SSLValidateURL string
	PublicBaseURL  string

	ShippingFee float64
	UploadDir   string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() Config {
	return Config{
		Port:     getEnvOrDefault("PORT", "3005"),
		AppEnv:   getEnvOrDefault("APP_ENV", "dev"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		MongoURI: getEnvOrDefault("MONGO_URI", ""),
		DBName:   getEnvOrDefault("DB_NAME", "storefront"),

		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 15, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 30, 24*time.Hour),
		CookieSecure:    getBoolEnv("COOKIE_SECURE", true),
		CORSOrigin:      getEnvOrDefault("CORS_ORIGIN", "http://localhost:3000"),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		AMQPURL:           getEnvOrDefault("AMQP_URL", ""),
		NotificationQueue: getEnvOrDefault("NOTIFICATION_QUEUE", "storefront.notifications"),

		RateLimitEnabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitCapacity: getIntEnv("RATE_LIMIT_CAPACITY", 10),
		RateLimitRefill:   getIntEnv("RATE_LIMIT_REFILL", 1),
		RateLimitInterval: getDurationEnv("RATE_LIMIT_INTERVAL", 6, time.Second),

		OTPTTL:         getDurationEnv("OTP_TTL", 5, time.Minute),
		OTPMaxAttempts: getIntEnv("OTP_MAX_ATTEMPTS", 5),
		OTPMaxIssues:   getIntEnv("OTP_MAX_ISSUES", 3),
		OTPIssueWindow: getDurationEnv("OTP_ISSUE_WINDOW", 60, time.Minute),

		SSLStoreID:     getEnvOrDefault("SSL_STORE_ID", ""),
		SSLStorePasswd: getEnvOrDefault("SSL_STORE_PASSWD", ""),
		SSLGatewayURL:  getEnvOrDefault("SSL_GATEWAY_URL", "https://sandbox.sslcommerz.com/gwprocess/v4/api.php"),
		SSLValidateURL: getEnvOrDefault("SSL_VALIDATION_URL", "https://sandbox.sslcommerz.com/validator/api/validationserverAPI.php"),
		PublicBaseURL:  getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:3005"),

		ShippingFee: getFloatEnv("SHIPPING_FEE", 60),
		UploadDir:   getEnvOrDefault("UPLOAD_DIR", "./public/uploads"),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}
