package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	StoreDriver string
	MySQLDSN    string
	ResetDB     bool
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	JWTTTL      time.Duration
	SwaggerHost string
	LogLevel    string

	// OverloadDisabled turns off simulated backpressure entirely.
	OverloadDisabled    bool
	OverloadProbability float64
	// MaxUploadSize is an echo body limit string such as "5M".
	MaxUploadSize string

	// PublicDir is served under /static; uploads land in PublicDir/uploads.
	PublicDir string

	// S3 artifact storage is used instead of PublicDir when S3Bucket is set.
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string
	S3PublicURL string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		ServerPort:          getEnv("SERVER_PORT", "4000"),
		StoreDriver:         getEnv("STORE_DRIVER", "mysql"),
		MySQLDSN:            getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/studio?charset=utf8mb4&parseTime=True&loc=UTC"),
		ResetDB:             getEnvBool("RESET_DB", false),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		RedisPass:           os.Getenv("REDIS_PASSWORD"),
		JWTSecret:           getEnv("JWT_SECRET", "change-me"),
		JWTTTL:              getEnvDuration("JWT_TTL", 24*time.Hour),
		SwaggerHost:         os.Getenv("SWAGGER_HOST"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		OverloadDisabled:    getEnvBool("OVERLOAD_DISABLED", false),
		OverloadProbability: getEnvFloat("OVERLOAD_PROBABILITY", 0.2),
		MaxUploadSize:       getEnv("MAX_UPLOAD_SIZE", "5M"),
		PublicDir:           getEnv("PUBLIC_DIR", "public"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		S3Region:            getEnv("S3_REGION", "us-east-1"),
		S3AccessKey:         os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:         os.Getenv("S3_SECRET_KEY"),
		S3Endpoint:          os.Getenv("S3_ENDPOINT"),
		S3PublicURL:         os.Getenv("S3_PUBLIC_URL"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
