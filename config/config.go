package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	S3        S3Config
	Redis     RedisConfig
	Order     OrderConfig
	Catalog   CatalogConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxIdleConns       int
	MaxOpenConns       int
	ConnMaxLifetime    time.Duration
	TxTimeout          time.Duration
	TxMaxRetries       int
	SlowQueryThreshold time.Duration
}

type JWTConfig struct {
	Secret    string
	AccessTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type OrderConfig struct {
	NumberPrefix string
	NodeID       int64 // snowflake node, unique per running instance
}

type CatalogConfig struct {
	PageSize int
}

type SchedulerConfig struct {
	Enabled      bool
	GuestCartTTL time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", ""),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", "admin"),
			Password:           getEnv("DB_PASSWORD", "1234"),
			DBName:             getEnv("DB_NAME", "storefront"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime:    parseDuration(getEnv("DB_CONN_MAX_LIFETIME", "30m"), 30*time.Minute),
			TxTimeout:          parseDuration(getEnv("DB_TX_TIMEOUT", "5s"), 5*time.Second),
			TxMaxRetries:       getEnvInt("DB_TX_MAX_RETRIES", 3),
			SlowQueryThreshold: parseDuration(getEnv("DB_SLOW_QUERY_THRESHOLD", "200ms"), 200*time.Millisecond),
		},
		JWT: JWTConfig{
			Secret:    getEnv("JWT_SECRET", "your-secret-key"),
			AccessTTL: parseDuration(getEnv("JWT_ACCESS_TTL", "24h"), 24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "storefront-media"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Order: OrderConfig{
			NumberPrefix: getEnv("ORDER_NUMBER_PREFIX", "ORD"),
			NodeID:       int64(getEnvInt("ORDER_NODE_ID", 1)),
		},
		Catalog: CatalogConfig{
			PageSize: getEnvInt("CATALOG_PAGE_SIZE", 10),
		},
		Scheduler: SchedulerConfig{
			Enabled:      getEnvBool("SCHEDULER_ENABLED", true),
			GuestCartTTL: parseDuration(getEnv("GUEST_CART_TTL", "720h"), 30*24*time.Hour),
		},
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
		if config.Server.Environment == "development" {
			config.Log.Level = "debug"
		}
	}

	if config.Order.NodeID < 0 || config.Order.NodeID > 1023 {
		return nil, fmt.Errorf("ORDER_NODE_ID must be between 0 and 1023, got %d", config.Order.NodeID)
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Invalid boolean for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
