package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	RedisAddr        string
	SnapshotCacheTTL time.Duration
	MongoURI         string
	JWTSecret        string

	YahooBaseURL string
	ProviderRPS  float64

	RefreshWorkers   int
	RefreshQueueSize int
	RefreshInterval  int // minutes, 0 disables the periodic job
}

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "screener"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "data/screener.db"),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		MongoURI:  getEnv("MONGODB_URI", ""),
		JWTSecret: getEnv("JWT_SECRET", ""),

		YahooBaseURL: getEnv("YAHOO_BASE_URL", "https://query2.finance.yahoo.com"),
	}

	var err error
	if cfg.SnapshotCacheTTL, err = time.ParseDuration(getEnv("SNAPSHOT_CACHE_TTL", "5m")); err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_CACHE_TTL: %w", err)
	}
	if cfg.ProviderRPS, err = strconv.ParseFloat(getEnv("PROVIDER_RPS", "2"), 64); err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_RPS: %w", err)
	}
	if cfg.RefreshWorkers, err = strconv.Atoi(getEnv("REFRESH_WORKERS", "4")); err != nil {
		return nil, fmt.Errorf("invalid REFRESH_WORKERS: %w", err)
	}
	if cfg.RefreshQueueSize, err = strconv.Atoi(getEnv("REFRESH_QUEUE_SIZE", "256")); err != nil {
		return nil, fmt.Errorf("invalid REFRESH_QUEUE_SIZE: %w", err)
	}
	if cfg.RefreshInterval, err = strconv.Atoi(getEnv("REFRESH_INTERVAL_MINUTES", "15")); err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL_MINUTES: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// InitDB opens the configured database and verifies the connection
func InitDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		log.Info().
			Str("host", maskHost(cfg.DBHost)).
			Str("port", cfg.DBPort).
			Str("user", cfg.DBUser).
			Str("dbname", cfg.DBName).
			Msg("Connecting to database")

		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)
		dialector = postgres.Open(dsn)
	case "sqlite":
		log.Info().Str("path", cfg.SQLitePath).Msg("Opening sqlite database")
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Error
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info().Str("driver", cfg.DBDriver).Msg("Database connection verified successfully")
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
