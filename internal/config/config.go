package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMySQL  = "mysql"
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	StoreDriver   string
	MySQLDSN      string
	RunMigrations bool
	MongoURI      string
	MongoDatabase string
	RedisAddr     string

	PayPalClientID     string
	PayPalClientSecret string
	PayPalMode         string
	FrontendURL        string
	MerchantEmail      string

	CaptureLockTTL  time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LoadConfig reads the environment, after loading any of files that
// exist. Variables already set in the environment win over file values.
func LoadConfig(files ...string) (*Config, error) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		HTTPAddr:           getEnvOrDefault("HTTP_ADDR", ":8080"),
		GRPCAddr:           getEnvOrDefault("GRPC_ADDR", ":50051"),
		StoreDriver:        getEnvOrDefault("STORE_DRIVER", StoreMySQL),
		MySQLDSN:           getEnvOrDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/checkout?parseTime=true"),
		MongoURI:           getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase:      getEnvOrDefault("MONGO_DATABASE", "checkout"),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		PayPalClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalMode:         getEnvOrDefault("PAYPAL_MODE", "sandbox"),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
		MerchantEmail:      os.Getenv("MERCHANT_EMAIL"),
	}

	switch cfg.StoreDriver {
	case StoreMySQL, StoreMongo, StoreMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", cfg.StoreDriver)
	}

	var err error
	if cfg.RunMigrations, err = strconv.ParseBool(getEnvOrDefault("RUN_MIGRATIONS", "true")); err != nil {
		return nil, fmt.Errorf("invalid RUN_MIGRATIONS: %w", err)
	}
	if cfg.CaptureLockTTL, err = getDuration("CAPTURE_LOCK_TTL", "30s"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", "5s"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
