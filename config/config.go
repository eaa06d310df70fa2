package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/clc-ministry/forms-backend/pkg/utils"
)

// Record store drivers.
const (
	DriverDynamoDB = "dynamodb"
	DriverPostgres = "postgres"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	AWS       AWSConfig
	Cognito   CognitoConfig
	LocalAuth LocalAuthConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Exports   ExportsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. https://clc.example.org,http://localhost:5173)
	GinMode            string
}

// StoreConfig selects the record store and names its tables.
type StoreConfig struct {
	Driver        string // dynamodb or postgres
	WorkshopTable string
	OrdersTable   string
}

// AWSConfig holds AWS credentials, the optional DynamoDB endpoint and the exports bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	DynamoDBEndpoint     string // e.g. http://localhost:8000 for DynamoDB Local
	ExportsBucket        string
	PresignExpireMinutes int
}

// CognitoConfig identifies the user pool whose tokens the admin API accepts.
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
	AdminGroup string // empty: any authenticated pool user is an admin
}

// Enabled reports whether Cognito tokens are accepted.
func (c CognitoConfig) Enabled() bool {
	return c.UserPoolID != "" && c.ClientID != ""
}

// LocalAuthConfig holds the development sign-in used when no user pool is available.
type LocalAuthConfig struct {
	Secret      string
	ExpireHours int
	Users       map[string]string // username -> bcrypt hash, from ADMIN_USERS
}

// Enabled reports whether POST /auth/login and local tokens are served.
func (c LocalAuthConfig) Enabled() bool {
	return c.Secret != "" && len(c.Users) > 0
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/forms?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ExportsConfig toggles the CSV export endpoints and worker.
type ExportsConfig struct {
	Enabled bool
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	users, err := utils.ParseUserHashes(getEnv("ADMIN_USERS", ""))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_USERS: %w", err)
	}
	region := getEnv("AWS_REGION", "us-east-1")

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 15),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			GinMode:            getEnv("GIN_MODE", "release"),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", DriverDynamoDB)),
			WorkshopTable: getEnv("WORKSHOP_TABLE_NAME", "WorkshopRegistrations"),
			OrdersTable:   getEnv("ORDERS_TABLE_NAME", "SpaghettiOrders"),
		},
		AWS: AWSConfig{
			Region:               region,
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			DynamoDBEndpoint:     getEnv("DYNAMODB_ENDPOINT", ""),
			ExportsBucket:        getEnv("AWS_S3_EXPORTS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Cognito: CognitoConfig{
			Region:     getEnv("COGNITO_REGION", region),
			UserPoolID: getEnv("COGNITO_USER_POOL_ID", ""),
			ClientID:   getEnv("COGNITO_CLIENT_ID", ""),
			AdminGroup: getEnv("COGNITO_ADMIN_GROUP", ""),
		},
		LocalAuth: LocalAuthConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 12),
			Users:       users,
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "forms"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 0)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Exports: ExportsConfig{
			Enabled: getEnvBool("EXPORTS_ENABLED", false),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that would make every request fail.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverDynamoDB, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: want %s or %s", c.Store.Driver, DriverDynamoDB, DriverPostgres))
	}
	if c.Store.WorkshopTable == "" || c.Store.OrdersTable == "" {
		errs = append(errs, errors.New("WORKSHOP_TABLE_NAME and ORDERS_TABLE_NAME are required"))
	}
	if !c.Cognito.Enabled() && !c.LocalAuth.Enabled() {
		errs = append(errs, errors.New("no admin credential provider: set COGNITO_USER_POOL_ID and COGNITO_CLIENT_ID, or JWT_SECRET and ADMIN_USERS"))
	}
	if c.Exports.Enabled && c.AWS.ExportsBucket == "" {
		errs = append(errs, errors.New("EXPORTS_ENABLED requires AWS_S3_EXPORTS_BUCKET"))
	}
	return errors.Join(errs...)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
