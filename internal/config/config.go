package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Data store drivers.
const (
	DataStoreMongo  = "mongo"
	DataStoreMemory = "memory"
)

// Session store drivers.
const (
	SessionStoreRedis  = "redis"
	SessionStoreSQL    = "sql"
	SessionStoreMemory = "memory"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	DataStore                 string
	SessionStore              string
	AllowAnonymous            bool
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Mongo                     MongoConfig
	Redis                     RedisConfig
	Database                  DatabaseConfig
}

// MongoConfig holds document store connection details
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// RedisConfig holds redis connection details for the session store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig holds SQL connection details for the session store
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// AccessTokenTTL is the lifetime of issued access tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWTExpirationMinutes) * time.Minute
}

// RefreshTokenTTL is the lifetime of issued refresh tokens.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.JWTRefreshExpirationHours) * time.Hour
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()
	return LoadConfig()
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "medibook"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	connectTimeout, err := strconv.Atoi(getEnv("MONGODB_CONNECT_TIMEOUT_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid MONGODB_CONNECT_TIMEOUT_SECONDS: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	allowAnonymous, err := strconv.ParseBool(getEnv("ALLOW_ANONYMOUS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALLOW_ANONYMOUS: %w", err)
	}

	cfg := &Config{
		Port:                      getEnv("PORT", "3000"),
		Origin:                    getEnv("ORIGIN", "http://localhost:3000"),
		Environment:               getEnv("APP_ENV", "development"),
		LogLevel:                  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DataStore:                 strings.ToLower(getEnv("DATA_STORE", DataStoreMongo)),
		SessionStore:              strings.ToLower(getEnv("SESSION_STORE", SessionStoreRedis)),
		AllowAnonymous:            allowAnonymous,
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Mongo: MongoConfig{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "test"),
			ConnectTimeout: time.Duration(connectTimeout) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Database: dbConfig,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DataStore {
	case DataStoreMongo, DataStoreMemory:
	default:
		return fmt.Errorf("invalid DATA_STORE %q", c.DataStore)
	}
	switch c.SessionStore {
	case SessionStoreRedis, SessionStoreSQL, SessionStoreMemory:
	default:
		return fmt.Errorf("invalid SESSION_STORE %q", c.SessionStore)
	}
	if c.JWTExpirationMinutes <= 0 || c.JWTRefreshExpirationHours <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	return nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
