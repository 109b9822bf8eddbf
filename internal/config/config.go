package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	DatabaseURL         string
	Port                int
	LogLevel            string
	DevMode             bool
	RiskFreeRate        decimal.Decimal
	MaxPositions        int
	AlphaVantageURL     string
	AlphaVantageAPIKey  string
	RequestTimeoutSecs  int
	ShutdownTimeoutSecs int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		Port:                getEnvAsInt("PORT", 8080),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		RiskFreeRate:        getEnvAsDecimal("RISK_FREE_RATE", "0.02"),
		MaxPositions:        getEnvAsInt("MAX_POSITIONS", 100),
		AlphaVantageURL:     getEnv("ALPHA_VANTAGE_URL", "https://www.alphavantage.co"),
		AlphaVantageAPIKey:  getEnv("ALPHA_VANTAGE_API_KEY", ""),
		RequestTimeoutSecs:  getEnvAsInt("REQUEST_TIMEOUT_SECS", 60),
		ShutdownTimeoutSecs: getEnvAsInt("SHUTDOWN_TIMEOUT_SECS", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RiskFreeRate.IsNegative() {
		return fmt.Errorf("RISK_FREE_RATE must not be negative")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(defaultValue)
}
