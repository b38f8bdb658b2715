// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"etf-chunk-lab/internal/domain"
)

// Config holds application configuration
type Config struct {
	HTTPAddr      string
	PostgresDSN   string
	ClickHouseDSN string
	UseMemory     bool
	LogLevel      string
	LogPretty     bool

	// RerunSchedule is a cron expression for re-running the default simulation; empty disables it.
	RerunSchedule string
	ProgressEvery int

	Simulation domain.SimulationConfig
}

// Load reads configuration from environment variables, after loading .env
// files if present. Variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	defaults := domain.DefaultSimulationConfig()
	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		UseMemory:     getEnvAsBool("USE_MEMORY", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     getEnvAsBool("LOG_PRETTY", false),
		RerunSchedule: getEnv("RERUN_SCHEDULE", ""),
		ProgressEvery: getEnvAsInt("PROGRESS_EVERY", 25),
		Simulation: domain.SimulationConfig{
			StartCapital:        getEnvAsFloat("START_CAPITAL", defaults.StartCapital),
			NumberOfChunks:      getEnvAsInt("NUMBER_OF_CHUNKS", defaults.NumberOfChunks),
			ProfitTargetPct:     getEnvAsFloat("PROFIT_TARGET_PCT", defaults.ProfitTargetPct),
			TotalTradingDays:    getEnvAsInt("TOTAL_TRADING_DAYS", defaults.TotalTradingDays),
			MovingAverageWindow: getEnvAsInt("MA_WINDOW", defaults.MovingAverageWindow),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if !c.UseMemory {
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required unless USE_MEMORY is set")
		}
		if c.ClickHouseDSN == "" {
			return fmt.Errorf("CLICKHOUSE_DSN is required unless USE_MEMORY is set")
		}
	}
	if c.ProgressEvery < 0 {
		return fmt.Errorf("PROGRESS_EVERY must not be negative, got %d", c.ProgressEvery)
	}
	return c.Simulation.Validate()
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
