package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds process configuration loaded from the environment. It only
// selects inputs, outputs and backing services; simulation parameters
// live in the rule set document.
type Config struct {
	// Inputs
	DataCSV      string
	RulesPath    string
	RuleVariants string // comma-separated extra rule set paths
	SeriesName   string

	// Outputs
	OutputDir   string
	MetricsFile string
	WebhookURL  string
	LogLevel    string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string

	// Optimal trade finder
	OptimalMinProfitPct float64
	OptimalMaxHold      int
	OptimalStart        int // -1 means the rule set's lookback
}

// Load reads an optional .env file, then the environment, with defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	return &Config{
		DataCSV:      getEnv("DATA_CSV", ""),
		RulesPath:    getEnv("RULES_PATH", ""),
		RuleVariants: getEnv("RULES_VARIANTS", ""),
		SeriesName:   getEnv("SERIES_NAME", ""),

		OutputDir:   getEnv("OUTPUT_DIR", "out"),
		MetricsFile: getEnv("METRICS_FILE", ""),
		WebhookURL:  getEnv("WEBHOOK_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Redis is optional; empty disables publishing.
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", ""),

		OptimalMinProfitPct: getFloat("OPTIMAL_MIN_PROFIT_PCT", 1.0),
		OptimalMaxHold:      getInt("OPTIMAL_MAX_HOLD", 48),
		OptimalStart:        getInt("OPTIMAL_START", -1),
	}
}

// ParseVariants splits RuleVariants into a list of paths.
func (c *Config) ParseVariants() []string {
	parts := strings.Split(c.RuleVariants, ",")
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
