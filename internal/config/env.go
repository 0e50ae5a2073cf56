package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvAPIKey    = "FUSIONBOT_API_KEY"
	EnvAPISecret = "FUSIONBOT_API_SECRET"
	EnvLogLevel  = "FUSIONBOT_LOG_LEVEL"
)

// LoadEnv loads .env files (best effort) and overlays secrets and the log
// level onto cfg.
func LoadEnv(cfg *Config, files ...string) {
	_ = godotenv.Load(files...)
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv(EnvAPISecret); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.App.LogLevel = v
	}
}
