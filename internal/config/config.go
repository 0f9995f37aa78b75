// Package config provides configuration for the chat server and client.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the runtime configuration. Values come from an optional TOML
// file (GREANLY_CONFIG) overridden by environment variables.
type Config struct {
	// Server settings
	HTTPPort int `toml:"http_port"`

	// Model backend (OpenAI-compatible endpoint)
	ModelURL     string        `toml:"model_url"`
	ModelAPIKey  string        `toml:"model_api_key"`
	ModelName    string        `toml:"model_name"`
	ModelTimeout time.Duration `toml:"-"`

	// Orchestration
	MaxSteps int `toml:"max_steps"`

	// Moderation policy (rego source); empty uses the built-in policy.
	ModerationPolicyPath string `toml:"moderation_policy_path"`

	// Client-side persistence
	StorePath string `toml:"store_path"`
	ServerURL string `toml:"server_url"`

	// Logging
	LogFile string `toml:"log_file"`
}

// Load loads configuration from the optional TOML file and environment
// variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:     8080,
		ModelURL:     "http://localhost:4000",
		ModelName:    "gpt-4o-mini",
		ModelTimeout: 5 * time.Minute,
		MaxSteps:     10,
		StorePath:    "greanly.db",
		ServerURL:    "http://localhost:8080",
	}

	if path := os.Getenv("GREANLY_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			log.Printf("WARN: failed to load config file %s: %v", path, err)
		}
	}

	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.ModelURL = getEnv("MODEL_URL", cfg.ModelURL)
	cfg.ModelAPIKey = getEnv("MODEL_API_KEY", cfg.ModelAPIKey)
	cfg.ModelName = getEnv("MODEL_NAME", cfg.ModelName)
	cfg.ModelTimeout = time.Duration(getEnvInt("MODEL_TIMEOUT_MS", int(cfg.ModelTimeout/time.Millisecond))) * time.Millisecond
	cfg.MaxSteps = getEnvInt("MAX_STEPS", cfg.MaxSteps)
	cfg.ModerationPolicyPath = getEnv("MODERATION_POLICY", cfg.ModerationPolicyPath)
	cfg.StorePath = getEnv("STORE_PATH", cfg.StorePath)
	cfg.ServerURL = getEnv("SERVER_URL", cfg.ServerURL)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)

	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
