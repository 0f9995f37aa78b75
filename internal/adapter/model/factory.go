package model

import (
	"log"
	"os"
	"time"
)

const (
	// EnvGreanlyMode is the environment variable name for mode selection.
	EnvGreanlyMode = "GREANLY_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewClient creates a model client based on the GREANLY_MODE environment
// variable. GREANLY_MODE=MOCK returns the deterministic mock client.
func NewClient(baseURL, apiKey, modelName string, timeout time.Duration) Client {
	if os.Getenv(EnvGreanlyMode) == ModeMock {
		log.Println("GREANLY_MODE=MOCK detected, using mock model client")
		return NewMockClient()
	}
	return NewHTTPClient(baseURL, apiKey, modelName, timeout)
}
