package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configuration constants
var (
	// OpenRouterAPIKey is the API key for OpenRouter
	OpenRouterAPIKey string

	// CouncilModels is the default list of models to query in parallel
	CouncilModels = []string{
		"openai/gpt-5.1",
		"google/gemini-3-pro-preview",
		"anthropic/claude-sonnet-4.5",
		"x-ai/grok-4",
	}

	// ChairmanModel is the default model used for final synthesis
	ChairmanModel = "google/gemini-3-pro-preview"

	// TitleModel is a fast model used for conversation title generation
	TitleModel = "google/gemini-2.5-flash"

	// OpenRouterAPIURL is the endpoint for OpenRouter API
	OpenRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"

	// DataDir is the directory for conversation storage
	DataDir = "data/conversations"

	// PersonalitiesDir is the directory for personality storage
	PersonalitiesDir = "data/personalities"

	// Timeout constants
	ModelQueryTimeout = 120 * time.Second
	TitleGenTimeout   = 30 * time.Second

	// CORS allowed origins (configurable via environment)
	// In development (empty/default), allows any localhost port
	// In production, set CORS_ALLOWED_ORIGINS environment variable
	CORSAllowedOrigins = []string{}

	// MaxRequestBodySize is the maximum allowed request body size (1MB)
	MaxRequestBodySize int64 = 1 << 20
)

// CouncilConfig is the immutable per-call configuration for the deliberation
// pipeline: the ordered council roster and the chairman. Passing it explicitly
// keeps the pipeline testable with varying member sets instead of reading
// package globals mid-flight.
type CouncilConfig struct {
	Members  []string
	Chairman string
}

// DefaultCouncilConfig snapshots the process-wide roster into a CouncilConfig.
// The member slice is copied so later mutation of the globals cannot leak into
// an in-flight pipeline run.
func DefaultCouncilConfig() CouncilConfig {
	members := make([]string, len(CouncilModels))
	copy(members, CouncilModels)
	return CouncilConfig{
		Members:  members,
		Chairman: ChairmanModel,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file - try multiple locations
	envLocations := []string{
		".env",    // Current directory
		"../.env", // Parent directory
	}

	// Try to find and load .env file
	envLoaded := false
	for _, envPath := range envLocations {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			if err := godotenv.Load(absPath); err == nil {
				log.Printf("Loaded .env from: %s", absPath)
				envLoaded = true
				break
			}
		}
	}

	if !envLoaded {
		log.Printf("Warning: .env file not found in any expected location")
	}

	// Get OpenRouter API key
	OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	if OpenRouterAPIKey == "" {
		log.Fatal("OPENROUTER_API_KEY environment variable is required")
	}

	// Load CORS origins from environment if provided
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		CORSAllowedOrigins = parseCORSOrigins(corsOrigins)
	}

	log.Println("Configuration loaded successfully")
}

// parseCORSOrigins splits a comma-separated origin list, trimming whitespace
// and dropping empty entries. Origins contain ":" themselves, so the list
// separator has to be a comma.
func parseCORSOrigins(value string) []string {
	origins := []string{}
	for _, origin := range strings.Split(value, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
