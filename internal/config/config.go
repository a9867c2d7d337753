package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// DatabasePath is the SQLite database file (":memory:" for an
	// ephemeral store).
	DatabasePath string

	// AllowedOrigins are the CORS origins permitted to call the API.
	AllowedOrigins []string

	// Tokens maps bearer tokens to user ids. Stands in for the
	// external identity provider; session issuance lives elsewhere.
	Tokens map[string]string
}

// Load reads configuration from environment variables, falling back to
// a .env file when present.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	dbPath := os.Getenv("FINCH_DB")
	if dbPath == "" {
		dbPath = "finch.db"
	}

	origins := []string{"*"}
	if o := os.Getenv("FINCH_ALLOWED_ORIGINS"); o != "" {
		origins = strings.Split(o, ",")
	}

	// FINCH_TOKENS is a comma-separated list of token=userID pairs.
	tokens := make(map[string]string)
	if raw := os.Getenv("FINCH_TOKENS"); raw != "" {
		for _, pair := range strings.Split(raw, ",") {
			token, userID, ok := strings.Cut(pair, "=")
			if !ok || token == "" || userID == "" {
				return nil, fmt.Errorf("invalid FINCH_TOKENS entry %q", pair)
			}
			tokens[token] = userID
		}
	}

	return &Config{
		Port:           port,
		DatabasePath:   dbPath,
		AllowedOrigins: origins,
		Tokens:         tokens,
	}, nil
}
