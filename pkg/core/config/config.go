// Package config holds runtime settings for the SEC filing extractor.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries all tunable settings. Zero values are never used directly;
// construct with Default() and override fields as needed.
type Config struct {
	// Identification sent on every SEC request. SEC rejects anonymous
	// clients, so this must name a real contact.
	UserAgent string

	// Endpoint bases
	APIBase   string // data.sec.gov (submissions, companyfacts)
	FilesBase string // www.sec.gov (archives, ticker directory)

	// Fair-access pacing and retry policy
	RequestInterval time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration

	// Download settings
	OutputDir       string
	IncludeExhibits bool

	// Extraction settings
	MinTableColumns  int
	MaxTablesPerFile int

	// Catalog defaults
	SupportedForms []string

	// XBRL settings
	PreferredUnits []string
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		UserAgent:        "secfilings extractor (contact@example.com)",
		APIBase:          "https://data.sec.gov",
		FilesBase:        "https://www.sec.gov",
		RequestInterval:  200 * time.Millisecond,
		MaxRetries:       3,
		RetryBaseDelay:   time.Second,
		OutputDir:        "filings",
		MinTableColumns:  2,
		MaxTablesPerFile: 200,
		SupportedForms:   []string{"10-K", "10-Q", "8-K", "20-F", "6-K"},
		PreferredUnits:   []string{"USD", "shares"},
	}
}

// FromEnv builds a configuration from environment variables, loading a .env
// file first if one exists. Unset variables keep their defaults.
func FromEnv() Config {
	// Missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfg := Default()
	if v := os.Getenv("SEC_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("SEC_API_BASE"); v != "" {
		cfg.APIBase = v
	}
	if v := os.Getenv("SEC_FILES_BASE"); v != "" {
		cfg.FilesBase = v
	}
	if v := os.Getenv("SEC_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("SEC_REQUEST_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.RequestInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("SEC_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}
	return cfg
}
