package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Upstream CESA / PetaBencana API.
	CESABaseURL    string
	UserAgent      string
	RequestTimeout time.Duration
	RequestRetries int

	// Downstream HDX catalog.
	HDXBaseURL string
	HDXAPIKey  string
	HDXDryRun  bool

	// Dataset metadata.
	DatasetMaintainer   string
	DatasetOrganization string
	UpdateFrequency     string
	Notes               string
	FixedTags           []string
	Attribution         string

	// Scratch space and the saved-response cache.
	WorkDir       string
	SavedDataDir  string
	SaveResponses bool
	UseSaved      bool

	// Run mode: interval 0 means run once and exit, otherwise the pipeline
	// repeats on the interval and serves health/metrics over HTTP.
	RunInterval time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// RunOnce reports whether the service should run a single pipeline pass and exit.
func (c *Config) RunOnce() bool {
	return c.RunInterval == 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	runInterval, err := parseDuration("RUN_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}

	requestRetries, err := parseInt("REQUEST_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CESABaseURL:    envOrDefault("CESA_BASE_URL", "https://api.petabencana.id/reports"),
		UserAgent:      envOrDefault("CESA_USER_AGENT", "hdx-scraper-cesa"),
		RequestTimeout: requestTimeout,
		RequestRetries: requestRetries,

		HDXBaseURL: envOrDefault("HDX_BASE_URL", "https://data.humdata.org"),
		HDXAPIKey:  os.Getenv("HDX_API_KEY"),
		HDXDryRun:  os.Getenv("HDX_DRY_RUN") == "true",

		DatasetMaintainer:   envOrDefault("DATASET_MAINTAINER", "b682f6f7-cd7e-4bd4-8aa7-f74138dc6313"),
		DatasetOrganization: envOrDefault("DATASET_ORGANIZATION", "a624903e-ff7c-4694-91c1-ef1ec0e0c692"),
		UpdateFrequency:     envOrDefault("DATASET_UPDATE_FREQUENCY", "1"),
		Notes:               envOrDefault("DATASET_NOTES", defaultNotes),
		FixedTags:           parseTags(envOrDefault("FIXED_TAGS", "climate hazards,natural disasters,affected population")),
		Attribution:         envOrDefault("ATTRIBUTION", "HDX Scraper: CESA"),

		WorkDir:       os.Getenv("WORK_DIR"),
		SavedDataDir:  envOrDefault("SAVED_DATA_DIR", "saved_data"),
		SaveResponses: os.Getenv("SAVE_RESPONSES") == "true",
		UseSaved:      os.Getenv("USE_SAVED") == "true",

		RunInterval: runInterval,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.CESABaseURL == "" {
		return nil, errors.New("CESA_BASE_URL is required")
	}
	if cfg.HDXBaseURL == "" {
		return nil, errors.New("HDX_BASE_URL is required")
	}
	if !cfg.HDXDryRun && cfg.HDXAPIKey == "" {
		return nil, errors.New("HDX_API_KEY is required unless HDX_DRY_RUN is true")
	}
	if cfg.SaveResponses && cfg.UseSaved {
		return nil, errors.New("SAVE_RESPONSES and USE_SAVED are mutually exclusive")
	}

	return cfg, nil
}

// defaultNotes is the catalog-facing description of the data source.
const defaultNotes = "[PetaBencana.id](https://docs.petabencana.id) by the " +
	"[Climate Emergency Software Alliance (CESA)](https://cesa.global/) is a free " +
	"and transparent platform for emergency response and disaster management in " +
	"megacities in South and Southeast Asia. Confirmed hazard reports are collected " +
	"directly from residents and first responders and made available in real time."

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
