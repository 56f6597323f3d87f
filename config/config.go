package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL           string        `mapstructure:"base_url"`
	MaxPages          int           `mapstructure:"max_pages"`
	Concurrency       int           `mapstructure:"concurrency"`
	Timeout           time.Duration `mapstructure:"timeout"`
	PageDelay         time.Duration `mapstructure:"page_delay"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	UserAgent         string        `mapstructure:"user_agent"`
	OutputDir         string        `mapstructure:"output_dir"`
	SummaryFile       string        `mapstructure:"summary_file"`
	SummaryFormat     string        `mapstructure:"summary_format"` // json, csv, or dual
	DownloadAssets    bool          `mapstructure:"download_assets"`
	DedupeMaxSize     int           `mapstructure:"dedupe_max_size"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
	ProgressInterval  time.Duration `mapstructure:"progress_interval"`
	Verbose           bool          `mapstructure:"verbose"`
}

// DefaultConfig returns the defaults for crawling themezer.net.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://themezer.net",
		MaxPages:          135,
		Concurrency:       8,
		Timeout:           10 * time.Second,
		PageDelay:         time.Second,
		RequestsPerSecond: 0,
		UserAgent:         "Mozilla/5.0",
		OutputDir:         "themezer_packs",
		SummaryFile:       "themezer_summary.json",
		SummaryFormat:     "json",
		DownloadAssets:    true,
		DedupeMaxSize:     0,
		MetricsAddr:       "",
		ProgressInterval:  10 * time.Second,
		Verbose:           false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.DedupeMaxSize < 0 {
		return fmt.Errorf("dedupe max size cannot be negative")
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress interval cannot be negative")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.SummaryFile == "" {
		return fmt.Errorf("summary file cannot be empty")
	}
	c.SummaryFormat = strings.ToLower(c.SummaryFormat)
	if c.SummaryFormat != "csv" && c.SummaryFormat != "json" && c.SummaryFormat != "dual" {
		return fmt.Errorf("summary format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
