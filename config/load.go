package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. THEMEZER_MAX_PAGES.
const EnvPrefix = "THEMEZER"

// NewViper returns a viper instance seeded with the defaults and bound to the
// THEMEZER_* environment.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from defaults, an optional config file and the
// environment.
func Load(path string) (*Config, error) {
	return LoadWith(NewViper(), path)
}

// LoadWith reads configuration through v, which may carry bound flags.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("max_pages", d.MaxPages)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("page_delay", d.PageDelay)
	v.SetDefault("requests_per_second", d.RequestsPerSecond)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("summary_file", d.SummaryFile)
	v.SetDefault("summary_format", d.SummaryFormat)
	v.SetDefault("download_assets", d.DownloadAssets)
	v.SetDefault("dedupe_max_size", d.DedupeMaxSize)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("progress_interval", d.ProgressInterval)
	v.SetDefault("verbose", d.Verbose)
}
