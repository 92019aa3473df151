// Package config exposes strongly typed application configuration structs
// loaded from YAML, plus API credentials sourced from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment,
// metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Server holds the session-layer listen and report artifact settings.
type Server struct {
	Port       int    `yaml:"port"`
	ReportPath string `yaml:"report_path"`
}

// Provider describes where price history and realtime quotes come from.
type Provider struct {
	// Name selects the source: "market" pairs Alpha Vantage history with
	// Finnhub quotes; "stub" emits deterministic synthetic samples.
	Name            string `yaml:"name"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	FetchTimeoutMs  int    `yaml:"fetch_timeout_ms"`

	AlphaVantageURL string `yaml:"alpha_vantage_url"`
	FinnhubURL      string `yaml:"finnhub_url"`

	// Stream switches realtime updates from quote polling to the Finnhub
	// trade websocket.
	Stream    bool   `yaml:"stream"`
	StreamURL string `yaml:"stream_url"`
}

// Strategy selects the signal derivation applied to ingested prices.
type Strategy struct {
	Mode string `yaml:"mode"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Server   Server   `yaml:"server"`
	Provider Provider `yaml:"provider"`
	Strategy Strategy `yaml:"strategy"`
	Tickers  []string `yaml:"tickers"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		App: App{
			Name:        "marketdata",
			Env:         "dev",
			MetricsAddr: ":9100",
			LogLevel:    "info",
		},
		Server: Server{
			Port:       8000,
			ReportPath: "data/report.csv",
		},
		Provider: Provider{
			Name:            "market",
			IntervalMinutes: 5,
			FetchTimeoutMs:  30000,
		},
		Strategy: Strategy{Mode: "bands"},
		Tickers:  []string{"AAPL"},
	}
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects settings the upstream data sources cannot serve.
func (c *Config) Validate() error {
	switch c.Provider.IntervalMinutes {
	case 5, 15, 30, 60:
	default:
		return fmt.Errorf("interval_minutes must be one of 5, 15, 30, 60; got %d", c.Provider.IntervalMinutes)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if len(c.Tickers) == 0 {
		return fmt.Errorf("at least one ticker is required")
	}
	return nil
}

// Keys holds upstream API credentials.
type Keys struct {
	AlphaVantage string
	Finnhub      string
}

// LoadKeys reads credentials from the environment, with a best-effort .env.
func LoadKeys() Keys {
	_ = godotenv.Load()
	return Keys{
		AlphaVantage: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		Finnhub:      os.Getenv("FINNHUB_API_KEY"),
	}
}
