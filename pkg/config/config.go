package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ImageHarvester/utils"
)

// Environment variables read by Load.
const (
	EnvConfigPath = "HARVESTER_CONFIG"
	EnvLogLevel   = "LOG_LEVEL"
)

// ScraperConfig holds general scraper settings.
type ScraperConfig struct {
	Workers       string `yaml:"workers"`  // number of concurrent page visitors, or "auto"
	Strategy      string `yaml:"strategy"` // "queue" or "shards"
	ImageSelector string `yaml:"image_selector"`
}

// BrowserConfig controls the automation driver and the session pool.
type BrowserConfig struct {
	Driver       string        `yaml:"driver"` // rod, chromedp or static
	Headless     bool          `yaml:"headless"`
	Bin          string        `yaml:"bin"`
	Stealth      bool          `yaml:"stealth"`
	UserAgent    string        `yaml:"user_agent"`
	MaxInstances int           `yaml:"max_instances"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	ReapInterval time.Duration `yaml:"reap_interval"`
	NavTimeout   time.Duration `yaml:"nav_timeout"`
	IdleWindow   time.Duration `yaml:"idle_window"`
}

// InputConfig describes the product CSV.
type InputConfig struct {
	File      string `yaml:"file"`
	Encoding  string `yaml:"encoding"` // shift_jis or utf-8, case and dash insensitive
	IDField   string `yaml:"id_field"`
	SampleURL string `yaml:"sample_url"`
}

// StorageConfig holds the download root and the journal location.
type StorageConfig struct {
	Path      string `yaml:"path"`
	JournalDB string `yaml:"journal_db"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Config is the complete structure for the config.yml file.
type Config struct {
	Scraper ScraperConfig `yaml:"scraper"`
	Browser BrowserConfig `yaml:"browser"`
	Input   InputConfig   `yaml:"input"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Server  struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// Default returns the settings used when config.yml omits a value.
func Default() *Config {
	cfg := &Config{
		Scraper: ScraperConfig{
			Workers:       "4",
			Strategy:      "queue",
			ImageSelector: `img[src*="makeshop-multi-images.akamaized.net"]`,
		},
		Browser: BrowserConfig{
			Driver:       "rod",
			Headless:     true,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			MaxInstances: 4,
			IdleTimeout:  5 * time.Minute,
			ReapInterval: time.Minute,
			NavTimeout:   30 * time.Second,
			IdleWindow:   500 * time.Millisecond,
		},
		Input: InputConfig{
			Encoding: "shift_jis",
		},
		Storage: StorageConfig{
			Path:      "downloads",
			JournalDB: "runs.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
	cfg.Server.Addr = ":8080"
	return cfg
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

// Load reads .env (if present), then the config file named by
// HARVESTER_CONFIG or path. A missing file at the default path yields the
// defaults; LOG_LEVEL overrides the configured level.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	explicit := false
	if p := os.Getenv(EnvConfigPath); p != "" {
		path, explicit = p, true
	}

	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}

// Parse decodes YAML bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	switch c.Browser.Driver {
	case "rod", "chromedp", "static":
	default:
		return fmt.Errorf("unknown browser driver %q", c.Browser.Driver)
	}
	switch c.Scraper.Strategy {
	case "queue", "shards":
	default:
		return fmt.Errorf("unknown scan strategy %q", c.Scraper.Strategy)
	}
	enc, ok := utils.CanonicalEncoding(c.Input.Encoding)
	if !ok {
		return fmt.Errorf("unsupported input encoding %q", c.Input.Encoding)
	}
	c.Input.Encoding = enc
	if c.Scraper.ImageSelector == "" {
		return fmt.Errorf("image selector cannot be empty")
	}
	if c.Browser.MaxInstances <= 0 {
		return fmt.Errorf("max instances must be positive")
	}
	if c.Browser.IdleTimeout <= 0 || c.Browser.ReapInterval <= 0 {
		return fmt.Errorf("idle timeout and reap interval must be positive")
	}
	if c.Browser.NavTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.Browser.IdleWindow < 0 {
		return fmt.Errorf("idle window cannot be negative")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path cannot be empty")
	}
	return nil
}
