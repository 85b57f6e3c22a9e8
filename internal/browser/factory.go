package browser

import (
	"fmt"

	"ImageHarvester/pkg/config"
)

// NewDriver builds the automation driver named in the config.
func NewDriver(cfg config.BrowserConfig) (Driver, error) {
	switch cfg.Driver {
	case "rod", "":
		return &RodDriver{Headless: cfg.Headless, Bin: cfg.Bin, Stealth: cfg.Stealth, UserAgent: cfg.UserAgent}, nil
	case "chromedp":
		return &ChromedpDriver{Headless: cfg.Headless, Bin: cfg.Bin, UserAgent: cfg.UserAgent}, nil
	case "static":
		return &StaticDriver{UserAgent: cfg.UserAgent}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}

// PoolConfigFrom extracts the pool settings from the browser config.
func PoolConfigFrom(cfg config.BrowserConfig) PoolConfig {
	return PoolConfig{
		MaxInstances: cfg.MaxInstances,
		IdleTimeout:  cfg.IdleTimeout,
		ReapInterval: cfg.ReapInterval,
	}
}

// WaitPolicyFrom extracts the navigation wait policy from the browser config.
func WaitPolicyFrom(cfg config.BrowserConfig) WaitPolicy {
	return WaitPolicy{Idle: cfg.IdleWindow, Timeout: cfg.NavTimeout}
}
