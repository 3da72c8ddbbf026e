package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMode(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateReadiness(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMode() error {
	switch c.Mode {
	case "development", "production":
		return nil
	default:
		return fmt.Errorf("mode must be development or production, got %q", c.Mode)
	}
}

func (c *Config) validateBackend() error {
	u, err := url.Parse(c.Backend.HealthURL)
	if err != nil {
		return fmt.Errorf("backend.health_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.health_url must be an absolute http(s) URL, got %q", c.Backend.HealthURL)
	}
	if c.Backend.StopGraceMS < 0 {
		return errors.New("backend.stop_grace_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateReadiness() error {
	if c.Readiness.MaxAttempts < 1 {
		return errors.New("readiness.max_attempts must be >= 1")
	}
	if c.Readiness.IntervalMS < 0 {
		return errors.New("readiness.interval_ms must be >= 0")
	}
	if c.Readiness.RequestTimeoutMS <= 0 {
		return errors.New("readiness.request_timeout_ms must be > 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of auto, console, json; got %q", c.Logging.Format)
	}
	return nil
}
