package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBridge(); err != nil {
		return err
	}
	if err := c.validateComfy(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBridge() error {
	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 1 and 65535, got %d", c.Bridge.Port)
	}
	if strings.ContainsAny(c.Bridge.BindHost, " :") {
		return fmt.Errorf("bridge.bind_host %q must be a bare host or address", c.Bridge.BindHost)
	}
	return nil
}

func (c *Config) validateComfy() error {
	parsed, err := url.Parse(c.Comfy.URL)
	if err != nil {
		return fmt.Errorf("comfy.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("comfy.url %q must use http or https", c.Comfy.URL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("comfy.url %q is missing a host", c.Comfy.URL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return errors.New("logging.format must be console or json")
	}
	return nil
}
