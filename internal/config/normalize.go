package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBridge(); err != nil {
		return err
	}
	c.normalizeComfy()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error

	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}

	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if value, ok := lookupEnvFirst("CC_FRONTEND_DIR", "LD_FRONTEND_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.FrontendDir = value
	}
	if strings.TrimSpace(c.Paths.FrontendDir) == "" {
		c.Paths.FrontendDir = defaultFrontendDir
	}
	if c.Paths.FrontendDir, err = expandPath(c.Paths.FrontendDir); err != nil {
		return fmt.Errorf("paths.frontend_dir: %w", err)
	}

	if strings.TrimSpace(c.Paths.OutputDumpDir) == "" {
		c.Paths.OutputDumpDir = defaultOutputDumpDir
	}
	if c.Paths.OutputDumpDir, err = expandPath(c.Paths.OutputDumpDir); err != nil {
		return fmt.Errorf("paths.output_dump_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBridge() error {
	if value, ok := lookupEnvFirst("CC_BRIDGE_BIND_HOST", "LD_BRIDGE_BIND_HOST"); ok {
		c.Bridge.BindHost = strings.TrimSpace(value)
	}
	c.Bridge.BindHost = strings.TrimSpace(c.Bridge.BindHost)
	if c.Bridge.BindHost == "" {
		c.Bridge.BindHost = defaultBindHost
	}

	if value, ok := lookupEnvFirst("CC_BRIDGE_PORT", "LD_BRIDGE_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("bridge port from environment: %w", err)
		}
		c.Bridge.Port = port
	}
	if c.Bridge.Port == 0 {
		c.Bridge.Port = defaultPort
	}

	if value, ok := lookupEnvFirst("CC_DEBUG", "LD_DEBUG"); ok {
		c.Bridge.Debug = parseToggle(value)
	}
	if value, ok := lookupEnvFirst("CC_AUTORUN"); ok {
		c.Bridge.AutoForward = parseToggle(value)
	}
	if value, ok := lookupEnvFirst("CC_DUMP_OUTPUT"); ok {
		c.Bridge.DumpOutputs = parseToggle(value)
	}
	return nil
}

func (c *Config) normalizeComfy() {
	if value, ok := lookupEnvFirst("COMFY_URL"); ok && strings.TrimSpace(value) != "" {
		c.Comfy.URL = value
	}
	c.Comfy.URL = strings.TrimRight(strings.TrimSpace(c.Comfy.URL), "/")
	if c.Comfy.URL == "" {
		c.Comfy.URL = defaultComfyURL
	}
	if c.Comfy.TimeoutSeconds <= 0 {
		c.Comfy.TimeoutSeconds = defaultComfyTimeoutSeconds
	}
	if c.Comfy.ForwardRetries < 0 {
		c.Comfy.ForwardRetries = defaultForwardRetries
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

// lookupEnvFirst returns the value of the first environment variable that is
// set, even when set to the empty string. Callers list the CC_* name before
// the legacy LD_* name so the new-style variable always wins when both exist.
func lookupEnvFirst(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
	}
	return "", false
}

// parseToggle mirrors the historical toggle parsing: "0", "false", and
// "False" disable, everything else enables.
func parseToggle(value string) bool {
	switch strings.TrimSpace(value) {
	case "0", "false", "False":
		return false
	default:
		return true
	}
}
