package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir      string `toml:"state_dir"`
	LogDir        string `toml:"log_dir"`
	FrontendDir   string `toml:"frontend_dir"`
	OutputDumpDir string `toml:"output_dump_dir"`
}

// Bridge contains the relay server configuration.
type Bridge struct {
	BindHost    string `toml:"bind_host"`
	Port        int    `toml:"port"`
	AutoForward bool   `toml:"auto_forward"`
	Debug       bool   `toml:"debug"`
	DumpOutputs bool   `toml:"dump_outputs"`
}

// Comfy contains configuration for the pipeline host the bridge forwards to.
type Comfy struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ForwardRetries int    `toml:"forward_retries"`
	TrackProgress  bool   `toml:"track_progress"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration for the canvasbridge daemon and CLI.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Bridge  Bridge  `toml:"bridge"`
	Comfy   Comfy   `toml:"comfy"`
	Logging Logging `toml:"logging"`
}

// SampleConfig returns the embedded sample configuration file.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. Environment
// variables are applied on top of file values during normalization, with
// CC_* names taking precedence over the legacy LD_* names. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/canvasbridge/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("canvasbridge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// DefaultConfigPath returns the expanded default configuration location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/canvasbridge/config.toml")
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Bridge.DumpOutputs && strings.TrimSpace(c.Paths.OutputDumpDir) != "" {
		if err := os.MkdirAll(c.Paths.OutputDumpDir, 0o755); err != nil {
			return fmt.Errorf("create output dump directory %q: %w", c.Paths.OutputDumpDir, err)
		}
	}
	return nil
}

// BindAddress returns the host:port pair the relay server listens on.
func (c *Config) BindAddress() string {
	return fmt.Sprintf("%s:%d", c.Bridge.BindHost, c.Bridge.Port)
}

// BridgeURL returns the browser-facing base URL of the relay server.
func (c *Config) BridgeURL() string {
	return fmt.Sprintf("http://%s:%d/", c.Bridge.BindHost, c.Bridge.Port)
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "canvasbridge.log")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "canvasbridged.lock")
}

// EventDBPath returns the debug event archive location.
func (c *Config) EventDBPath() string {
	return filepath.Join(c.Paths.StateDir, "events.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
