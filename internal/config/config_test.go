package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"canvasbridge/internal/config"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, path, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected no config file, resolved %s", path)
	}
	if cfg.Bridge.BindHost != "127.0.0.1" || cfg.Bridge.Port != 8765 {
		t.Fatalf("unexpected bind defaults: %s", cfg.BindAddress())
	}
	if cfg.Comfy.URL != "http://127.0.0.1:8188" {
		t.Fatalf("unexpected comfy url: %q", cfg.Comfy.URL)
	}
	if !cfg.Bridge.Debug || !cfg.Bridge.AutoForward {
		t.Fatal("debug and auto-forward should default on")
	}
	if cfg.Bridge.DumpOutputs {
		t.Fatal("output dumping should default off")
	}
	if !filepath.IsAbs(cfg.Paths.StateDir) {
		t.Fatalf("state dir should be expanded, got %q", cfg.Paths.StateDir)
	}
}

func TestLoadParsesConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[bridge]
bind_host = "0.0.0.0"
port = 9000
auto_forward = false

[comfy]
url = "http://gpu-box:8188/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.BindAddress() != "0.0.0.0:9000" {
		t.Fatalf("unexpected bind address: %s", cfg.BindAddress())
	}
	if cfg.Bridge.AutoForward {
		t.Fatal("auto_forward should be disabled by file")
	}
	if cfg.Comfy.URL != "http://gpu-box:8188" {
		t.Fatalf("comfy url should be trimmed of trailing slash, got %q", cfg.Comfy.URL)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[bridge]
port = 9000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CC_BRIDGE_PORT", "8123")
	t.Setenv("COMFY_URL", "http://envhost:8188")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Bridge.Port != 8123 {
		t.Fatalf("expected env port 8123, got %d", cfg.Bridge.Port)
	}
	if cfg.Comfy.URL != "http://envhost:8188" {
		t.Fatalf("expected env comfy url, got %q", cfg.Comfy.URL)
	}
}

func TestNewStyleEnvBeatsLegacyWhenBothSet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CC_BRIDGE_BIND_HOST", "10.0.0.1")
	t.Setenv("LD_BRIDGE_BIND_HOST", "10.0.0.2")
	t.Setenv("CC_BRIDGE_PORT", "8111")
	t.Setenv("LD_BRIDGE_PORT", "8222")
	t.Setenv("CC_DEBUG", "0")
	t.Setenv("LD_DEBUG", "1")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Bridge.BindHost != "10.0.0.1" {
		t.Fatalf("CC_BRIDGE_BIND_HOST should win, got %q", cfg.Bridge.BindHost)
	}
	if cfg.Bridge.Port != 8111 {
		t.Fatalf("CC_BRIDGE_PORT should win, got %d", cfg.Bridge.Port)
	}
	if cfg.Bridge.Debug {
		t.Fatal("CC_DEBUG=0 should win over LD_DEBUG=1")
	}
}

func TestLegacyEnvUsedWhenNewStyleAbsent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LD_BRIDGE_PORT", "8222")
	t.Setenv("LD_DEBUG", "false")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Bridge.Port != 8222 {
		t.Fatalf("expected legacy port 8222, got %d", cfg.Bridge.Port)
	}
	if cfg.Bridge.Debug {
		t.Fatal("LD_DEBUG=false should disable debug")
	}
}

func TestToggleParsing(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"0", false},
		{"false", false},
		{"False", false},
		{"1", true},
		{"true", true},
		{"yes", true},
	}
	for _, tc := range cases {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("CC_AUTORUN", tc.value)
		cfg, _, _, err := config.Load("")
		if err != nil {
			t.Fatalf("Load failed for %q: %v", tc.value, err)
		}
		if cfg.Bridge.AutoForward != tc.want {
			t.Fatalf("CC_AUTORUN=%q: expected %v, got %v", tc.value, tc.want, cfg.Bridge.AutoForward)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CC_BRIDGE_PORT", "70000")
	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error for out-of-range port")
	}

	os.Unsetenv("CC_BRIDGE_PORT")
	t.Setenv("COMFY_URL", "ftp://somewhere")
	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error for non-http comfy url")
	}
}

func TestEnsureDirectoriesCreatesStateTree(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}

func TestSampleConfigMentionsEveryEnvVar(t *testing.T) {
	sample := config.SampleConfig()
	for _, name := range []string{"CC_BRIDGE_PORT", "CC_FRONTEND_DIR", "COMFY_URL", "CC_DEBUG", "CC_AUTORUN"} {
		if !strings.Contains(sample, name) {
			t.Fatalf("sample config should document %s", name)
		}
	}
}
