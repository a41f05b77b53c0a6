package main

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"canvasbridge/internal/bridge"
	"canvasbridge/internal/comfy"
	"canvasbridge/internal/config"
	"canvasbridge/internal/logging"
	"canvasbridge/internal/node"
	"canvasbridge/internal/session"
)

type cliTestEnv struct {
	configPath string
	bridgeURL  string
	store      *session.Store
	relay      *httptest.Server
}

// setupCLITestEnv starts an in-process relay and writes a config file that
// points every directory at a temp location.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.FrontendDir = filepath.Join(base, "frontend")
	cfg.Paths.OutputDumpDir = filepath.Join(base, "dumps")
	cfg.Bridge.Debug = false
	cfg.Bridge.AutoForward = false
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	store := session.NewStore()
	client := comfy.NewClient(cfg.Comfy.URL, 0, logging.NewNop())
	srv := bridge.NewServer(&cfg, store, client, nil, nil, logging.NewNop())
	relay := httptest.NewServer(srv.Handler())
	t.Cleanup(relay.Close)

	configPath := filepath.Join(homeDir, ".config", "canvasbridge", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(
		"[paths]\nstate_dir = %q\nlog_dir = %q\nfrontend_dir = %q\noutput_dump_dir = %q\n\n[bridge]\nauto_forward = false\ndebug = false\n",
		cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.FrontendDir, cfg.Paths.OutputDumpDir,
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{
		configPath: configPath,
		bridgeURL:  relay.URL,
		store:      store,
		relay:      relay,
	}
}

func runCLI(t *testing.T, args []string, bridgeURL, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if bridgeURL != "" {
		flags = append(flags, "--url", bridgeURL)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writePNGFixture(t *testing.T, path string, width, height int) {
	t.Helper()
	data, err := node.Blank(width, height).EncodePNG()
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}
