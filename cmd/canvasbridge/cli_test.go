package main

import (
	"os"
	"path/filepath"
	"testing"

	"canvasbridge/internal/session"
)

func TestStatusCommandReportsSessionState(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.bridgeURL, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "bridge RUNNING")
	requireContains(t, out, "Generate counter")

	if _, err := env.store.SetInput([]byte{1, 2, 3}, session.InputOptions{}); err != nil {
		t.Fatalf("seed input: %v", err)
	}
	out, _, err = runCLI(t, []string{"status"}, env.bridgeURL, env.configPath)
	if err != nil {
		t.Fatalf("status after input: %v", err)
	}
	requireContains(t, out, "Input image")
	requireContains(t, out, "yes")
}

func TestStatusCommandFailsWhenBridgeDown(t *testing.T) {
	env := setupCLITestEnv(t)
	env.relay.Close()

	_, _, err := runCLI(t, []string{"status"}, env.bridgeURL, env.configPath)
	if err == nil {
		t.Fatal("expected error when bridge is unreachable")
	}
}

func TestOpenCommandPrintsURL(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"open"}, env.bridgeURL, env.configPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	requireContains(t, out, "http")
}

func TestPushInputAndPullRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)
	tmp := t.TempDir()

	fixture := filepath.Join(tmp, "canvas.png")
	writePNGFixture(t, fixture, 16, 16)

	out, _, err := runCLI(t, []string{
		"push-input", fixture,
		"--prompt", "castle at dusk",
		"--strength", "0.6",
		"--seed", "7",
	}, env.bridgeURL, env.configPath)
	if err != nil {
		t.Fatalf("push-input: %v", err)
	}
	requireContains(t, out, "Uploaded")

	pulled := filepath.Join(tmp, "pulled.png")
	out, _, err = runCLI(t, []string{"pull", "--out", pulled}, env.bridgeURL, env.configPath)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	requireContains(t, out, "castle at dusk")
	requireContains(t, out, "16x16")
	if _, err := os.Stat(pulled); err != nil {
		t.Fatalf("pulled image missing: %v", err)
	}
}

func TestPushOutputPublishesResult(t *testing.T) {
	env := setupCLITestEnv(t)
	tmp := t.TempDir()

	fixture := filepath.Join(tmp, "result.png")
	writePNGFixture(t, fixture, 4, 4)

	out, _, err := runCLI(t, []string{"push-output", fixture}, env.bridgeURL, env.configPath)
	if err != nil {
		t.Fatalf("push-output: %v", err)
	}
	requireContains(t, out, "Published")

	snap := env.store.Snapshot()
	if len(snap.OutputImage) == 0 {
		t.Fatal("output image not stored on the bridge")
	}
}

func TestStoreTriggerValidatesWorkflow(t *testing.T) {
	env := setupCLITestEnv(t)
	tmp := t.TempDir()

	bad := filepath.Join(tmp, "bad.json")
	if err := os.WriteFile(bad, []byte(`["not","a","workflow"]`), 0o644); err != nil {
		t.Fatalf("write workflow: %v", err)
	}
	if _, _, err := runCLI(t, []string{"store-trigger", bad}, env.bridgeURL, env.configPath); err == nil {
		t.Fatal("expected rejection of a non-object workflow file")
	}

	good := filepath.Join(tmp, "good.json")
	if err := os.WriteFile(good, []byte(`{"prompt":{"3":{"class_type":"KSampler"}}}`), 0o644); err != nil {
		t.Fatalf("write workflow: %v", err)
	}
	out, _, err := runCLI(t, []string{"store-trigger", good}, env.bridgeURL, env.configPath)
	if err != nil {
		t.Fatalf("store-trigger: %v", err)
	}
	requireContains(t, out, "stored")

	if !env.store.HasTrigger() {
		t.Fatal("trigger payload not stored")
	}
}

func TestTriggerFailsWithoutPayload(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"trigger"}, env.bridgeURL, env.configPath); err == nil {
		t.Fatal("expected error with no stored payload")
	}
}
