package events_test

import (
	"context"
	"path/filepath"
	"testing"

	"canvasbridge/internal/events"
)

func openTestStore(t *testing.T) *events.Store {
	t.Helper()
	store, err := events.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() }) //nolint:errcheck
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, "stroke", map[string]any{"tool": "brush"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, "generate", map[string]any{"counter": 3}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].Type != "generate" {
		t.Fatalf("expected newest first, got %q", recent[0].Type)
	}
	if recent[1].Payload["tool"] != "brush" {
		t.Fatalf("payload round trip failed: %v", recent[1].Payload)
	}
	if recent[0].ReceivedAt.IsZero() {
		t.Fatal("expected received_at to be populated")
	}
}

func TestAppendDefaultsEmptyType(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, "", nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	recent, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if recent[0].Type != "event" {
		t.Fatalf("expected default event type, got %q", recent[0].Type)
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, "tick", map[string]any{"i": i}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(recent))
	}
}
