package bridge

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestStaticServesIndexAndAssets(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.Paths.FrontendDir, "index.html"), []byte("<html>canvas</html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.Paths.FrontendDir, "assets"), 0o755); err != nil {
		t.Fatalf("mkdir assets: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Paths.FrontendDir, "assets", "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	srv := newTestServer(t, cfg)

	w := doRequest(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || w.Body.String() != "<html>canvas</html>" {
		t.Fatalf("index not served: %d %q", w.Code, w.Body.String())
	}

	w = doRequest(srv, httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))
	if w.Code != http.StatusOK || w.Body.String() != "console.log(1)" {
		t.Fatalf("asset not served: %d", w.Code)
	}

	// Unknown paths fall back to index.html for SPA routing.
	w = doRequest(srv, httptest.NewRequest(http.MethodGet, "/editor/session/42", nil))
	if w.Code != http.StatusOK || w.Body.String() != "<html>canvas</html>" {
		t.Fatalf("SPA fallback failed: %d", w.Code)
	}
}

func TestStaticRejectsTraversal(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg)

	// The mux normally cleans dotted paths; hit the handler directly to
	// exercise the guard itself.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../secrets.txt"
	w := httptest.NewRecorder()
	srv.handleStatic(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for traversal, got %d", w.Code)
	}
}

func TestStaticMissingEverythingIs404(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg)

	w := doRequest(srv, httptest.NewRequest(http.MethodGet, "/nothing-here", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without index.html, got %d", w.Code)
	}
}
