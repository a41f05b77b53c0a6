package bridge

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"canvasbridge/internal/logging"
)

// handleStatic serves the browser UI bundle from the configured frontend
// directory, with index.html as the SPA fallback for unknown paths.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	root := s.cfg.Paths.FrontendDir
	requested := strings.TrimPrefix(r.URL.Path, "/")
	if requested == "" {
		requested = "index.html"
	}

	full := filepath.Join(root, filepath.FromSlash(requested))

	// Directory traversal guard: the resolved path must stay under root.
	absRoot, err := filepath.Abs(root)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "frontend directory unavailable")
		return
	}
	absFull, err := filepath.Abs(full)
	if err != nil || (absFull != absRoot && !strings.HasPrefix(absFull, absRoot+string(os.PathSeparator))) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if info, err := os.Stat(absFull); err == nil {
		if info.IsDir() {
			index := filepath.Join(absFull, "index.html")
			if _, err := os.Stat(index); err == nil {
				http.ServeFile(w, r, index)
				return
			}
		} else {
			http.ServeFile(w, r, absFull)
			return
		}
	}

	// SPA routing: unknown paths fall back to index.html when it exists.
	index := filepath.Join(absRoot, "index.html")
	if _, err := os.Stat(index); err == nil {
		http.ServeFile(w, r, index)
		return
	}

	s.log().Debug("static asset not found", logging.String("path", r.URL.Path))
	http.NotFound(w, r)
}
