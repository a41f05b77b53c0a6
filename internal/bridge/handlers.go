package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"canvasbridge/internal/logging"
	"canvasbridge/internal/session"
)

const (
	maxUploadBytes  = 64 << 20
	maxLongPollWait = 120 * time.Second
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.store.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"frontend_dir":     s.cfg.Paths.FrontendDir,
		"url":              s.cfg.BridgeURL(),
		"has_input":        len(snap.InputImage) > 0,
		"has_output":       len(snap.OutputImage) > 0,
		"has_trigger":      s.store.HasTrigger(),
		"generate_counter": snap.Counter,
		"ts":               float64(time.Now().UnixNano()) / float64(time.Second),
	})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"url": s.cfg.BridgeURL()})
}

func (s *Server) handlePushInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	image, opts, err := s.parseImagePayload(r, true)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	counter, err := s.store.SetInput(image, opts)
	if errors.Is(err, session.ErrNoImage) {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false})
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.debugEnabled() {
		s.log().Debug("input image ingested",
			logging.Int("bytes", len(image)),
			logging.Int64("generate_counter", counter))
	}

	// Optional auto-forward: fire the stored payload on the supervised
	// worker so the ingest response is never delayed by the host call.
	if s.cfg.Bridge.AutoForward && s.forwarder != nil {
		if payload, err := s.store.TriggerOr(nil); err == nil {
			s.forwarder.Enqueue(payload)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "generate_counter": counter})
}

func (s *Server) handleGetInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	if wantsWait(query.Get("wait")) {
		since, _ := strconv.ParseInt(query.Get("since"), 10, 64)
		wait := maxLongPollWait
		if ms, err := strconv.Atoi(query.Get("timeout_ms")); err == nil && ms > 0 {
			if parsed := time.Duration(ms) * time.Millisecond; parsed < wait {
				wait = parsed
			}
		}
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()
		// Timeout is not an error: the caller just gets whatever is there.
		_, _ = s.store.AwaitInput(ctx, since)
	}

	snap := s.store.Snapshot()
	if len(snap.InputImage) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeImage(w, "input.png", snap.InputImage, snap.Counter)
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.store.PromptPresent() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	snap := s.store.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"prompt":   snap.Prompt,
		"negative": snap.Negative,
		"strength": snap.Strength,
		"seed":     snap.Seed,
	})
}

func (s *Server) handlePushOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	image, _, err := s.parseImagePayload(r, false)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetOutput(image); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false})
		return
	}

	if s.debugEnabled() {
		s.log().Debug("output image updated", logging.Int("bytes", len(image)))
	}
	if s.cfg.Bridge.DumpOutputs {
		s.dumpOutput(image)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.store.Snapshot()
	if len(snap.OutputImage) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeImage(w, "output.png", snap.OutputImage, snap.Counter)
}

func (s *Server) handleStoreTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	payload, ok := body["prompt"].(map[string]any)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "missing or invalid 'prompt'")
		return
	}
	if err := s.store.SetTrigger(payload); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.debugEnabled() {
		nodeCount := 0
		if nodes, ok := payload["prompt"].(map[string]any); ok {
			nodeCount = len(nodes)
		}
		s.log().Debug("trigger payload stored", logging.Int("nodes", nodeCount))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body map[string]any
	_ = json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body)
	explicit, _ := body["prompt"].(map[string]any)

	payload, err := s.store.TriggerOr(explicit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing prompt (and no stored payload)")
		return
	}

	result, err := s.comfy.SubmitPrompt(r.Context(), payload)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("request failed: %v", err))
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(result.StatusCode)
	_, _ = w.Write(result.Body)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.log().Info("shutdown requested")
	go s.terminate()
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDebugEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.debugEnabled() {
		s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ignored": true})
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&payload); err != nil {
		payload = map[string]any{"raw": true}
	}
	eventType, _ := payload["type"].(string)
	if eventType == "" {
		eventType = "event"
	}

	s.log().Debug("frontend event",
		logging.String("type", eventType),
		logging.Any("payload", payload))
	if s.events != nil {
		if err := s.events.Append(r.Context(), eventType, payload); err != nil {
			s.log().Warn("event archive append failed", logging.Error(err))
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// parseImagePayload normalizes the two ingestion transports into raw image
// bytes plus whatever prompt fields accompanied them. Multipart uploads come
// from automated scripts and the consumer node; base64 JSON bodies come from
// the browser canvas. withPrompt controls whether prompt fields are read.
func (s *Server) parseImagePayload(r *http.Request, withPrompt bool) ([]byte, session.InputOptions, error) {
	var opts session.InputOptions

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, opts, fmt.Errorf("parse multipart form: %v", err)
		}
		var image []byte
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			data, readErr := io.ReadAll(io.LimitReader(file, maxUploadBytes))
			if readErr != nil {
				return nil, opts, fmt.Errorf("read upload: %v", readErr)
			}
			image = data
		}
		if withPrompt {
			opts = formPromptFields(r)
		}
		return image, opts, nil
	}

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body); err != nil {
		body = map[string]any{}
	}

	var image []byte
	if b64, ok := body["png_base64"].(string); ok && b64 != "" {
		// Browsers send data URLs; strip the "data:image/png;base64," prefix.
		if idx := strings.Index(b64, ","); idx >= 0 {
			b64 = b64[idx+1:]
		}
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, opts, fmt.Errorf("decode png_base64: %v", err)
		}
		image = decoded
	}
	if withPrompt {
		opts = jsonPromptFields(body)
	}
	return image, opts, nil
}

// formPromptFields reads prompt fields from a multipart form. Unparsable
// numeric fields are ignored rather than rejected, matching the historical
// tolerance of the ingestion path.
func formPromptFields(r *http.Request) session.InputOptions {
	var opts session.InputOptions
	form := r.MultipartForm
	if form == nil {
		return opts
	}
	if values, ok := form.Value["prompt"]; ok && len(values) > 0 {
		opts.Prompt = &values[0]
	}
	if values, ok := form.Value["negative"]; ok && len(values) > 0 {
		opts.Negative = &values[0]
	}
	if values, ok := form.Value["strength"]; ok && len(values) > 0 {
		if parsed, err := strconv.ParseFloat(values[0], 64); err == nil {
			opts.Strength = &parsed
		}
	}
	if values, ok := form.Value["seed"]; ok && len(values) > 0 {
		if parsed, err := strconv.ParseInt(values[0], 10, 64); err == nil {
			opts.Seed = &parsed
		}
	}
	return opts
}

func jsonPromptFields(body map[string]any) session.InputOptions {
	var opts session.InputOptions
	if value, ok := body["prompt"].(string); ok {
		opts.Prompt = &value
	}
	if value, ok := body["negative"].(string); ok {
		opts.Negative = &value
	}
	if value, ok := body["strength"].(float64); ok {
		opts.Strength = &value
	}
	if value, ok := body["seed"].(float64); ok {
		seed := int64(value)
		opts.Seed = &seed
	}
	return opts
}

func wantsWait(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func writeImage(w http.ResponseWriter, name string, image []byte, counter int64) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	w.Header().Set("X-Generate-Counter", strconv.FormatInt(counter, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image)
}

func (s *Server) dumpOutput(image []byte) {
	name := fmt.Sprintf("output-%s.png", time.Now().UTC().Format("20060102-150405.000"))
	path := filepath.Join(s.cfg.Paths.OutputDumpDir, name)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		s.log().Warn("output dump failed", logging.Error(err), logging.String("path", path))
		return
	}
	if s.debugEnabled() {
		s.log().Debug("output image dumped", logging.String("path", path))
	}
}
