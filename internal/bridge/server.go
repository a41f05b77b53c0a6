package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"canvasbridge/internal/comfy"
	"canvasbridge/internal/config"
	"canvasbridge/internal/events"
	"canvasbridge/internal/logging"
	"canvasbridge/internal/session"
)

// shutdownGrace is how long the shutdown endpoint waits before signalling the
// process, so the HTTP response can flush first.
const shutdownGrace = 100 * time.Millisecond

// Server is the relay HTTP surface over the session store. It is constructed
// with every collaborator injected; nothing here is package-level state.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *session.Store
	comfy     *comfy.Client
	forwarder *Forwarder
	events    *events.Store
	terminate func()

	listener net.Listener
	server   *http.Server
}

// NewServer wires the relay endpoints over the supplied collaborators.
// events may be nil when debug archiving is disabled; terminate may be nil,
// in which case the shutdown endpoint signals the current process.
func NewServer(cfg *config.Config, store *session.Store, client *comfy.Client, fwd *Forwarder, eventStore *events.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		comfy:     client,
		forwarder: fwd,
		events:    eventStore,
	}
	srv.terminate = srv.signalSelf

	mux := http.NewServeMux()
	mux.HandleFunc("/status", srv.handleStatus)
	mux.HandleFunc("/open", srv.handleOpen)
	mux.HandleFunc("/push/input", srv.handlePushInput)
	mux.HandleFunc("/get/input", srv.handleGetInput)
	mux.HandleFunc("/get/prompt", srv.handleGetPrompt)
	mux.HandleFunc("/push/output", srv.handlePushOutput)
	mux.HandleFunc("/get/output", srv.handleGetOutput)
	mux.HandleFunc("/store/trigger", srv.handleStoreTrigger)
	mux.HandleFunc("/trigger", srv.handleTrigger)
	mux.HandleFunc("/shutdown", srv.handleShutdown)
	mux.HandleFunc("/debug/event", srv.handleDebugEvent)
	mux.HandleFunc("/", srv.handleStatic)

	srv.server = &http.Server{
		Handler:           srv.recoverPanics(srv.allowCORS(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving on the configured bind address. The server shuts down
// when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.BindAddress())
	if err != nil {
		return fmt.Errorf("bridge listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("bridge server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("bridge server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("url", s.cfg.BridgeURL()),
		logging.String("frontend_dir", s.cfg.Paths.FrontendDir))
	return nil
}

// Stop shuts the server down immediately.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) signalSelf() {
	time.Sleep(shutdownGrace)
	if err := unix.Kill(os.Getpid(), unix.SIGTERM); err != nil {
		s.log().Error("self-termination failed", logging.Error(err))
	}
}

// allowCORS adds the permissive headers the embedded frontend and the
// pipeline host's web extension rely on, and answers preflight requests.
func (s *Server) allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanics converts handler panics into a generic failure response so a
// single bad request never takes the relay down.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.log().Error("handler panic",
					logging.String("path", r.URL.Path),
					logging.Any("panic", recovered))
				s.writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

func (s *Server) log() *slog.Logger {
	return s.logger.With(logging.String("component", "bridge-server"))
}

func (s *Server) debugEnabled() bool {
	return s.cfg.Bridge.Debug
}
