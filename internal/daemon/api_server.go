package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"liftmail/internal/api"
	"liftmail/internal/config"
	"liftmail/internal/logging"
)

const (
	maxRequestBytes = 1 << 20
	// manualCheckTimeout matches the server's write timeout.
	manualCheckTimeout = 10 * time.Minute
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	return &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		server: &http.Server{
			Handler:           newRouter(d, cfg.Paths.APIToken),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// A manual check holds the request open for a full mailbox tick.
			WriteTimeout: manualCheckTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// serve blocks until ctx is cancelled or the listener fails.
func (s *apiServer) serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api shutdown incomplete", logging.Error(err))
	}
	return nil
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type handlers struct {
	daemon *Daemon
	logger *slog.Logger
}

func newRouter(d *Daemon, token string) *mux.Router {
	h := &handlers{daemon: d, logger: logging.NewComponentLogger(d.logger, "api")}
	router := mux.NewRouter()
	router.HandleFunc("/email/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/email/check", authMiddleware(token, h.check)).Methods(http.MethodPost)
	router.HandleFunc("/email/test", authMiddleware(token, h.parseTest)).Methods(http.MethodPost)
	router.HandleFunc("/email/stats/reset", authMiddleware(token, h.resetStats)).Methods(http.MethodPost)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return router
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.FromStats(h.daemon.poller.Stats()))
}

func (h *handlers) check(w http.ResponseWriter, r *http.Request) {
	// The tick outlives a disconnected client so in-flight messages finish.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), manualCheckTimeout)
	defer cancel()
	result, err := h.daemon.poller.RunOnce(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.logger.Info("manual check complete",
		logging.Int("processed", result.Processed),
		logging.Int("failed", result.Failed),
	)
	writeJSON(w, http.StatusOK, api.FromCheckResult(result))
}

func (h *handlers) parseTest(w http.ResponseWriter, r *http.Request) {
	var req api.ParseTestRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil || req.Body == nil {
		writeError(w, http.StatusBadRequest, `Request must include "body" field`)
		return
	}
	writeJSON(w, http.StatusOK, api.ParseTest(h.daemon.tags, *req.Body))
}

func (h *handlers) resetStats(w http.ResponseWriter, _ *http.Request) {
	h.daemon.poller.ResetStats()
	writeJSON(w, http.StatusOK, api.ResetResponse{Status: "reset"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}
