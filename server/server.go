package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"gridlearn/grid_world"

	"github.com/gorilla/mux"
)

const shutdownGracePeriod = 5 * time.Second

// Server exposes a Driver over http. Tick results stream to a single websocket client, since
// the driver keeps only the latest frame and one reader consumes it; other routes are plain
// JSON request/reply that go through the driver's command channel.
type Server struct {
	addr    string
	driver  *Driver
	logger  *log.Logger
	router  *mux.Router
	watched atomic.Bool
}

func NewServer(addr string, driver *Driver, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	server := &Server{
		addr:   addr,
		driver: driver,
		logger: logger,
	}
	server.router = server.routes()
	return server
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/stats", server.serveStats).Methods(http.MethodGet)
	router.HandleFunc("/history", server.serveHistory).Methods(http.MethodGet)
	router.HandleFunc("/exploration", server.setExploration).Methods(http.MethodPost)
	router.HandleFunc("/manual", server.toggleManual).Methods(http.MethodPost)
	router.HandleFunc("/reset", server.reset).Methods(http.MethodPost)
	return router
}

// Handler returns the routed handler, e.g. for httptest.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until ctx is done, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		server.logger.Printf("[SERVER] [INFO] listening on %s", server.addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket streams tick results to the one client allowed at a time.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	if !server.watched.CompareAndSwap(false, true) {
		http.Error(w, "a client is already attached", http.StatusConflict)
		return
	}
	defer server.watched.Store(false)

	cli, err := newClient(server.driver.Results(), w, r)
	if err != nil {
		server.logger.Printf("[SERVER] [ERROR] upgrade: %v", err)
		return
	}
	if err = cli.Sync(); err != nil {
		server.logger.Printf("[SERVER] [ERROR] websocket client: %v", err)
	}
}

func (server *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, server.driver.Stats())
}

func (server *Server) serveHistory(w http.ResponseWriter, r *http.Request) {
	view, err := server.driver.History(r.Context())
	if err != nil {
		server.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type explorationRequest struct {
	Rate *float64 `json:"rate"`
}

func (server *Server) setExploration(w http.ResponseWriter, r *http.Request) {
	var req explorationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Rate == nil || *req.Rate < 0 || *req.Rate > 1 {
		http.Error(w, "rate must be in [0,1]", http.StatusBadRequest)
		return
	}

	rate, err := server.driver.SetExplorationRate(r.Context(), *req.Rate)
	if err != nil {
		server.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"rate": rate})
}

type manualRequest struct {
	Action *grid_world.Action `json:"action"`
}

func (server *Server) toggleManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Action == nil {
		http.Error(w, "action is required", http.StatusBadRequest)
		return
	}

	pending, err := server.driver.ToggleManualOverride(r.Context(), *req.Action)
	if err != nil {
		server.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"action": *req.Action, "pending": pending})
}

func (server *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := server.driver.Reset(r.Context()); err != nil {
		server.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrDriverStopped) {
		status = http.StatusServiceUnavailable
	}
	server.logger.Printf("[SERVER] [ERROR] %v", err)
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, val interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(val)
}
