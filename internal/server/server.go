package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/cryptolab"
	"github.com/jpalmerr/cryptolab/features"
	"github.com/jpalmerr/cryptolab/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// maxRequestBody bounds job submission bodies.
	maxRequestBody = 1 << 16
)

// Server is the local relay in front of the analytics backend.
//
// Routes:
//   - GET /api/tasks: current snapshot per slot
//   - GET /api/tasks/{slot}: one slot's snapshot
//   - GET /api/sse: Server-Sent Events stream of snapshots
//   - POST /api/jobs/{slot}: submit a model, chart or score job
//   - DELETE /api/jobs/{slot}: stop a slot
//   - GET /api/features/{namespace}/{key}: feature label lookup
//   - GET /metrics: Prometheus exposition
//   - GET /healthz: liveness
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	jobs       *Jobs
	features   *features.Dictionary
	gatherer   prometheus.Gatherer
	port       int
	httpServer *http.Server
	logger     *slog.Logger

	// done closes once shutdown has finished
	done chan struct{}
}

// NewServer creates a new HTTP [Server].
//
// jobs may be nil, in which case job routes answer 503. gatherer may be nil
// to disable /metrics. The server is not started until [Server.Start] is
// called.
func NewServer(st store.Store, jobs *Jobs, port int, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		store:    st,
		jobs:     jobs,
		features: features.Default,
		gatherer: gatherer,
		port:     port,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Done returns a channel closed when a started server has finished shutting
// down.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Handler returns the router. It is what [Server.Start] serves.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", s.handleTasks)
		r.Get("/tasks/{slot}", s.handleTask)
		r.Get("/sse", s.handleSSE)
		r.Post("/jobs/{slot}", s.handleSubmit)
		r.Delete("/jobs/{slot}", s.handleStop)
		r.Get("/features/{namespace}/{key}", s.handleFeature)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. When ctx is cancelled the server shuts down gracefully and
// every tracker is stopped.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		if s.jobs != nil {
			s.jobs.StopAll()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("relay listening", "addr", ln.Addr().String())
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// handleTasks returns every slot snapshot as JSON.
func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.GetAll(), s.logger)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	snap, ok := s.store.Get(slot)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no task in slot %q", slot), s.logger)
		return
	}
	writeJSON(w, http.StatusOK, snap, s.logger)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job submission is not configured", s.logger)
		return
	}

	var in JobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), s.logger)
		return
	}

	slot := chi.URLParam(r, "slot")
	snap, err := s.jobs.Submit(r.Context(), slot, in)
	if err != nil {
		code, msg := submitErrorStatus(err)
		if code >= http.StatusInternalServerError {
			s.logger.Warn("job submission failed", "slot", slot, "error", err)
		}
		writeError(w, code, msg, s.logger)
		return
	}

	writeJSON(w, http.StatusAccepted, snap, s.logger)
}

// submitErrorStatus maps a submission error to the relay's HTTP answer.
func submitErrorStatus(err error) (int, string) {
	var reqErr *RequestError
	var subErr *cryptolab.SubmissionError
	var apiErr *cryptolab.APIError

	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.Msg
	case errors.Is(err, cryptolab.ErrUnauthorized):
		return http.StatusUnauthorized, "not logged in"
	case errors.As(err, &subErr):
		if subErr.StatusCode >= 400 && subErr.StatusCode < 500 {
			return subErr.StatusCode, subErr.Message
		}
		return http.StatusBadGateway, subErr.Message
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, apiErr.Message
		}
		return http.StatusBadGateway, apiErr.Message
	}
	return http.StatusBadGateway, err.Error()
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job submission is not configured", s.logger)
		return
	}

	slot := chi.URLParam(r, "slot")
	if !s.jobs.Stop(slot) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown job kind %q", slot), s.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	ns, err := features.ParseNamespace(chi.URLParam(r, "namespace"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), s.logger)
		return
	}
	writeJSON(w, http.StatusOK, s.features.Resolve(chi.URLParam(r, "key"), ns), s.logger)
}

// handleSSE streams slot snapshots via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// send current snapshots first
	for _, snap := range s.store.GetAll() {
		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on both client disconnect and server shutdown
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string, logger *slog.Logger) {
	writeJSON(w, code, map[string]string{"detail": msg}, logger)
}
