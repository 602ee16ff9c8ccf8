package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/chronicle"
	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes caps live-action request bodies.
const maxBodyBytes = 1 << 20

// Server exposes an ExecutionService over HTTP.
type Server struct {
	Service    ports.ExecutionService
	Subscriber ports.Subscriber
	Metrics    http.Handler
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithSubscriber enables the GET /events change stream.
func WithSubscriber(sub ports.Subscriber) Option {
	return func(s *Server) {
		s.Subscriber = sub
	}
}

// WithMetrics mounts a handler at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the service.
func NewHandler(svc ports.ExecutionService, opts ...Option) http.Handler {
	server := &Server{Service: svc, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)

	r.Route("/executions/{id}", func(r chi.Router) {
		r.Get("/", server.GetExecution)
		r.Get("/descendants", server.GetDescendants)
		r.Get("/canceled", server.GetCancelState)
	})
	r.Post("/liveactions", server.CreateExecution)
	r.Put("/liveactions/{id}", server.UpdateExecution)

	if server.Subscriber != nil {
		r.Get("/events", server.SubscribeEvents)
	}
	if server.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.Metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetExecution handles GET /executions/{id}.
func (s *Server) GetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.Service.GetExecution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "GetExecution", err)
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

// GetDescendants handles GET /executions/{id}/descendants?depth=&order=.
// A missing depth is unbounded.
func (s *Server) GetDescendants(w http.ResponseWriter, r *http.Request) {
	depth := domain.Unbounded
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, "GetDescendants", fmt.Errorf("%w: depth must be an integer", errBadRequest))
			return
		}
		depth = parsed
	}
	order := domain.ParseDescendantOrder(r.URL.Query().Get("order"))

	res, err := s.Service.GetDescendants(r.Context(), chi.URLParam(r, "id"), depth, order)
	if err != nil {
		s.writeError(w, "GetDescendants", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// CancelStateResponse is the body of GET /executions/{id}/canceled.
type CancelStateResponse struct {
	ID       string             `json:"id"`
	Canceled bool               `json:"canceled"`
	State    domain.CancelState `json:"state"`
}

// GetCancelState handles GET /executions/{id}/canceled. It never fails.
func (s *Server) GetCancelState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state := s.Service.ExecutionCancelState(r.Context(), id)
	s.writeJSON(w, http.StatusOK, CancelStateResponse{ID: id, Canceled: state.Canceled(), State: state})
}

// CreateExecution handles POST /liveactions?publish=.
// A record that was stored but could not be linked to its parent is still
// returned, with the link error in the X-Chronicle-Link-Error header.
func (s *Server) CreateExecution(w http.ResponseWriter, r *http.Request) {
	live, ok := s.decodeLiveAction(w, r, "CreateExecution")
	if !ok {
		return
	}

	exec, err := s.Service.CreateExecution(r.Context(), live, publishParam(r))
	if err != nil && exec == nil {
		s.writeError(w, "CreateExecution", err)
		return
	}
	if err != nil {
		s.logger.Warn("CreateExecution: parent link failed", "execution_id", exec.ID, "err", err)
		w.Header().Set("X-Chronicle-Link-Error", err.Error())
	}
	s.writeJSON(w, http.StatusCreated, exec)
}

// UpdateExecution handles PUT /liveactions/{id}?publish=.
func (s *Server) UpdateExecution(w http.ResponseWriter, r *http.Request) {
	live, ok := s.decodeLiveAction(w, r, "UpdateExecution")
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if live.ID == "" {
		live.ID = id
	}
	if live.ID != id {
		s.writeError(w, "UpdateExecution", fmt.Errorf("%w: body id %q does not match path", errBadRequest, live.ID))
		return
	}

	exec, err := s.Service.UpdateExecution(r.Context(), live, publishParam(r))
	if err != nil {
		s.writeError(w, "UpdateExecution", err)
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "chronicle-http",
		"version": chronicle.Version,
	})
}

// SubscribeEvents handles GET /events (SSE).
// Optional filters: execution_id, and kind (comma separated "created,updated").
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	events, err := s.Subscriber.Subscribe(r.Context())
	if err != nil {
		s.writeError(w, "SubscribeEvents", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	filter := newEventFilter(r)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE Client Disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !filter.keep(ev) {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("SSE: failed to encode event", "execution_id", ev.ExecutionID, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}

type eventFilter struct {
	executionID string
	kinds       map[domain.ChangeKind]bool
}

func newEventFilter(r *http.Request) eventFilter {
	f := eventFilter{executionID: r.URL.Query().Get("execution_id")}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		f.kinds = make(map[domain.ChangeKind]bool)
		for _, k := range strings.Split(raw, ",") {
			f.kinds[domain.ChangeKind(strings.TrimSpace(k))] = true
		}
	}
	return f
}

func (f eventFilter) keep(ev domain.ChangeEvent) bool {
	if f.executionID != "" && ev.ExecutionID != f.executionID {
		return false
	}
	if f.kinds != nil && !f.kinds[ev.Kind] {
		return false
	}
	return true
}

// -- Helpers --

var errBadRequest = errors.New("bad request")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) decodeLiveAction(w http.ResponseWriter, r *http.Request, op string) (*domain.LiveAction, bool) {
	var live domain.LiveAction
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&live); err != nil {
		s.writeError(w, op, fmt.Errorf("%w: invalid request body: %v", errBadRequest, err))
		return nil, false
	}
	if live.ID == "" && op == "CreateExecution" {
		s.writeError(w, op, fmt.Errorf("%w: live action id is required", errBadRequest))
		return nil, false
	}
	return &live, true
}

func publishParam(r *http.Request) bool {
	publish, err := strconv.ParseBool(r.URL.Query().Get("publish"))
	if err != nil {
		return true
	}
	return publish
}

func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidReference),
		errors.Is(err, domain.ErrInvalidExecution):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "status", status, "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
