package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/usecase"
)

// maxBodyBytes caps request bodies on every endpoint
const maxBodyBytes = 1 << 20

// DispatchRunner runs dispatches for the send endpoint
type DispatchRunner interface {
	Dispatch(ctx context.Context, req *domain.SendRequest) domain.AttributionResult
	DispatchAsync(ctx context.Context, req *domain.SendRequest) (<-chan domain.AttributionResult, error)
}

// RecordIngester stores webhook message events
type RecordIngester interface {
	Ingest(ctx context.Context, req *usecase.IngestRequest) (*domain.MessageRecord, bool, error)
}

// Server provides the HTTP API: message sends, webhook ingestion, health and metrics
type Server struct {
	dispatcher DispatchRunner
	ingester   RecordIngester
	log        *slog.Logger

	server *http.Server
	addr   string
}

// NewServer creates a new API server
func NewServer(dispatcher DispatchRunner, ingester RecordIngester, addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		dispatcher: dispatcher,
		ingester:   ingester,
		log:        log.With("component", "api"),
		addr:       addr,
	}
}

// Handler builds the routed, instrumented handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Post("/api/conversations/{conversationID}/messages", s.handleSendMessage)
	r.Post("/api/webhooks/messages", s.handleWebhookMessage)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(r, "dispatch-api")
}

// Start starts the HTTP server; it blocks until Stop is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// SendMessageRequest is the body of the send endpoint
type SendMessageRequest struct {
	Body        string          `json:"body"`
	Attachments []string        `json:"attachments"`
	Sender      domain.Identity `json:"sender"`
}

// ============ Handlers ============

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body SendMessageRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	req := &domain.SendRequest{
		ConversationID: chi.URLParam(r, "conversationID"),
		Body:           body.Body,
		Attachments:    body.Attachments,
		Sender:         body.Sender,
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		s.dispatchAsync(w, r, req)
		return
	}

	result := s.dispatcher.Dispatch(r.Context(), req)
	s.writeResult(w, result)
}

// dispatchAsync answers 202 at once; the result is only logged
func (s *Server) dispatchAsync(w http.ResponseWriter, r *http.Request, req *domain.SendRequest) {
	results, err := s.dispatcher.DispatchAsync(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	go func() {
		result := <-results
		s.log.Info("async dispatch finished",
			"dispatch_id", result.DispatchID,
			"outcome", string(result.Outcome),
			"record_id", result.RecordID,
		)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (s *Server) handleWebhookMessage(w http.ResponseWriter, r *http.Request) {
	var req usecase.IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	record, inserted, err := s.ingester.Ingest(r.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err)
		return
	}

	status := http.StatusCreated
	if !inserted {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"record_id": record.ID,
		"inserted":  inserted,
	})
}

// ============ Helpers ============

// writeResult maps a dispatch outcome to a status: send failures are 502
// (400 when the request never passed validation), anything sent is 200.
func (s *Server) writeResult(w http.ResponseWriter, result domain.AttributionResult) {
	status := http.StatusOK
	if result.Outcome == domain.OutcomeSendFailed {
		status = http.StatusBadGateway
		if errors.Is(result.Err, domain.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
