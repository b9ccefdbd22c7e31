package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/smikhalev/support-rag/internal/core/domain"
	"github.com/smikhalev/support-rag/internal/core/ports"
	"github.com/smikhalev/support-rag/internal/observability/metrics"
)

const serviceName = "support-rag-api"

type Router struct {
	queryService ports.QueryService
	metrics      *metrics.APIMetrics
	cfg          Config
	log          *slog.Logger
}

type Config struct {
	RateLimitRPS      float64
	RateLimitBurst    int
	MaxConcurrent     int
	BackpressureWait  time.Duration
	MaxQuestionLength int
}

func NewRouter(queryService ports.QueryService, apiMetrics *metrics.APIMetrics, cfg Config, log *slog.Logger) *Router {
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = 4000
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		queryService: queryService,
		metrics:      apiMetrics,
		cfg:          cfg,
		log:          log,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.query)
	mux.HandleFunc("/v1/query/stream", rt.queryStream)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.cfg.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrent, rt.cfg.BackpressureWait)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Question string            `json:"question"`
	History  []domain.ChatTurn `json:"history,omitempty"`
}

func (rt *Router) decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return queryRequest{}, false
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return queryRequest{}, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return queryRequest{}, false
	}
	if len(req.Question) > rt.cfg.MaxQuestionLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is too long"})
		return queryRequest{}, false
	}
	return req, true
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeQuery(w, r)
	if !ok {
		return
	}

	answer, err := rt.queryService.Answer(r.Context(), req.Question, req.History)
	if err != nil {
		rt.writeError(r, w, err)
		return
	}
	rt.recordAnswer(answer)
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) queryStream(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeQuery(w, r)
	if !ok {
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		rt.writeError(r, w, err)
		return
	}

	answer, err := rt.queryService.AnswerStream(r.Context(), req.Question, req.History, stream.WriteDelta)
	if err != nil {
		// Headers are already out; surface the failure in-band.
		stream.WriteErrorEvent(err)
		rt.log.Error("query_stream_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		return
	}
	rt.recordAnswer(answer)
	if err := stream.WriteMetadata(answer); err != nil {
		rt.log.Warn("sse_metadata_write_failed", "error", err)
		return
	}
	stream.Close()
}

func (rt *Router) recordAnswer(answer *domain.Answer) {
	if rt.metrics != nil {
		rt.metrics.RecordAnswer(serviceName, answer)
	}
}

func (rt *Router) writeError(r *http.Request, w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.log.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
