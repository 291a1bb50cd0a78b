// Package httpapi serves one assistant over HTTP.
//
//	GET  /health      liveness and the assistant name
//	POST /v1/query    {"message": "..."} -> {"reply": "...", "session_id": "..."}
//	POST /v1/reset    starts a new conversation -> {"session_id": "..."}
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/logging"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// Options configures the handler.
type Options struct {
	Logger logging.Logger
	// RateLimitRPS and RateLimitBurst bound requests per client address.
	// A non-positive rate disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	// RequestTimeout bounds one query; zero means no limit.
	RequestTimeout time.Duration
}

type QueryRequest struct {
	Message string `json:"message"`
}

type QueryResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
}

type ResetResponse struct {
	SessionID string `json:"session_id"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Assistant string `json:"assistant"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	asst    *assistant.Assistant
	logger  logging.Logger
	timeout time.Duration
}

// New returns the router for asst.
func New(asst *assistant.Assistant, optFns ...func(o *Options)) http.Handler {
	opts := Options{
		Logger:         logging.NoOpLogger{},
		RateLimitRPS:   100,
		RateLimitBurst: 20,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{asst: asst, logger: opts.Logger, timeout: opts.RequestTimeout}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	if opts.RateLimitRPS > 0 {
		r.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	}

	r.Get("/health", h.health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", h.query)
		r.Post("/reset", h.reset)
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Assistant: h.asst.Name()})
}

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}

		writeError(w, http.StatusBadRequest, "invalid JSON body")

		return
	}

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()

	if h.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	reply, err := h.asst.Ask(ctx, msg)
	if err != nil {
		h.logger.Error("http.query.error", "request_id", middleware.GetReqID(r.Context()), "error", err.Error())

		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}

		writeError(w, status, err.Error())

		return
	}

	if reply == "" {
		reply = assistant.NoResponse
	}

	writeJSON(w, http.StatusOK, QueryResponse{Reply: reply, SessionID: h.asst.SessionID()})
}

func (h *handler) reset(w http.ResponseWriter, _ *http.Request) {
	id, err := h.asst.Reset()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ResetResponse{SessionID: id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
