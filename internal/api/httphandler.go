package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"pinrelay/internal/flow"
	"pinrelay/internal/ports"
	"pinrelay/internal/types"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzhttp"
	log "github.com/sirupsen/logrus"
)

// Channel is the messaging channel as seen by the admin surface: a messenger with a running switch.
type Channel interface {
	ports.Messenger
	Start()
	Stop()
}

// Options carries the settings the handler needs beyond its collaborators.
type Options struct {
	Messages        types.Messages
	ResetRPM        int
	DeliveryTimeout time.Duration
}

type Handler struct {
	ClientStore ports.ClientStore
	Channel     Channel
	Resetter    *flow.Resetter
	Verifier    *flow.Verifier
	Metrics     *Metrics
	Messages    types.Messages
}

func NewHandler(cl ports.ClientStore, rl ports.RateLimiter, ch Channel, opts Options) (*Handler, error) {
	m, err := NewMetrics()
	if err != nil {
		return nil, err
	}
	return &Handler{
		ClientStore: cl,
		Channel:     ch,
		Resetter: &flow.Resetter{
			Clients:         cl,
			Channel:         ch,
			Messages:        opts.Messages,
			Limiter:         rl,
			ResetRPM:        opts.ResetRPM,
			DeliveryTimeout: opts.DeliveryTimeout,
			Observer:        m,
		},
		Verifier: flow.NewVerifier(cl),
		Metrics:  m,
		Messages: opts.Messages,
	}, nil
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/clients/{clientKey}/reset-pin", h.handleResetPin)
	mux.HandleFunc("POST /api/clients/{clientKey}/verify-pin", h.handleVerifyPin)
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("POST /api/start", h.handleStart)
	mux.HandleFunc("POST /api/stop", h.handleStop)
	mux.HandleFunc("GET /api/ai/registered-clients", h.handleRegisteredClients)
	mux.Handle("GET /metrics", h.Metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return gzhttp.GzipHandler(mux)
}

func (h *Handler) handleResetPin(w http.ResponseWriter, r *http.Request) {
	clientKey := r.PathValue("clientKey")
	res, statusCode, err := h.Resetter.Run(r.Context(), clientKey)
	if err != nil {
		h.writeError(w, statusCode, h.messageFor(res.Outcome))
		return
	}
	body := map[string]any{
		"success":    true,
		"clientName": res.ClientName,
	}
	if res.Outcome == flow.DeliveredWarningFallback {
		body["warning"] = res.Warning
		body["newPin"] = res.Pin
	}
	// the body may carry a PIN
	w.Header().Set("Cache-Control", "no-store")
	h.respond(w, statusCode, body)
}

func (h *Handler) messageFor(outcome flow.Outcome) string {
	switch outcome {
	case flow.NotFound:
		return h.Messages.ClientNotFound
	case flow.Rejected:
		return h.Messages.PhoneRequired
	case flow.Throttled:
		return h.Messages.Throttled
	default:
		return h.Messages.Internal
	}
}

type verifyRequest struct {
	Pin string `json:"pin"`
}

func (h *Handler) handleVerifyPin(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<10))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, h.Messages.InvalidPin)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()
	var req verifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, h.Messages.InvalidPin)
		return
	}

	valid, statusCode, err := h.Verifier.Verify(r.Context(), r.PathValue("clientKey"), req.Pin)
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrInvalidPin):
			h.writeError(w, statusCode, h.Messages.InvalidPin)
		case errors.Is(err, flow.ErrTooManyAttempts):
			h.writeError(w, statusCode, h.Messages.TooManyAttempts)
		case errors.Is(err, types.ErrNotFound):
			h.writeError(w, statusCode, h.Messages.ClientNotFound)
		default:
			h.writeError(w, statusCode, h.Messages.Internal)
		}
		return
	}
	h.respond(w, statusCode, map[string]any{"valid": valid})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.Channel.Status(r.Context()))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.Channel.Start()
	h.respond(w, http.StatusOK, h.Channel.Status(r.Context()))
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.Channel.Stop()
	h.respond(w, http.StatusOK, h.Channel.Status(r.Context()))
}

func (h *Handler) handleRegisteredClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.ClientStore.ListClients(r.Context())
	if err != nil {
		log.WithError(err).Error("list clients failed")
		h.writeError(w, http.StatusInternalServerError, h.Messages.Internal)
		return
	}
	views, err := flow.FilterClients(r.URL.Query().Get("filter"), clients)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, h.Messages.InvalidFilter)
		return
	}
	h.respond(w, http.StatusOK, views)
}

func (h *Handler) writeError(w http.ResponseWriter, code int, msg string) {
	h.respond(w, code, map[string]string{"error": msg})
}

func (h *Handler) respond(w http.ResponseWriter, code int, v any) {
	if err := writeJSON(w, code, v); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
