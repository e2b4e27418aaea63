// Package api exposes the Strava push subscription endpoint and the operator sync API.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/stravbit/internal/auth"
	"example.com/stravbit/internal/domain"
	"example.com/stravbit/internal/observability"
	"example.com/stravbit/internal/trigger"
)

// Option configures optional behaviour for the Handler.
type Option func(*Handler)

// WithLogger overrides the logger used to report request failures.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMaxBodyBytes caps request bodies. Zero disables the cap.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		h.maxBodyBytes = n
	}
}

// Handler coordinates HTTP requests with the trigger dispatcher.
type Handler struct {
	dispatcher   trigger.Dispatcher
	verifyToken  string
	auth         auth.Middleware
	maxBodyBytes int64
	logger       *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(dispatcher trigger.Dispatcher, verifyToken string, authMiddleware auth.Middleware, opts ...Option) *Handler {
	h := &Handler{
		dispatcher:   dispatcher,
		verifyToken:  verifyToken,
		auth:         authMiddleware,
		maxBodyBytes: 1 << 20,
		logger:       log.New(log.Writer(), "[webhook] ", log.LstdFlags|log.Lmsgprefix),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the router. Only /v1 routes are authenticated.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/webhook", h.verifySubscription)
	r.Post("/webhook", h.receiveEvent)

	r.Route("/v1", func(r chi.Router) {
		r.Use(h.auth.Wrap)
		r.Post("/syncs", h.createSync)
	})
	return r
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
}

// verifySubscription answers the push subscription handshake.
func (h *Handler) verifySubscription(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("hub.verify_token")
	if h.verifyToken == "" || token != h.verifyToken {
		observability.RecordWebhookEvent("rejected")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid verification token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": q.Get("hub.challenge")})
}

// receiveEvent forwards activity-create events to the dispatcher and acknowledges
// everything else.
func (h *Handler) receiveEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.WebhookEvent
	if err := h.decode(w, r, &event); err != nil {
		h.logger.Printf("decode error: %v", err)
		observability.RecordWebhookEvent("failed")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeStatus(w, http.StatusRequestEntityTooLarge, "error", "Request body too large")
			return
		}
		writeStatus(w, http.StatusInternalServerError, "error", "Internal server error")
		return
	}

	if !event.Actionable() {
		observability.RecordWebhookEvent("ignored")
		writeStatus(w, http.StatusOK, "ignored", "Event type not processed")
		return
	}

	h.logger.Printf("activity created (activity=%s, owner=%s)", event.ObjectID, event.OwnerID)
	if err := h.dispatcher.Dispatch(r.Context(), event.Trigger()); err != nil {
		h.logger.Printf("dispatch failed (activity=%s, kind=%s): %v", event.ObjectID, domain.KindOf(err), err)
		observability.RecordWebhookEvent("failed")
		writeStatus(w, http.StatusInternalServerError, "error", "Failed to trigger sync")
		return
	}

	observability.RecordWebhookEvent("dispatched")
	writeStatus(w, http.StatusOK, "success", "sync triggered")
}

func (h *Handler) createSync(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSyncWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sync:write required")
		return
	}

	var req CreateSyncRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	id := strings.TrimSpace(req.ActivityID)
	h.logger.Printf("manual sync requested (activity=%s, subject=%s)", id, claims.Subject)
	if err := h.dispatcher.Dispatch(r.Context(), domain.TriggerPayload{ObjectID: domain.ObjectID(id)}); err != nil {
		h.logger.Printf("dispatch failed (activity=%s, kind=%s): %v", id, domain.KindOf(err), err)
		writeError(w, http.StatusBadGateway, "dispatch_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, CreateSyncResponse{Status: "accepted", ActivityID: id})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	return json.NewDecoder(body).Decode(v)
}

// CreateSyncRequest is the payload for POST /v1/syncs.
type CreateSyncRequest struct {
	ActivityID string `json:"activity_id"`
}

// Validate ensures the id is one Strava could have issued.
func (r CreateSyncRequest) Validate() error {
	if strings.TrimSpace(r.ActivityID) == "" {
		return errors.New("activity_id is required")
	}
	_, err := domain.ParseActivityID(strings.TrimSpace(r.ActivityID))
	return err
}

// CreateSyncResponse describes the response body for create.
type CreateSyncResponse struct {
	Status     string `json:"status"`
	ActivityID string `json:"activity_id"`
}

func writeStatus(w http.ResponseWriter, code int, status, message string) {
	writeJSON(w, code, map[string]string{"status": status, "message": message})
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
