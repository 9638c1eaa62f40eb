package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/relaymind/voicegate/internal/calls"
	"github.com/relaymind/voicegate/internal/compliance"
	observemetrics "github.com/relaymind/voicegate/internal/observability/metrics"
	"github.com/relaymind/voicegate/internal/telnyx"
	"github.com/relaymind/voicegate/pkg/logging"
)

const maxWebhookBody = 1 << 20

type signatureVerifier interface {
	Verify(rawBody []byte, signature, timestamp string) error
}

type eventReconciler interface {
	Reconcile(ctx context.Context, evt telnyx.Event) (calls.Record, error)
}

type bridgeDispatcher interface {
	Dispatch(evt telnyx.Event) bool
}

type auditRecorder interface {
	RecordAsync(event compliance.AuditEvent)
}

// VoiceWebhookHandler handles inbound Telnyx call lifecycle webhooks. The
// provider is acknowledged as soon as the delivery is verified and
// structurally valid; everything downstream of that point is internal.
type VoiceWebhookHandler struct {
	verifier   signatureVerifier
	reconciler eventReconciler
	dispatcher bridgeDispatcher
	audit      auditRecorder
	metrics    *observemetrics.VoiceMetrics
	logger     *logging.Logger
}

type VoiceWebhookConfig struct {
	Verifier   signatureVerifier
	Reconciler eventReconciler
	Dispatcher bridgeDispatcher
	Audit      auditRecorder
	Metrics    *observemetrics.VoiceMetrics
	Logger     *logging.Logger
}

func NewVoiceWebhookHandler(cfg VoiceWebhookConfig) *VoiceWebhookHandler {
	if cfg.Verifier == nil {
		panic("handlers: verifier required")
	}
	if cfg.Reconciler == nil {
		panic("handlers: reconciler required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &VoiceWebhookHandler{
		verifier:   cfg.Verifier,
		reconciler: cfg.Reconciler,
		dispatcher: cfg.Dispatcher,
		audit:      cfg.Audit,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.Named("voice_webhook"),
	}
}

// HandleVoice is the HTTP handler for POST /webhooks/telnyx/voice.
func (h *VoiceWebhookHandler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	evt, parseErr := telnyx.ParseEvent(body)
	auditKind := "unparseable"
	if parseErr == nil || errors.Is(parseErr, telnyx.ErrEmptyEvent) {
		auditKind = evt.RawType
	}
	if h.audit != nil {
		h.audit.RecordAsync(compliance.AuditEvent{
			Channel:   "voice",
			EventKind: auditKind,
			Path:      r.URL.Path,
			RawBody:   body,
		})
	}

	if err := h.verifier.Verify(body,
		r.Header.Get(telnyx.SignatureHeader),
		r.Header.Get(telnyx.TimestampHeader),
	); err != nil {
		h.logger.Warn("invalid voice webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if parseErr != nil {
		// Deliveries without a call leg (recording notices, machine detection
		// results) are acknowledged and ignored; only broken JSON is rejected.
		if errors.Is(parseErr, telnyx.ErrEmptyEvent) {
			h.metrics.ObserveEvent(string(evt.Kind))
			h.logger.Info("voice event without call leg, ignoring", "event_type", evt.RawType)
			writeJSON(w, http.StatusOK, map[string]bool{"success": true, "received": true})
			return
		}
		h.logger.Warn("unparseable voice webhook payload", "error", parseErr)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	h.metrics.ObserveEvent(string(evt.Kind))
	h.logger.Info("voice event received",
		"event_type", evt.RawType,
		"kind", evt.Kind,
		"call_id", evt.CallControlID,
		"from", evt.From,
		"to", evt.To,
	)

	if _, err := h.reconciler.Reconcile(r.Context(), evt); err != nil {
		// The delivery is already acceptable; a persistence failure is ours
		// to observe, not the provider's to retry.
		h.logger.Error("call record reconcile failed", "call_id", evt.CallControlID, "error", err)
	}

	if evt.Kind == telnyx.EventInitiated && h.dispatcher != nil {
		if !h.dispatcher.Dispatch(evt) {
			h.logger.Error("bridge dispatch rejected", "call_id", evt.CallControlID)
		}
	}

	h.metrics.ObserveWebhookLatency(string(evt.Kind), time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "received": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
