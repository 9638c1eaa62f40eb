package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/relaymind/voicegate/internal/calls"
	"github.com/relaymind/voicegate/internal/compliance"
	"github.com/relaymind/voicegate/internal/telnyx"
	"github.com/relaymind/voicegate/pkg/logging"
)

type fakeVerifier struct {
	err error
}

func (f fakeVerifier) Verify([]byte, string, string) error { return f.err }

type fakeReconciler struct {
	mu   sync.Mutex
	seen []telnyx.Event
	err  error
}

func (f *fakeReconciler) Reconcile(_ context.Context, evt telnyx.Event) (calls.Record, error) {
	f.mu.Lock()
	f.seen = append(f.seen, evt)
	f.mu.Unlock()
	return calls.Record{CallID: evt.CallControlID}, f.err
}

type fakeDispatcher struct {
	mu   sync.Mutex
	seen []telnyx.Event
}

func (f *fakeDispatcher) Dispatch(evt telnyx.Event) bool {
	f.mu.Lock()
	f.seen = append(f.seen, evt)
	f.mu.Unlock()
	return true
}

type fakeAudit struct {
	mu   sync.Mutex
	seen []compliance.AuditEvent
}

func (f *fakeAudit) RecordAsync(event compliance.AuditEvent) {
	f.mu.Lock()
	f.seen = append(f.seen, event)
	f.mu.Unlock()
}

func newTestHandler(verifier signatureVerifier) (*VoiceWebhookHandler, *fakeReconciler, *fakeDispatcher, *fakeAudit) {
	rec := &fakeReconciler{}
	disp := &fakeDispatcher{}
	audit := &fakeAudit{}
	h := NewVoiceWebhookHandler(VoiceWebhookConfig{
		Verifier:   verifier,
		Reconciler: rec,
		Dispatcher: disp,
		Audit:      audit,
		Logger:     logging.Default(),
	})
	return h, rec, disp, audit
}

func postVoice(t *testing.T, h *VoiceWebhookHandler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telnyx/voice", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleVoice(rec, req)
	return rec
}

func initiatedBody(callID string) []byte {
	return []byte(`{
		"data": {
			"event_type": "call.initiated",
			"id": "evt-1",
			"payload": {
				"call_control_id": "` + callID + `",
				"to": "+18005551234",
				"from": "+15550001111"
			}
		}
	}`)
}

func TestHandleVoiceInitiatedDispatchesBridge(t *testing.T) {
	h, rec, disp, audit := newTestHandler(fakeVerifier{})

	resp := postVoice(t, h, initiatedBody("cc_1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var ack map[string]bool
	if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack["success"] || !ack["received"] {
		t.Fatalf("unexpected ack %v", ack)
	}

	if len(rec.seen) != 1 || rec.seen[0].CallControlID != "cc_1" {
		t.Fatalf("expected one reconcile, got %v", rec.seen)
	}
	if len(disp.seen) != 1 || disp.seen[0].Kind != telnyx.EventInitiated {
		t.Fatalf("expected one bridge dispatch, got %v", disp.seen)
	}
	if len(audit.seen) != 1 || audit.seen[0].EventKind != "call.initiated" {
		t.Fatalf("expected audit of call.initiated, got %v", audit.seen)
	}
}

func TestHandleVoiceNonInitiatedSkipsBridge(t *testing.T) {
	h, rec, disp, _ := newTestHandler(fakeVerifier{})

	body := []byte(`{"event_type":"call.hangup","call_control_id":"cc_2","duration_sec":12}`)
	resp := postVoice(t, h, body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(rec.seen) != 1 || rec.seen[0].Kind != telnyx.EventHangup {
		t.Fatalf("expected hangup reconcile, got %v", rec.seen)
	}
	if len(disp.seen) != 0 {
		t.Fatalf("hangup must not dispatch a bridge, got %v", disp.seen)
	}
}

func TestHandleVoiceBadSignature(t *testing.T) {
	h, rec, disp, audit := newTestHandler(fakeVerifier{err: telnyx.ErrSignatureInvalid})

	resp := postVoice(t, h, initiatedBody("cc_3"))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if len(rec.seen) != 0 || len(disp.seen) != 0 {
		t.Fatal("rejected delivery must not reach reconcile or bridge")
	}
	// The raw delivery is still audited.
	if len(audit.seen) != 1 {
		t.Fatalf("expected audit entry, got %v", audit.seen)
	}
}

func TestHandleVoiceUnparseableBody(t *testing.T) {
	h, rec, _, audit := newTestHandler(fakeVerifier{})

	resp := postVoice(t, h, []byte(`{not json`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if len(rec.seen) != 0 {
		t.Fatal("unparseable delivery must not reach reconcile")
	}
	if len(audit.seen) != 1 || audit.seen[0].EventKind != "unparseable" {
		t.Fatalf("expected unparseable audit entry, got %v", audit.seen)
	}
}

func TestHandleVoiceUnknownEventStillAcked(t *testing.T) {
	h, rec, disp, _ := newTestHandler(fakeVerifier{})

	body := []byte(`{"event_type":"call.recording.saved","call_control_id":"cc_4"}`)
	resp := postVoice(t, h, body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for tolerated unknown kind, got %d", resp.Code)
	}
	if len(rec.seen) != 1 || rec.seen[0].Kind != telnyx.EventUnknown {
		t.Fatalf("unknown kinds still reconcile, got %v", rec.seen)
	}
	if len(disp.seen) != 0 {
		t.Fatal("unknown kinds must not bridge")
	}
}

func TestHandleVoiceEventWithoutCallLegStillAcked(t *testing.T) {
	h, rec, disp, audit := newTestHandler(fakeVerifier{})

	body := []byte(`{"data":{"event_type":"call.recording.saved","payload":{"recording_id":"rec-1"}}}`)
	resp := postVoice(t, h, body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for delivery without a call leg, got %d: %s", resp.Code, resp.Body.String())
	}

	var ack map[string]bool
	if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack["success"] || !ack["received"] {
		t.Fatalf("unexpected ack %v", ack)
	}

	if len(rec.seen) != 0 || len(disp.seen) != 0 {
		t.Fatal("delivery without a call leg must not reconcile or bridge")
	}
	if len(audit.seen) != 1 || audit.seen[0].EventKind != "call.recording.saved" {
		t.Fatalf("expected audit of call.recording.saved, got %v", audit.seen)
	}
}

func TestHandleVoiceReconcileFailureStillAcked(t *testing.T) {
	h, rec, disp, _ := newTestHandler(fakeVerifier{})
	rec.err = errors.New("db down")

	resp := postVoice(t, h, initiatedBody("cc_5"))
	if resp.Code != http.StatusOK {
		t.Fatalf("persistence failure must not change the ack, got %d", resp.Code)
	}
	if len(disp.seen) != 1 {
		t.Fatal("bridge dispatch must still happen")
	}
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	Health(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
