package telnyx

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// EventKind is the canonical call lifecycle event type.
type EventKind string

const (
	EventInitiated EventKind = "initiated"
	EventAnswered  EventKind = "answered"
	EventEnded     EventKind = "ended"
	EventHangup    EventKind = "hangup"
	EventUnknown   EventKind = "unknown"
)

// Event is a normalized call lifecycle event from a webhook delivery.
type Event struct {
	Kind EventKind
	// RawType preserves the provider's event_type for logging and audit.
	RawType         string
	EventID         string
	CallControlID   string
	CallLegID       string
	To              string
	From            string
	DurationSeconds int
	OccurredAt      time.Time
}

// ErrEmptyEvent indicates a structurally valid envelope with no call payload.
var ErrEmptyEvent = errors.New("telnyx: event payload missing call_control_id")

type eventPayload struct {
	CallControlID   string `json:"call_control_id"`
	CallLegID       string `json:"call_leg_id"`
	To              string `json:"to"`
	From            string `json:"from"`
	Direction       string `json:"direction"`
	HangupCause     string `json:"hangup_cause"`
	DurationSec     int    `json:"duration_sec"`
	DurationSeconds int    `json:"duration_seconds"`
}

type eventEnvelope struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// ParseEvent normalizes a webhook body into an Event. Telnyx has shipped both
// a flat envelope and one wrapped in a "data" object; both are accepted.
// Unknown event types normalize to EventUnknown; only unparseable JSON fails.
func ParseEvent(body []byte) (Event, error) {
	var wrapper struct {
		Data eventEnvelope `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Data.EventType != "" {
		return fromEnvelope(wrapper.Data)
	}

	var flat eventEnvelope
	if err := json.Unmarshal(body, &flat); err != nil {
		return Event{}, err
	}
	if flat.EventType != "" && len(flat.Payload) > 0 {
		return fromEnvelope(flat)
	}

	// Oldest shape: payload fields at the top level next to event_type.
	var bare struct {
		eventPayload
		EventType  string    `json:"event_type"`
		OccurredAt time.Time `json:"occurred_at"`
	}
	if err := json.Unmarshal(body, &bare); err != nil {
		return Event{}, err
	}
	evt := Event{
		Kind:            normalizeKind(bare.EventType),
		RawType:         bare.EventType,
		CallControlID:   bare.CallControlID,
		CallLegID:       bare.CallLegID,
		To:              bare.To,
		From:            bare.From,
		DurationSeconds: pickDuration(bare.eventPayload),
		OccurredAt:      bare.OccurredAt,
	}
	if evt.CallControlID == "" {
		return evt, ErrEmptyEvent
	}
	return evt, nil
}

func fromEnvelope(env eventEnvelope) (Event, error) {
	evt := Event{
		Kind:       normalizeKind(env.EventType),
		RawType:    env.EventType,
		EventID:    env.ID,
		OccurredAt: env.OccurredAt,
	}
	if len(env.Payload) > 0 {
		var p eventPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{}, err
		}
		evt.CallControlID = p.CallControlID
		evt.CallLegID = p.CallLegID
		evt.To = p.To
		evt.From = p.From
		evt.DurationSeconds = pickDuration(p)
	}
	if evt.CallControlID == "" {
		return evt, ErrEmptyEvent
	}
	return evt, nil
}

func normalizeKind(eventType string) EventKind {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "call.initiated":
		return EventInitiated
	case "call.answered":
		return EventAnswered
	case "call.ended":
		return EventEnded
	case "call.hangup":
		return EventHangup
	default:
		return EventUnknown
	}
}

func pickDuration(p eventPayload) int {
	if p.DurationSec > 0 {
		return p.DurationSec
	}
	return p.DurationSeconds
}

// Terminal reports whether the event ends the call.
func (e Event) Terminal() bool {
	return e.Kind == EventEnded || e.Kind == EventHangup
}
