package bridge

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/relaymind/voicegate/internal/observability/metrics"
	"github.com/relaymind/voicegate/internal/telnyx"
	"github.com/relaymind/voicegate/internal/tenant"
	"github.com/relaymind/voicegate/pkg/logging"
)

var bridgeTracer = otel.Tracer("voicegate/bridge")

// Outcome is the terminal state of one bridge attempt.
type Outcome string

const (
	OutcomeBridged   Outcome = "bridged"
	OutcomeEscalated Outcome = "escalated"
	OutcomeMessage   Outcome = "message"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeDuplicate Outcome = "duplicate"
)

// callController is the slice of the call control client the bridge needs.
type callController interface {
	Answer(ctx context.Context, callControlID string) error
	Transfer(ctx context.Context, callControlID, to string) error
	Speak(ctx context.Context, callControlID string, req telnyx.SpeakRequest) error
	Hangup(ctx context.Context, callControlID string) error
}

type numberResolver interface {
	Resolve(ctx context.Context, dialed string) (tenant.Binding, error)
}

type claimGuard interface {
	Claim(ctx context.Context, callID string) bool
}

// OrchestratorConfig carries the tunables of the bridge state machine.
type OrchestratorConfig struct {
	AgentSIPDomain  string
	AnswerSettle    time.Duration
	HangupSettle    time.Duration
	FallbackVoice   string
	FallbackLang    string
	FallbackMessage string
	HoldMessage     string
}

// Orchestrator drives a newly initiated call to a terminal state: bridged to
// the tenant's voice agent, forwarded to the tenant's escalation line, or
// spoken an apology and hung up. Every path ends with the caller either
// connected or cleanly disconnected.
type Orchestrator struct {
	calls    callController
	resolver numberResolver
	guard    claimGuard
	metrics  *metrics.VoiceMetrics
	logger   *logging.Logger
	cfg      OrchestratorConfig
}

func NewOrchestrator(calls callController, resolver numberResolver, guard claimGuard, m *metrics.VoiceMetrics, logger *logging.Logger, cfg OrchestratorConfig) *Orchestrator {
	if calls == nil {
		panic("bridge: call controller required")
	}
	if resolver == nil {
		panic("bridge: resolver required")
	}
	if guard == nil {
		guard = NewMemoryGuard(0)
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.AgentSIPDomain == "" {
		cfg.AgentSIPDomain = "sip.agentvoice.ai"
	}
	if cfg.AnswerSettle <= 0 {
		cfg.AnswerSettle = 2 * time.Second
	}
	if cfg.HangupSettle <= 0 {
		cfg.HangupSettle = 6 * time.Second
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = "We're sorry, we could not connect your call right now. Please try again later."
	}
	if cfg.HoldMessage == "" {
		cfg.HoldMessage = cfg.FallbackMessage
	}
	return &Orchestrator{
		calls:    calls,
		resolver: resolver,
		guard:    guard,
		metrics:  m,
		logger:   logger.Named("bridge"),
		cfg:      cfg,
	}
}

// Bridge runs the state machine for one initiated call. It never returns an
// error: the webhook was acknowledged long before this runs, so failures
// only steer the call toward a fallback and get logged.
func (o *Orchestrator) Bridge(ctx context.Context, evt telnyx.Event) Outcome {
	ctx, span := bridgeTracer.Start(ctx, "bridge.call")
	defer span.End()
	span.SetAttributes(attribute.String("call.id", evt.CallControlID))

	outcome := o.run(ctx, evt)
	span.SetAttributes(attribute.String("bridge.outcome", string(outcome)))
	o.metrics.ObserveBridgeOutcome(string(outcome))
	o.logger.Info("bridge finished",
		"call_id", evt.CallControlID,
		"to", evt.To,
		"outcome", outcome,
	)
	return outcome
}

func (o *Orchestrator) run(ctx context.Context, evt telnyx.Event) Outcome {
	callID := evt.CallControlID
	if !o.guard.Claim(ctx, callID) {
		o.logger.Info("call already claimed, skipping bridge", "call_id", callID)
		return OutcomeDuplicate
	}

	binding, resolveErr := o.resolver.Resolve(ctx, evt.To)
	if resolveErr != nil && !errors.Is(resolveErr, tenant.ErrNotFound) {
		o.logger.Error("tenant resolution failed", "call_id", callID, "to", evt.To, "error", resolveErr)
	}

	if err := o.calls.Answer(ctx, callID); err != nil {
		// The call may already be answered or gone on the provider side.
		o.logger.Warn("answer failed, abandoning bridge", "call_id", callID, "error", err)
		return OutcomeAbandoned
	}

	if resolveErr != nil {
		return o.speakAndHangup(ctx, callID, o.cfg.FallbackMessage)
	}

	if !binding.HasAgent() {
		if binding.EscalationPhone != "" {
			if o.escalate(ctx, callID, binding) {
				return OutcomeEscalated
			}
			return o.speakAndHangup(ctx, callID, o.cfg.FallbackMessage)
		}
		return o.speakAndHangup(ctx, callID, o.cfg.HoldMessage)
	}

	// Let the provider's call state settle before moving media.
	if err := o.sleep(ctx, o.cfg.AnswerSettle); err != nil {
		return o.speakAndHangup(ctx, callID, o.cfg.FallbackMessage)
	}

	if o.transferToAgent(ctx, callID, evt.To, binding) {
		return OutcomeBridged
	}
	if binding.EscalationPhone != "" && o.escalate(ctx, callID, binding) {
		return OutcomeEscalated
	}
	return o.speakAndHangup(ctx, callID, o.cfg.FallbackMessage)
}

// transferToAgent walks the encoder fallbacks in order; the first accepted
// transfer wins.
func (o *Orchestrator) transferToAgent(ctx context.Context, callID, dialed string, binding tenant.Binding) bool {
	number, err := tenant.NormalizeE164(dialed)
	if err != nil {
		o.logger.Warn("dialed number unusable for transfer", "call_id", callID, "to", dialed, "error", err)
		return false
	}
	for _, target := range TransferTargets(number, o.cfg.AgentSIPDomain) {
		err := o.calls.Transfer(ctx, callID, target.URI)
		if err == nil {
			o.metrics.ObserveTransferAttempt(target.Format, "ok")
			o.logger.Info("call bridged to agent",
				"call_id", callID,
				"business_id", binding.BusinessID,
				"agent_id", binding.AgentID,
				"format", target.Format,
			)
			return true
		}
		o.metrics.ObserveTransferAttempt(target.Format, "failed")
		o.logger.Warn("transfer attempt failed",
			"call_id", callID,
			"format", target.Format,
			"error", err,
		)
	}
	return false
}

func (o *Orchestrator) escalate(ctx context.Context, callID string, binding tenant.Binding) bool {
	number, err := tenant.NormalizeE164(binding.EscalationPhone)
	if err != nil {
		o.logger.Warn("escalation phone unusable",
			"call_id", callID,
			"business_id", binding.BusinessID,
			"error", err,
		)
		return false
	}
	if err := o.calls.Transfer(ctx, callID, number); err != nil {
		o.logger.Warn("escalation transfer failed", "call_id", callID, "error", err)
		return false
	}
	o.logger.Info("call escalated", "call_id", callID, "business_id", binding.BusinessID)
	return true
}

// speakAndHangup is the terminal fallback. Failures here are logged but
// final; the hangup is attempted regardless so the caller is never left on
// an answered, silent line.
func (o *Orchestrator) speakAndHangup(ctx context.Context, callID, message string) Outcome {
	err := o.calls.Speak(ctx, callID, telnyx.SpeakRequest{
		Payload:  message,
		Voice:    o.cfg.FallbackVoice,
		Language: o.cfg.FallbackLang,
	})
	if err != nil {
		o.logger.Warn("fallback speak failed", "call_id", callID, "error", err)
	} else if sleepErr := o.sleep(ctx, o.cfg.HangupSettle); sleepErr != nil {
		o.logger.Warn("fallback settle interrupted", "call_id", callID, "error", sleepErr)
	}
	if err := o.calls.Hangup(ctx, callID); err != nil {
		o.logger.Warn("hangup failed", "call_id", callID, "error", err)
	}
	return OutcomeMessage
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
