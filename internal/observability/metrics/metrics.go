package metrics

import "github.com/prometheus/client_golang/prometheus"

// VoiceMetrics exposes counters/histograms for the inbound call pipeline.
type VoiceMetrics struct {
	eventsTotal      *prometheus.CounterVec
	webhookLatency   *prometheus.HistogramVec
	bridgeOutcomes   *prometheus.CounterVec
	transferAttempts *prometheus.CounterVec
}

func NewVoiceMetrics(reg prometheus.Registerer) *VoiceMetrics {
	m := &VoiceMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicegate",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total call webhooks received by event kind",
		}, []string{"event_kind"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicegate",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of call webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_kind"}),
		bridgeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicegate",
			Subsystem: "bridge",
			Name:      "outcomes_total",
			Help:      "Terminal bridge outcomes per call",
		}, []string{"outcome"}),
		transferAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicegate",
			Subsystem: "bridge",
			Name:      "transfer_attempts_total",
			Help:      "SIP transfer attempts by URI format and result",
		}, []string{"format", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.webhookLatency, m.bridgeOutcomes, m.transferAttempts)
	return m
}

func (m *VoiceMetrics) ObserveEvent(eventKind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventKind).Inc()
}

func (m *VoiceMetrics) ObserveWebhookLatency(eventKind string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventKind).Observe(seconds)
}

func (m *VoiceMetrics) ObserveBridgeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.bridgeOutcomes.WithLabelValues(outcome).Inc()
}

func (m *VoiceMetrics) ObserveTransferAttempt(format, status string) {
	if m == nil {
		return
	}
	m.transferAttempts.WithLabelValues(format, status).Inc()
}
