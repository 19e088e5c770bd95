package metrics

import "github.com/prometheus/client_golang/prometheus"

// VoiceMetrics exposes counters/histograms for the voice webhook flow.
type VoiceMetrics struct {
	inboundTotal  *prometheus.CounterVec
	turnLatency   *prometheus.HistogramVec
	bookingsTotal prometheus.Counter
	llmFailures   prometheus.Counter
}

func NewVoiceMetrics(reg prometheus.Registerer) *VoiceMetrics {
	m := &VoiceMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wavecare",
			Subsystem: "voice",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound Twilio voice webhooks",
		}, []string{"event_type", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wavecare",
			Subsystem: "voice",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one conversational turn, webhook receipt to TwiML write",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		bookingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wavecare",
			Subsystem: "voice",
			Name:      "bookings_total",
			Help:      "Appointments committed by the call orchestrator",
		}),
		llmFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wavecare",
			Subsystem: "voice",
			Name:      "llm_failures_total",
			Help:      "Completion gateway failures answered with the fallback apology",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.turnLatency, m.bookingsTotal, m.llmFailures)
	return m
}

func (m *VoiceMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *VoiceMetrics) ObserveTurnLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(eventType).Observe(seconds)
}

func (m *VoiceMetrics) ObserveBooking() {
	if m == nil {
		return
	}
	m.bookingsTotal.Inc()
}

func (m *VoiceMetrics) ObserveLLMFailure() {
	if m == nil {
		return
	}
	m.llmFailures.Inc()
}
