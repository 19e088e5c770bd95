package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestVoiceMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewVoiceMetrics(reg)
	m.ObserveInbound("utterance", "ok")
	m.ObserveTurnLatency("utterance", 0.5)
	m.ObserveBooking()
	m.ObserveBooking()
	m.ObserveLLMFailure()

	var out dto.Metric
	if err := m.bookingsTotal.Write(&out); err != nil {
		t.Fatalf("write bookings counter: %v", err)
	}
	if got := out.GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 bookings observed, got %v", got)
	}

	out.Reset()
	if err := m.llmFailures.Write(&out); err != nil {
		t.Fatalf("write llm failures counter: %v", err)
	}
	if got := out.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected 1 llm failure observed, got %v", got)
	}
}

func TestVoiceMetricsNilSafe(t *testing.T) {
	var m *VoiceMetrics
	m.ObserveInbound("event", "status")
	m.ObserveTurnLatency("event", 0.1)
	m.ObserveBooking()
	m.ObserveLLMFailure()
}
