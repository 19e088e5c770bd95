package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wavecare-ai/wavecare-voice/internal/calls"
	"github.com/wavecare-ai/wavecare-voice/internal/conversation"
	"github.com/wavecare-ai/wavecare-voice/internal/observability/metrics"
	"github.com/wavecare-ai/wavecare-voice/pkg/logging"
)

var voiceTracer = otel.Tracer("wavecare.internal.http.voice")

// callProcessor runs one conversational turn and always yields a response
// document.
type callProcessor interface {
	ProcessEvent(ctx context.Context, ev conversation.CallEvent) *conversation.TwiML
}

// TwilioVoiceHandler terminates the Twilio voice webhook. It validates and
// parses the form payload, hands the event to the orchestrator, and writes
// the TwiML the orchestrator produced. All conversational decisions live in
// the orchestrator; this handler only speaks HTTP.
type TwilioVoiceHandler struct {
	processor callProcessor
	metrics   *metrics.VoiceMetrics
	logger    *logging.Logger

	// authToken enables signature checking when set; publicBaseURL is the
	// externally visible origin Twilio signed against.
	authToken     string
	publicBaseURL string
}

// NewTwilioVoiceHandler creates the webhook handler. An empty authToken
// disables signature validation (local development).
func NewTwilioVoiceHandler(processor callProcessor, m *metrics.VoiceMetrics, logger *logging.Logger, authToken, publicBaseURL string) *TwilioVoiceHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioVoiceHandler{
		processor:     processor,
		metrics:       m,
		logger:        logger.Component("twilio_voice"),
		authToken:     authToken,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

func (h *TwilioVoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := voiceTracer.Start(r.Context(), "voice.webhook")
	defer span.End()
	start := time.Now()

	if err := r.ParseForm(); err != nil {
		h.logger.Warn("malformed webhook form", "error", err)
		h.observe("invalid", "error", start)
		http.Error(w, "malformed form payload", http.StatusBadRequest)
		return
	}

	// Twilio posts CallSid in the body; our own Gather action echoes it as a
	// query parameter so redirected turns stay on the same session.
	callSid := r.PostFormValue("CallSid")
	if callSid == "" {
		callSid = r.URL.Query().Get("callSid")
	}
	if callSid == "" {
		h.logger.Warn("webhook missing call sid")
		h.observe("invalid", "error", start)
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}

	// Twilio signs the full URL it posted to, query string included, so the
	// Gather action's callSid parameter is part of the signed payload.
	if h.authToken != "" && !ValidateTwilioSignature(r, h.authToken, h.publicBaseURL+r.URL.RequestURI()) {
		h.logger.Warn("webhook signature rejected", "call_id", callSid)
		h.observe("invalid", "error", start)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	ev := conversation.CallEvent{
		CallID:     callSid,
		FromNumber: r.PostFormValue("From"),
		ToNumber:   r.PostFormValue("To"),
		Speech:     strings.TrimSpace(r.PostFormValue("SpeechResult")),
		Status:     r.PostFormValue("CallStatus"),
	}

	span.SetAttributes(
		attribute.String("wavecare.call_sid", callSid),
		attribute.String("wavecare.call_status", ev.Status),
		attribute.Bool("wavecare.has_speech", ev.Speech != ""),
	)

	doc := h.processor.ProcessEvent(ctx, ev)
	out, err := doc.Render()
	if err != nil {
		h.logger.Error("failed to render twiml", "error", err, "call_id", callSid)
		h.observe(eventType(ev), "error", start)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.observe(eventType(ev), "ok", start)
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// eventType labels the webhook for metrics.
func eventType(ev conversation.CallEvent) string {
	switch {
	case calls.TerminalStatus(ev.Status):
		return "lifecycle"
	case ev.Speech != "":
		return "turn"
	default:
		return "connect"
	}
}

func (h *TwilioVoiceHandler) observe(event, status string, start time.Time) {
	h.metrics.ObserveInbound(event, status)
	h.metrics.ObserveTurnLatency(event, time.Since(start).Seconds())
}
