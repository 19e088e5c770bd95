package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wavecare-ai/wavecare-voice/internal/appointments"
	"github.com/wavecare-ai/wavecare-voice/internal/calls"
	"github.com/wavecare-ai/wavecare-voice/internal/doctors"
	"github.com/wavecare-ai/wavecare-voice/internal/observability/metrics"
	"github.com/wavecare-ai/wavecare-voice/pkg/logging"
)

// CallEvent is one webhook invocation, already validated at the HTTP
// boundary: the call id is always present.
type CallEvent struct {
	CallID     string
	FromNumber string
	ToNumber   string
	// Speech is the transcribed caller utterance, empty when nothing was
	// captured or the event is lifecycle-only.
	Speech string
	// Status is the provider lifecycle status, e.g. "completed"; empty or
	// non-terminal values are ignored.
	Status string
}

// SessionStore is the session persistence the orchestrator depends on.
type SessionStore interface {
	LoadOrCreate(ctx context.Context, callID, fromNumber, toNumber string) (*calls.Session, bool, error)
	AppendTurn(ctx context.Context, callID string, turn calls.Turn) error
	SetStatus(ctx context.Context, callID, status string, endTime time.Time) (bool, error)
	MarkBooked(ctx context.Context, callID string) (bool, error)
}

// DoctorDirectory reads the active doctors advertised to callers.
type DoctorDirectory interface {
	ListActive(ctx context.Context) ([]doctors.Doctor, error)
	FindActive(ctx context.Context, name, specialization string) (*doctors.Doctor, error)
}

// AppointmentBooker commits appointments.
type AppointmentBooker interface {
	Create(ctx context.Context, req *appointments.CreateRequest) (*appointments.Appointment, error)
}

// CompletionGateway produces a completion for a prompt, or fails.
type CompletionGateway interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LiveFeed receives best-effort notifications for the dashboard's live view.
type LiveFeed interface {
	BroadcastTurn(callID string, turn calls.Turn)
	BroadcastBooking(callID string)
	BroadcastStatus(callID, status string)
}

// Spoken lines for outcomes the completion provider does not author.
const (
	repromptLine     = "I didn't catch that. Could you please repeat?"
	gatewayApology   = "I'm sorry, I'm having trouble hearing myself think right now. Could you say that again?"
	storeFailureLine = "I apologize, something went wrong on our end. Please call back in a few minutes."
)

// Orchestrator drives one conversational turn per webhook invocation. It owns
// no state of its own: every invocation reconstructs the session from the
// store, so concurrent webhooks synchronize only through store operations.
type Orchestrator struct {
	store        SessionStore
	directory    DoctorDirectory
	appointments AppointmentBooker
	gateway      CompletionGateway
	live         *calls.LiveCache
	feed         LiveFeed
	metrics      *metrics.VoiceMetrics
	logger       *logging.Logger

	practiceName  string
	timezone      *time.Location
	callbackPath  string
	speechTimeout int
	now           func() time.Time
}

// OrchestratorConfig configures the Orchestrator.
type OrchestratorConfig struct {
	Store        SessionStore
	Directory    DoctorDirectory
	Appointments AppointmentBooker
	Gateway      CompletionGateway
	// Live and Feed are optional; when set they mirror turns to Redis and
	// the websocket live view.
	Live    *calls.LiveCache
	Feed    LiveFeed
	Metrics *metrics.VoiceMetrics
	Logger  *logging.Logger

	PracticeName  string
	Timezone      *time.Location
	CallbackPath  string
	SpeechTimeout int
	Now           func() time.Time
}

// NewOrchestrator creates the call conversation orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "/webhooks/twilio/voice"
	}
	if cfg.SpeechTimeout <= 0 {
		cfg.SpeechTimeout = 5
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.PracticeName == "" {
		cfg.PracticeName = "our medical practice"
	}
	return &Orchestrator{
		store:         cfg.Store,
		directory:     cfg.Directory,
		appointments:  cfg.Appointments,
		gateway:       cfg.Gateway,
		live:          cfg.Live,
		feed:          cfg.Feed,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		practiceName:  cfg.PracticeName,
		timezone:      cfg.Timezone,
		callbackPath:  cfg.CallbackPath,
		speechTimeout: cfg.SpeechTimeout,
		now:           cfg.Now,
	}
}

// ProcessEvent runs the state machine for one webhook event and always
// returns a response document: even unrecoverable failures map to an apology
// plus hangup, never to an empty-handed caller.
func (o *Orchestrator) ProcessEvent(ctx context.Context, ev CallEvent) *TwiML {
	sess, created, err := o.store.LoadOrCreate(ctx, ev.CallID, ev.FromNumber, ev.ToNumber)
	if err != nil {
		o.logger.Error("failed to load session", "error", err, "call_id", ev.CallID)
		return speakAndHangup(storeFailureLine)
	}
	if created {
		o.logger.Info("call started", "call_id", ev.CallID, "from", ev.FromNumber)
		o.trackStart(ctx, sess)
	}

	// Lifecycle transitions take precedence: a first event that is already
	// terminal (e.g. no-answer) creates and immediately closes the session.
	if calls.TerminalStatus(ev.Status) {
		return o.handleLifecycle(ctx, sess, ev.Status)
	}

	// A late utterance for a closed call: acknowledge and stay out of the way.
	if sess.Status != calls.StatusActive {
		return emptyResponse()
	}

	if created {
		greeting := fmt.Sprintf("Hello! Thank you for calling %s. How can I help you today?", o.practiceName)
		return o.speakThenListen(greeting, ev.CallID)
	}

	if ev.Speech == "" {
		return o.speakThenListen(repromptLine, ev.CallID)
	}

	return o.processTurn(ctx, sess, ev.Speech)
}

// handleLifecycle closes the session exactly once; duplicate terminal
// callbacks find nothing to update and are acknowledged silently.
func (o *Orchestrator) handleLifecycle(ctx context.Context, sess *calls.Session, status string) *TwiML {
	endTime := o.now()
	changed, err := o.store.SetStatus(ctx, sess.CallID, status, endTime)
	if err != nil {
		o.logger.Error("failed to set terminal status", "error", err, "call_id", sess.CallID, "status", status)
		return emptyResponse()
	}
	if changed {
		o.logger.Info("call ended", "call_id", sess.CallID, "status", status)
		o.trackEnd(ctx, sess.CallID, status)
	}
	return emptyResponse()
}

// processTurn runs one full conversational turn: persist the caller's words,
// complete, parse, act, respond.
func (o *Orchestrator) processTurn(ctx context.Context, sess *calls.Session, speech string) *TwiML {
	callerTurn := calls.Turn{Speaker: calls.SpeakerCaller, Message: speech, Timestamp: o.now()}
	if doc, ok := o.appendTurn(ctx, sess, callerTurn); !ok {
		return doc
	}

	completion := o.complete(ctx, sess)

	assistantTurn := calls.Turn{Speaker: calls.SpeakerAssistant, Message: completion, Timestamp: o.now()}
	if doc, ok := o.appendTurn(ctx, sess, assistantTurn); !ok {
		return doc
	}

	switch d := ParseDirective(completion).(type) {
	case BookingDirective:
		return o.handleBooking(ctx, sess, d)
	case EndCallDirective:
		o.logger.Info("assistant ended call", "call_id", sess.CallID)
		return speakAndHangup(d.ClosingMessage)
	default:
		return o.speakThenListen(completion, sess.CallID)
	}
}

// complete asks the completion provider for the assistant's next line. Once a
// booking has been committed the narrower follow-up prompt is used, so the
// model cannot emit booking fields a second time. Gateway failures degrade to
// a fixed apology that flows through the turn like any other completion.
func (o *Orchestrator) complete(ctx context.Context, sess *calls.Session) string {
	now := o.now().In(o.timezone)

	var prompt Prompt
	if sess.AppointmentBooked {
		prompt = BuildFollowUpPrompt(now, o.practiceName, sess)
	} else {
		directory, err := o.directory.ListActive(ctx)
		if err != nil {
			o.logger.Error("failed to load doctor directory", "error", err, "call_id", sess.CallID)
			directory = nil
		}
		prompt = BuildPrompt(now, o.practiceName, directory, sess)
	}

	text, err := o.gateway.Complete(ctx, prompt)
	if err != nil {
		o.logger.Warn("completion gateway failed, using apology", "error", err, "call_id", sess.CallID)
		o.metrics.ObserveLLMFailure()
		return gatewayApology
	}
	return text
}

// handleBooking validates the directive against the directory and weekly
// availability, then commits the appointment exactly once per call.
func (o *Orchestrator) handleBooking(ctx context.Context, sess *calls.Session, d BookingDirective) *TwiML {
	doc, err := o.directory.FindActive(ctx, d.DoctorName, d.Specialization)
	if err != nil {
		if errors.Is(err, doctors.ErrNotFound) {
			reply := fmt.Sprintf("I'm sorry, I couldn't find a doctor named %s with specialization %s. Would you like to try a different doctor?", d.DoctorName, d.Specialization)
			return o.speakThenListen(reply, sess.CallID)
		}
		o.logger.Error("doctor lookup failed", "error", err, "call_id", sess.CallID)
		return speakAndHangup(storeFailureLine)
	}

	if !doctors.IsAvailable(doc, d.Weekday(), d.Time) {
		reply := fmt.Sprintf("I'm sorry, %s isn't available %s at %s. Would another time work?", doc.Name, spokenDate(d.Date), d.Time)
		return o.speakThenListen(reply, sess.CallID)
	}

	_, err = o.appointments.Create(ctx, &appointments.CreateRequest{
		PatientName:       d.PatientName,
		PatientPhone:      d.PatientPhone,
		DoctorID:          doc.ID,
		AppointmentDate:   d.Date,
		AppointmentTime:   d.Time,
		Notes:             fmt.Sprintf("Booked via AI call (CallSid: %s)", sess.CallID),
		OriginatingCallID: sess.CallID,
	})
	if err != nil {
		if errors.Is(err, appointments.ErrDuplicateBooking) {
			// A duplicate delivery reached the booking step twice; the first
			// one won. Do not re-announce the booking.
			o.logger.Info("duplicate booking absorbed", "call_id", sess.CallID)
			return o.speakThenListen("You're all set — that appointment is already booked. Is there anything else I can help you with?", sess.CallID)
		}
		o.logger.Error("failed to book appointment", "error", err, "call_id", sess.CallID)
		return speakAndHangup(storeFailureLine)
	}

	if _, err := o.store.MarkBooked(ctx, sess.CallID); err != nil {
		// The appointment row exists and its unique index blocks a re-book,
		// so a failed flag write only costs the narrower follow-up prompt.
		o.logger.Error("failed to mark session booked", "error", err, "call_id", sess.CallID)
	}
	sess.AppointmentBooked = true
	o.metrics.ObserveBooking()
	o.trackBooking(ctx, sess.CallID)
	o.logger.Info("appointment booked",
		"call_id", sess.CallID,
		"doctor", doc.Name,
		"date", d.Date,
		"time", d.Time,
	)

	reply := fmt.Sprintf("Okay, I have booked your appointment with %s, our %s, on %s at %s. Is there anything else I can help you with?",
		doc.Name, doc.Specialization, spokenDate(d.Date), d.Time)
	return o.speakThenListen(reply, sess.CallID)
}

// appendTurn persists a turn and mirrors it to the live view. A closed
// session (terminal callback raced this turn) ends the exchange quietly; a
// store failure ends the call defensively since no state can be trusted.
func (o *Orchestrator) appendTurn(ctx context.Context, sess *calls.Session, turn calls.Turn) (*TwiML, bool) {
	if err := o.store.AppendTurn(ctx, sess.CallID, turn); err != nil {
		if errors.Is(err, calls.ErrSessionClosed) {
			o.logger.Info("turn dropped, session already terminal", "call_id", sess.CallID)
			return emptyResponse(), false
		}
		o.logger.Error("failed to append turn", "error", err, "call_id", sess.CallID)
		return speakAndHangup(storeFailureLine), false
	}
	sess.Transcript = append(sess.Transcript, turn)
	o.trackTurn(ctx, sess.CallID, turn)
	return nil, true
}

func (o *Orchestrator) speakThenListen(text, callID string) *TwiML {
	action := fmt.Sprintf("%s?callSid=%s", o.callbackPath, callID)
	return speakAndGather(text, action, o.speechTimeout)
}

// spokenDate renders 2026-09-07 as "Monday, September 7".
func spokenDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2")
}

// ----- live view mirroring (best effort, never fails the turn) -----

func (o *Orchestrator) trackStart(ctx context.Context, sess *calls.Session) {
	if o.live != nil {
		if err := o.live.TrackCallStart(ctx, sess); err != nil {
			o.logger.Warn("live cache start failed", "error", err, "call_id", sess.CallID)
		}
	}
}

func (o *Orchestrator) trackTurn(ctx context.Context, callID string, turn calls.Turn) {
	if o.live != nil {
		if err := o.live.TrackTurn(ctx, callID, turn); err != nil {
			o.logger.Warn("live cache turn failed", "error", err, "call_id", callID)
		}
	}
	if o.feed != nil {
		o.feed.BroadcastTurn(callID, turn)
	}
}

func (o *Orchestrator) trackBooking(ctx context.Context, callID string) {
	if o.live != nil {
		if err := o.live.TrackBooked(ctx, callID); err != nil {
			o.logger.Warn("live cache booking failed", "error", err, "call_id", callID)
		}
	}
	if o.feed != nil {
		o.feed.BroadcastBooking(callID)
	}
}

func (o *Orchestrator) trackEnd(ctx context.Context, callID, status string) {
	if o.live != nil {
		if err := o.live.TrackCallEnd(ctx, callID, status); err != nil {
			o.logger.Warn("live cache end failed", "error", err, "call_id", callID)
		}
	}
	if o.feed != nil {
		o.feed.BroadcastStatus(callID, status)
	}
}
