package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wavecare-ai/wavecare-voice/internal/appointments"
	"github.com/wavecare-ai/wavecare-voice/internal/calls"
	"github.com/wavecare-ai/wavecare-voice/internal/doctors"
)

type fakeStore struct {
	sessions map[string]*calls.Session

	appendErr  error
	createdIDs []string
	statusSets []string
	marked     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*calls.Session)}
}

func (s *fakeStore) LoadOrCreate(_ context.Context, callID, from, to string) (*calls.Session, bool, error) {
	if sess, ok := s.sessions[callID]; ok {
		return sess, false, nil
	}
	sess := &calls.Session{
		CallID:     callID,
		FromNumber: from,
		ToNumber:   to,
		Status:     calls.StatusActive,
		StartTime:  time.Now().UTC(),
	}
	s.sessions[callID] = sess
	s.createdIDs = append(s.createdIDs, callID)
	return sess, true, nil
}

func (s *fakeStore) AppendTurn(_ context.Context, callID string, turn calls.Turn) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	sess, ok := s.sessions[callID]
	if !ok {
		return calls.ErrNotFound
	}
	if sess.Status != calls.StatusActive {
		return calls.ErrSessionClosed
	}
	sess.Transcript = append(sess.Transcript, turn)
	return nil
}

func (s *fakeStore) SetStatus(_ context.Context, callID, status string, _ time.Time) (bool, error) {
	sess, ok := s.sessions[callID]
	if !ok || sess.Status != calls.StatusActive {
		return false, nil
	}
	sess.Status = status
	s.statusSets = append(s.statusSets, callID+":"+status)
	return true, nil
}

func (s *fakeStore) MarkBooked(_ context.Context, callID string) (bool, error) {
	sess, ok := s.sessions[callID]
	if !ok {
		return false, calls.ErrNotFound
	}
	if sess.AppointmentBooked {
		return false, nil
	}
	sess.AppointmentBooked = true
	s.marked = append(s.marked, callID)
	return true, nil
}

type fakeDirectory struct {
	active  []doctors.Doctor
	findErr error
}

func (d *fakeDirectory) ListActive(context.Context) ([]doctors.Doctor, error) {
	return d.active, nil
}

func (d *fakeDirectory) FindActive(_ context.Context, name, spec string) (*doctors.Doctor, error) {
	if d.findErr != nil {
		return nil, d.findErr
	}
	for i := range d.active {
		if strings.EqualFold(d.active[i].Name, name) && strings.EqualFold(d.active[i].Specialization, spec) {
			return &d.active[i], nil
		}
	}
	return nil, doctors.ErrNotFound
}

type fakeBooker struct {
	created []*appointments.CreateRequest
	err     error
}

func (b *fakeBooker) Create(_ context.Context, req *appointments.CreateRequest) (*appointments.Appointment, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.created = append(b.created, req)
	return &appointments.Appointment{ID: "appt-1", DoctorID: req.DoctorID}, nil
}

type fakeGateway struct {
	reply   string
	err     error
	prompts []Prompt
}

func (g *fakeGateway) Complete(_ context.Context, prompt Prompt) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func drSmith() doctors.Doctor {
	return doctors.Doctor{
		ID:             "doc-1",
		Name:           "Dr. Smith",
		Specialization: "Cardiology",
		IsActive:       true,
		AvailableSlots: []doctors.WeeklySlot{
			{Day: "Monday", StartTime: "09:00", EndTime: "17:00"},
		},
	}
}

func testOrchestrator(store *fakeStore, dir *fakeDirectory, booker *fakeBooker, gw *fakeGateway) *Orchestrator {
	return NewOrchestrator(OrchestratorConfig{
		Store:        store,
		Directory:    dir,
		Appointments: booker,
		Gateway:      gw,
		PracticeName: "Wavecare Clinic",
		Now:          func() time.Time { return time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC) },
	})
}

func renderOf(t *testing.T, doc *TwiML) string {
	t.Helper()
	out, err := doc.Render()
	if err != nil {
		t.Fatalf("render twiml: %v", err)
	}
	return out
}

func TestProcessEventNewCallGreets(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(store, &fakeDirectory{}, &fakeBooker{}, &fakeGateway{})

	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", FromNumber: "+15550001"})

	out := renderOf(t, doc)
	if !strings.Contains(out, "Wavecare Clinic") {
		t.Errorf("greeting should name the practice, got %s", out)
	}
	if !strings.Contains(out, "<Gather") || !strings.Contains(out, "callSid=CA1") {
		t.Errorf("greeting should gather back to the same call, got %s", out)
	}
	if len(store.createdIDs) != 1 {
		t.Errorf("expected one session created, got %d", len(store.createdIDs))
	}
}

func TestProcessEventNoSpeechReprompts(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{reply: "should not be called"}
	o := testOrchestrator(store, &fakeDirectory{}, &fakeBooker{}, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})

	out := renderOf(t, doc)
	if !strings.Contains(out, "didn&#39;t catch that") && !strings.Contains(out, "didn't catch that") {
		t.Errorf("expected reprompt, got %s", out)
	}
	if len(gw.prompts) != 0 {
		t.Error("silence must not reach the completion gateway")
	}
}

func TestProcessEventPlainReplySpokenAndPersisted(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{reply: "We are open Monday through Friday."}
	o := testOrchestrator(store, &fakeDirectory{active: []doctors.Doctor{drSmith()}}, &fakeBooker{}, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "What are your hours?"})

	out := renderOf(t, doc)
	if !strings.Contains(out, "open Monday through Friday") {
		t.Errorf("expected completion spoken, got %s", out)
	}
	sess := store.sessions["CA1"]
	if len(sess.Transcript) != 2 {
		t.Fatalf("expected caller + assistant turns, got %d", len(sess.Transcript))
	}
	if sess.Transcript[0].Speaker != calls.SpeakerCaller || sess.Transcript[1].Speaker != calls.SpeakerAssistant {
		t.Errorf("turn speakers wrong: %+v", sess.Transcript)
	}
}

func TestProcessEventBookingHappyPath(t *testing.T) {
	store := newFakeStore()
	booker := &fakeBooker{}
	// 2026-09-07 is a Monday, inside Dr. Smith's slot.
	gw := &fakeGateway{reply: "BOOK_APPOINTMENT:Dr. Smith:Cardiology:2026-09-07:10:30:Jane Roe:+15550002"}
	o := testOrchestrator(store, &fakeDirectory{active: []doctors.Doctor{drSmith()}}, booker, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "Book me with Dr. Smith"})

	out := renderOf(t, doc)
	if !strings.Contains(out, "booked your appointment with Dr. Smith") {
		t.Errorf("expected confirmation, got %s", out)
	}
	if !strings.Contains(out, "<Gather") {
		t.Errorf("booking confirmation should keep listening, got %s", out)
	}
	if len(booker.created) != 1 {
		t.Fatalf("expected one appointment, got %d", len(booker.created))
	}
	req := booker.created[0]
	if req.DoctorID != "doc-1" || req.OriginatingCallID != "CA1" {
		t.Errorf("unexpected create request: %+v", req)
	}
	if !strings.Contains(req.Notes, "CA1") {
		t.Errorf("notes should carry the call sid, got %q", req.Notes)
	}
	if !store.sessions["CA1"].AppointmentBooked {
		t.Error("session should be flagged booked")
	}
}

func TestProcessEventBookingOutsideAvailability(t *testing.T) {
	store := newFakeStore()
	booker := &fakeBooker{}
	// 2026-09-08 is a Tuesday; Dr. Smith only works Mondays.
	gw := &fakeGateway{reply: "BOOK_APPOINTMENT:Dr. Smith:Cardiology:2026-09-08:10:30:Jane Roe:+15550002"}
	o := testOrchestrator(store, &fakeDirectory{active: []doctors.Doctor{drSmith()}}, booker, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "Book me Tuesday"})

	out := renderOf(t, doc)
	if !strings.Contains(out, "isn&#39;t available") && !strings.Contains(out, "isn't available") {
		t.Errorf("expected availability refusal, got %s", out)
	}
	if len(booker.created) != 0 {
		t.Error("no appointment should be created outside availability")
	}
}

func TestProcessEventBookingUnknownDoctor(t *testing.T) {
	store := newFakeStore()
	booker := &fakeBooker{}
	gw := &fakeGateway{reply: "BOOK_APPOINTMENT:Dr. Nobody:Dermatology:2026-09-07:10:30:Jane Roe:+15550002"}
	o := testOrchestrator(store, &fakeDirectory{active: []doctors.Doctor{drSmith()}}, booker, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "Book me with Dr. Nobody"})

	out := renderOf(t, doc)
	if !strings.Contains(out, "couldn&#39;t find a doctor") && !strings.Contains(out, "couldn't find a doctor") {
		t.Errorf("expected unknown-doctor reply, got %s", out)
	}
	if len(booker.created) != 0 {
		t.Error("no appointment should be created for an unknown doctor")
	}
}

func TestProcessEventDuplicateBookingAbsorbed(t *testing.T) {
	store := newFakeStore()
	booker := &fakeBooker{err: appointments.ErrDuplicateBooking}
	gw := &fakeGateway{reply: "BOOK_APPOINTMENT:Dr. Smith:Cardiology:2026-09-07:10:30:Jane Roe:+15550002"}
	o := testOrchestrator(store, &fakeDirectory{active: []doctors.Doctor{drSmith()}}, booker, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "Book me again"})

	out := renderOf(t, doc)
	if !strings.Contains(out, "already booked") {
		t.Errorf("duplicate should be absorbed, not errored, got %s", out)
	}
	if strings.Contains(out, "<Hangup") {
		t.Errorf("duplicate booking must not hang up, got %s", out)
	}
}

func TestProcessEventPostBookingUsesFollowUpPrompt(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{reply: "Happy to help with anything else."}
	o := testOrchestrator(store, &fakeDirectory{active: []doctors.Doctor{drSmith()}}, &fakeBooker{}, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	store.sessions["CA1"].AppointmentBooked = true

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "Thanks!"})

	if len(gw.prompts) != 1 {
		t.Fatalf("expected one completion, got %d", len(gw.prompts))
	}
	system := gw.prompts[0].System
	if strings.Contains(system, "BOOK_APPOINTMENT") {
		t.Error("follow-up prompt must not offer the booking directive again")
	}
	if !strings.Contains(system, "END_CALL") {
		t.Error("follow-up prompt should keep the end-call directive")
	}
}

func TestProcessEventEndCallDirectiveHangsUp(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{reply: "END_CALL:Thank you for calling, goodbye!"}
	o := testOrchestrator(store, &fakeDirectory{}, &fakeBooker{}, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "That's all, thanks"})

	out := renderOf(t, doc)
	if !strings.Contains(out, "goodbye!") || !strings.Contains(out, "<Hangup") {
		t.Errorf("expected closing message then hangup, got %s", out)
	}
	if strings.Contains(out, "<Gather") {
		t.Errorf("end-call must not gather, got %s", out)
	}
}

func TestProcessEventGatewayFailureSpeaksApology(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{err: ErrGateway}
	o := testOrchestrator(store, &fakeDirectory{}, &fakeBooker{}, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "Hello?"})

	out := renderOf(t, doc)
	if !strings.Contains(out, "trouble") {
		t.Errorf("expected apology, got %s", out)
	}
	if !strings.Contains(out, "<Gather") {
		t.Errorf("apology should keep the call alive, got %s", out)
	}
	// The apology still lands in the transcript like any assistant turn.
	sess := store.sessions["CA1"]
	if len(sess.Transcript) != 2 {
		t.Fatalf("expected caller + apology turns, got %d", len(sess.Transcript))
	}
}

func TestProcessEventTerminalStatusClosesOnce(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(store, &fakeDirectory{}, &fakeBooker{}, &fakeGateway{})

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Status: "completed"})

	out := renderOf(t, doc)
	if strings.Contains(out, "<Say>") || strings.Contains(out, "<Gather") {
		t.Errorf("lifecycle ack should be empty, got %s", out)
	}
	if len(store.statusSets) != 1 || store.statusSets[0] != "CA1:completed" {
		t.Errorf("expected a single terminal transition, got %v", store.statusSets)
	}

	// Duplicate delivery: acknowledged, no second transition.
	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Status: "completed"})
	if len(store.statusSets) != 1 {
		t.Errorf("duplicate terminal callback must be a no-op, got %v", store.statusSets)
	}
}

func TestProcessEventUtteranceAfterCloseAcknowledgedSilently(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{reply: "should not run"}
	o := testOrchestrator(store, &fakeDirectory{}, &fakeBooker{}, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Status: "completed"})
	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "late words"})

	out := renderOf(t, doc)
	if strings.Contains(out, "<Say>") {
		t.Errorf("closed session should not speak, got %s", out)
	}
	if len(gw.prompts) != 0 {
		t.Error("closed session must not reach the completion gateway")
	}
}

func TestProcessEventAppendRaceWithTerminal(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{reply: "x"}
	o := testOrchestrator(store, &fakeDirectory{}, &fakeBooker{}, gw)

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	store.appendErr = calls.ErrSessionClosed

	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "hello"})
	out := renderOf(t, doc)
	if strings.Contains(out, "<Say>") || strings.Contains(out, "<Gather") {
		t.Errorf("racing terminal should end the exchange quietly, got %s", out)
	}
}

func TestProcessEventStoreFailureApologizesAndHangsUp(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(store, &fakeDirectory{}, &fakeBooker{}, &fakeGateway{reply: "x"})

	o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1"})
	store.appendErr = errors.New("connection refused")

	doc := o.ProcessEvent(context.Background(), CallEvent{CallID: "CA1", Speech: "hello"})
	out := renderOf(t, doc)
	if !strings.Contains(out, "<Hangup") {
		t.Errorf("unrecoverable store failure should hang up, got %s", out)
	}
	if !strings.Contains(out, "something went wrong") {
		t.Errorf("caller should hear an apology, got %s", out)
	}
}
