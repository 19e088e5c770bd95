package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/wavecare-ai/wavecare-voice/internal/calls"
	"github.com/wavecare-ai/wavecare-voice/internal/doctors"
)

// Prompt is the completion request the gateway sends: a system instruction
// plus the call transcript as chat history.
type Prompt struct {
	System   string
	Messages []ChatMessage
}

const directiveContract = `When the caller has given you EVERY detail needed to book — doctor, date, time, their name, and their phone number — reply with exactly this single line and nothing else:
BOOK_APPOINTMENT:<doctor name>:<specialization>:<YYYY-MM-DD>:<HH:MM>:<patient name>:<patient phone>
For example: BOOK_APPOINTMENT:Dr. Khan:Pediatrician:2026-09-07:09:00:Alice Smith:555-1000

When the caller is done and wants to end the call, reply with exactly this single line and nothing else:
END_CALL:<a short friendly goodbye>

If any booking detail is missing, ask for it instead of emitting the booking line. Never invent details the caller did not say.`

const voiceStyleRules = `You are speaking to a live caller on the phone. Keep replies to one or two short sentences of spoken language. Never use lists, markdown, emoji, or URLs.`

// BuildPrompt constructs the full turn prompt: current date, the active
// doctor directory with weekly availability, the directive contract, and the
// transcript so far.
func BuildPrompt(now time.Time, practiceName string, directory []doctors.Doctor, sess *calls.Session) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the AI phone receptionist for %s. You help callers with their questions and book appointments with our doctors.\n\n", practiceName)
	fmt.Fprintf(&b, "Today's date is %s (%s).\n\n", now.Format("2006-01-02"), now.Weekday())

	b.WriteString("Doctors currently taking appointments:\n")
	if len(directory) == 0 {
		b.WriteString("(none are available right now — apologize and offer to take a message)\n")
	}
	for _, doc := range directory {
		fmt.Fprintf(&b, "- %s, %s. Available %s.\n", doc.Name, doc.Specialization, describeSlots(doc.AvailableSlots))
	}
	b.WriteString("\n")

	b.WriteString(voiceStyleRules)
	b.WriteString("\n\n")
	b.WriteString(directiveContract)

	return Prompt{System: b.String(), Messages: transcriptMessages(sess)}
}

// BuildFollowUpPrompt is the narrower prompt used once the call has already
// booked an appointment. It can still recognize the end-call directive but
// never re-extracts booking fields, so the model cannot book twice.
func BuildFollowUpPrompt(now time.Time, practiceName string, sess *calls.Session) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the AI phone receptionist for %s. The caller's appointment is already booked and confirmed — do not book another or repeat the confirmation.\n\n", practiceName)
	fmt.Fprintf(&b, "Today's date is %s (%s).\n\n", now.Format("2006-01-02"), now.Weekday())
	b.WriteString("Ask whether there is anything else you can help with, and answer briefly if so.\n\n")
	b.WriteString(voiceStyleRules)
	b.WriteString("\n\n")
	b.WriteString(`When the caller is done and wants to end the call, reply with exactly this single line and nothing else:
END_CALL:<a short friendly goodbye>`)

	return Prompt{System: b.String(), Messages: transcriptMessages(sess)}
}

func transcriptMessages(sess *calls.Session) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(sess.Transcript))
	for _, turn := range sess.Transcript {
		role := ChatRoleUser
		if turn.Speaker == calls.SpeakerAssistant {
			role = ChatRoleAssistant
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: turn.Message})
	}
	return msgs
}

var slotDayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// describeSlots renders weekly windows in reading order, e.g.
// "Monday 09:00-17:00, Wednesday 09:00-12:00".
func describeSlots(slots []doctors.WeeklySlot) string {
	if len(slots) == 0 {
		return "by arrangement only"
	}
	parts := make([]string, 0, len(slots))
	for _, day := range slotDayOrder {
		for _, slot := range slots {
			if slot.Day == day {
				parts = append(parts, fmt.Sprintf("%s %s-%s", slot.Day, slot.StartTime, slot.EndTime))
			}
		}
	}
	return strings.Join(parts, ", ")
}
