package conversation

import (
	"regexp"
	"strings"
	"time"
)

// Directive is the tagged result of parsing a completion response. Exactly one
// of the three variants applies.
type Directive interface {
	directive()
}

// BookingDirective carries the six machine-readable booking fields.
type BookingDirective struct {
	DoctorName     string
	Specialization string
	Date           string // YYYY-MM-DD
	Time           string // HH:MM
	PatientName    string
	PatientPhone   string
}

// EndCallDirective signals the assistant wants to hang up after speaking the
// closing message.
type EndCallDirective struct {
	ClosingMessage string
}

// PlainReply is everything else: the completion text spoken verbatim.
type PlainReply struct {
	Text string
}

func (BookingDirective) directive() {}
func (EndCallDirective) directive() {}
func (PlainReply) directive()       {}

// The booking pattern must match the entire response. A directive buried in
// conversational filler deliberately fails to match and is spoken as-is;
// partial matches are never partially honored.
var (
	bookingPattern = regexp.MustCompile(`^BOOK_APPOINTMENT:([^:\n]+):([^:\n]+):(\d{4}-\d{2}-\d{2}):(\d{2}:\d{2}):([^:\n]+):([^:\n]+)$`)
	endCallPattern = regexp.MustCompile(`^END_CALL:(.+)$`)
)

// ParseDirective classifies a raw completion response.
func ParseDirective(text string) Directive {
	trimmed := strings.TrimSpace(text)

	if m := bookingPattern.FindStringSubmatch(trimmed); m != nil {
		d := BookingDirective{
			DoctorName:     strings.TrimSpace(m[1]),
			Specialization: strings.TrimSpace(m[2]),
			Date:           m[3],
			Time:           m[4],
			PatientName:    strings.TrimSpace(m[5]),
			PatientPhone:   strings.TrimSpace(m[6]),
		}
		if d.wellFormed() {
			return d
		}
		return PlainReply{Text: text}
	}

	if m := endCallPattern.FindStringSubmatch(trimmed); m != nil {
		return EndCallDirective{ClosingMessage: strings.TrimSpace(m[1])}
	}

	return PlainReply{Text: text}
}

// wellFormed rejects directives whose date or time fields only look plausible
// to the regex, e.g. 2026-13-40 or 25:00.
func (d BookingDirective) wellFormed() bool {
	if d.DoctorName == "" || d.Specialization == "" || d.PatientName == "" || d.PatientPhone == "" {
		return false
	}
	if _, err := time.Parse("2006-01-02", d.Date); err != nil {
		return false
	}
	if _, err := time.Parse("15:04", d.Time); err != nil {
		return false
	}
	return true
}

// Weekday returns the day-of-week name of the requested date, e.g. "Monday".
func (d BookingDirective) Weekday() string {
	t, err := time.Parse("2006-01-02", d.Date)
	if err != nil {
		return ""
	}
	return t.Weekday().String()
}
