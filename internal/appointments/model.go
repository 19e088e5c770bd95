package appointments

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates no matching appointment row.
	ErrNotFound = errors.New("appointments: not found")
	// ErrDuplicateBooking indicates an appointment already exists for the
	// originating call. The orchestrator absorbs this silently: the session
	// already reflects the booking.
	ErrDuplicateBooking = errors.New("appointments: call already booked an appointment")
)

// Statuses an appointment can be in. New bookings start scheduled; the rest
// are set by operators from the dashboard.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

// Appointment is one booked visit.
type Appointment struct {
	ID                string    `json:"id"`
	PatientName       string    `json:"patientName"`
	PatientPhone      string    `json:"patientPhone"`
	DoctorID          string    `json:"doctorId"`
	AppointmentDate   string    `json:"appointmentDate"` // YYYY-MM-DD
	AppointmentTime   string    `json:"appointmentTime"` // HH:MM, practice local time
	Status            string    `json:"status"`
	Notes             string    `json:"notes"`
	OriginatingCallID string    `json:"originatingCallId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// CreateRequest is the payload for booking an appointment, from the
// orchestrator or from a dashboard operator.
type CreateRequest struct {
	PatientName     string `json:"patientName"`
	PatientPhone    string `json:"patientPhone"`
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	Notes           string `json:"notes"`
	// OriginatingCallID is set only for orchestrator bookings and is the
	// exactly-once key: a unique index rejects a second booking per call.
	OriginatingCallID string `json:"-"`
}

// Validate checks required fields.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.PatientName) == "" {
		return errors.New("appointments: patient name is required")
	}
	if strings.TrimSpace(r.PatientPhone) == "" {
		return errors.New("appointments: patient phone is required")
	}
	if strings.TrimSpace(r.DoctorID) == "" {
		return errors.New("appointments: doctor id is required")
	}
	if _, err := time.Parse("2006-01-02", r.AppointmentDate); err != nil {
		return errors.New("appointments: date must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", r.AppointmentTime); err != nil {
		return errors.New("appointments: time must be HH:MM")
	}
	return nil
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}
