package doctors

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound indicates no matching doctor row.
var ErrNotFound = errors.New("doctors: not found")

// WeeklySlot is one recurring availability window, e.g. Monday 09:00-17:00.
// Times are zero-padded 24-hour HH:MM strings in the practice's local zone.
type WeeklySlot struct {
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Doctor is a bookable provider with recurring weekly availability.
type Doctor struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Specialization string       `json:"specialization"`
	AvailableSlots []WeeklySlot `json:"availableSlots"`
	IsActive       bool         `json:"isActive"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// CreateDoctorRequest is the payload for creating or replacing a doctor.
type CreateDoctorRequest struct {
	Name           string       `json:"name"`
	Specialization string       `json:"specialization"`
	AvailableSlots []WeeklySlot `json:"availableSlots"`
	IsActive       *bool        `json:"isActive"`
}

var validDays = map[string]struct{}{
	"Monday": {}, "Tuesday": {}, "Wednesday": {}, "Thursday": {},
	"Friday": {}, "Saturday": {}, "Sunday": {},
}

// Validate checks required fields and slot shape.
func (r *CreateDoctorRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("doctors: name is required")
	}
	if strings.TrimSpace(r.Specialization) == "" {
		return errors.New("doctors: specialization is required")
	}
	for _, slot := range r.AvailableSlots {
		if _, ok := validDays[slot.Day]; !ok {
			return errors.New("doctors: invalid day " + slot.Day)
		}
		if !ValidClockTime(slot.StartTime) || !ValidClockTime(slot.EndTime) {
			return errors.New("doctors: slot times must be zero-padded HH:MM")
		}
	}
	return nil
}
