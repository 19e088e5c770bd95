// Package stats aggregates dashboard counters over calls and appointments.
package stats

import (
	"context"
	"database/sql"
	"fmt"
)

// Summary is the dashboard stats payload.
type Summary struct {
	CallsToday            int     `json:"callsToday"`
	CallsThisMonth        int     `json:"callsThisMonth"`
	TotalCalls            int     `json:"totalCalls"`
	TotalAppointments     int     `json:"totalAppointments"`
	ScheduledAppointments int     `json:"scheduledAppointments"`
	BookedViaCalls        int     `json:"bookedViaCalls"`
	AvgCallDurationSec    float64 `json:"avgCallDurationSeconds"`
}

// Repository computes aggregates with plain SQL. It deliberately runs on
// database/sql rather than the pgx pool: the queries are read-only scans and
// the handle can point at a read replica.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const summaryQuery = `
SELECT
  COUNT(*) FILTER (WHERE start_time >= date_trunc('day', now()))   AS calls_today,
  COUNT(*) FILTER (WHERE start_time >= date_trunc('month', now())) AS calls_month,
  COUNT(*)                                                         AS calls_total,
  COUNT(*) FILTER (WHERE appointment_booked)                       AS booked_via_calls,
  COALESCE(AVG(duration_seconds) FILTER (WHERE status = 'completed'), 0) AS avg_duration
FROM call_sessions`

const appointmentsQuery = `
SELECT
  COUNT(*)                                       AS appointments_total,
  COUNT(*) FILTER (WHERE status = 'scheduled')   AS appointments_scheduled
FROM appointments`

// Summary computes the dashboard aggregates in two scans.
func (r *Repository) Summary(ctx context.Context) (*Summary, error) {
	var s Summary

	err := r.db.QueryRowContext(ctx, summaryQuery).Scan(
		&s.CallsToday,
		&s.CallsThisMonth,
		&s.TotalCalls,
		&s.BookedViaCalls,
		&s.AvgCallDurationSec,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: call aggregates: %w", err)
	}

	err = r.db.QueryRowContext(ctx, appointmentsQuery).Scan(
		&s.TotalAppointments,
		&s.ScheduledAppointments,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: appointment aggregates: %w", err)
	}

	return &s, nil
}
