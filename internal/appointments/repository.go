package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index on originating_call_id.
const uniqueViolation = "23505"

// db is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores appointments in the relational database.
type Repository struct {
	db db
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(d db) *Repository {
	return &Repository{db: d}
}

const apptColumns = `id, patient_name, patient_phone, doctor_id, to_char(appointment_date, 'YYYY-MM-DD'),
	appointment_time, status, notes, COALESCE(originating_call_id, ''), created_at, updated_at`

// Create inserts a new scheduled appointment. A second insert carrying the
// same originating call id reports ErrDuplicateBooking.
func (r *Repository) Create(ctx context.Context, req *CreateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	var callID any
	if req.OriginatingCallID != "" {
		callID = req.OriginatingCallID
	}
	query := `
		INSERT INTO appointments
			(id, patient_name, patient_phone, doctor_id, appointment_date, appointment_time, status, notes, originating_call_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	err := r.db.QueryRow(ctx, query,
		id,
		req.PatientName,
		req.PatientPhone,
		req.DoctorID,
		req.AppointmentDate,
		req.AppointmentTime,
		StatusScheduled,
		req.Notes,
		callID,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateBooking
		}
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}

	return &Appointment{
		ID:                id.String(),
		PatientName:       req.PatientName,
		PatientPhone:      req.PatientPhone,
		DoctorID:          req.DoctorID,
		AppointmentDate:   req.AppointmentDate,
		AppointmentTime:   req.AppointmentTime,
		Status:            StatusScheduled,
		Notes:             req.Notes,
		OriginatingCallID: req.OriginatingCallID,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}, nil
}

// List returns appointments newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string, limit, offset int) ([]Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	out := []Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *appt)
	}
	return out, rows.Err()
}

// Count returns the total number of appointments, optionally by status.
func (r *Repository) Count(ctx context.Context, status string) (int64, error) {
	query := `SELECT COUNT(*) FROM appointments`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("appointments: count failed: %w", err)
	}
	return n, nil
}

// GetByID fetches one appointment.
func (r *Repository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE id = $1`
	return scanAppointment(r.db.QueryRow(ctx, query, id))
}

// UpdateStatus moves an appointment to a new operator-chosen status.
func (r *Repository) UpdateStatus(ctx context.Context, id, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("appointments: invalid status %q", status)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("appointments: update status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an appointment.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("appointments: delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt     Appointment
		id       uuid.UUID
		doctorID uuid.UUID
	)
	err := row.Scan(
		&id,
		&appt.PatientName,
		&appt.PatientPhone,
		&doctorID,
		&appt.AppointmentDate,
		&appt.AppointmentTime,
		&appt.Status,
		&appt.Notes,
		&appt.OriginatingCallID,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	appt.ID = id.String()
	appt.DoctorID = doctorID.String()
	return &appt, nil
}
