package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func validRequest() *CreateRequest {
	return &CreateRequest{
		PatientName:       "Alice",
		PatientPhone:      "555-1000",
		DoctorID:          "0d9c2f0a-8a3c-4f0d-9a44-9d2e8b1f3c11",
		AppointmentDate:   "2026-09-07",
		AppointmentTime:   "09:00",
		Notes:             "Booked via AI call (CallSid: CA1)",
		OriginatingCallID: "CA1",
	}
}

func TestCreateRejectsMalformedFields(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewRepositoryWithDB(mock)

	bad := []*CreateRequest{
		{PatientPhone: "555", DoctorID: "d", AppointmentDate: "2026-09-07", AppointmentTime: "09:00"},
		{PatientName: "Alice", DoctorID: "d", AppointmentDate: "2026-09-07", AppointmentTime: "09:00"},
		{PatientName: "Alice", PatientPhone: "555", DoctorID: "d", AppointmentDate: "09/07/2026", AppointmentTime: "09:00"},
		{PatientName: "Alice", PatientPhone: "555", DoctorID: "d", AppointmentDate: "2026-09-07", AppointmentTime: "9am"},
	}
	for i, req := range bad {
		if _, err := repo.Create(context.Background(), req); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no queries should have run: %v", err)
	}
}

func TestCreateInsertsScheduledAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewRepositoryWithDB(mock)

	now := time.Now().UTC()
	req := validRequest()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), req.PatientName, req.PatientPhone, req.DoctorID,
			req.AppointmentDate, req.AppointmentTime, StatusScheduled, req.Notes, req.OriginatingCallID).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	appt, err := repo.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if appt.Status != StatusScheduled {
		t.Errorf("expected scheduled status, got %s", appt.Status)
	}
	if appt.OriginatingCallID != "CA1" {
		t.Errorf("expected originating call id preserved, got %q", appt.OriginatingCallID)
	}
}

func TestCreateDuplicateCallReportsConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewRepositoryWithDB(mock)

	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "appointments_originating_call_id_key"})

	_, err = repo.Create(context.Background(), validRequest())
	if !errors.Is(err, ErrDuplicateBooking) {
		t.Fatalf("expected ErrDuplicateBooking, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewRepositoryWithDB(mock)

	if err := repo.UpdateStatus(context.Background(), "id", "vanished"); err == nil {
		t.Error("expected invalid status to be rejected")
	}

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("some-id", StatusCancelled).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := repo.UpdateStatus(context.Background(), "some-id", StatusCancelled); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("missing-id", StatusCompleted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := repo.UpdateStatus(context.Background(), "missing-id", StatusCompleted); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
