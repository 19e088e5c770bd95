package calls

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// db is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists call sessions. Every webhook invocation reconstructs state
// through it; all cross-invocation synchronization lives in single-statement
// compare-and-set updates here, never in process memory.
type Store struct {
	db db

	// staleThreshold is how long an active session may go without a terminal
	// lifecycle callback before FindCurrentLive forces it failed.
	staleThreshold time.Duration

	now func() time.Time
}

// NewStore initializes a store backed by pgxpool.
func NewStore(pool *pgxpool.Pool, staleThreshold time.Duration) *Store {
	if pool == nil {
		panic("calls: pgx pool required")
	}
	return newStore(pool, staleThreshold)
}

// NewStoreWithDB allows injecting a mock database for testing.
func NewStoreWithDB(d db, staleThreshold time.Duration) *Store {
	return newStore(d, staleThreshold)
}

func newStore(d db, staleThreshold time.Duration) *Store {
	if staleThreshold <= 0 {
		staleThreshold = time.Hour
	}
	return &Store{db: d, staleThreshold: staleThreshold, now: func() time.Time { return time.Now().UTC() }}
}

const sessionColumns = `id, call_id, from_number, to_number, status, transcript,
	appointment_booked, start_time, end_time, duration_seconds, created_at, updated_at`

// LoadOrCreate returns the session for callID, creating an active one if this
// is the first webhook event for the call. created reports whether a new row
// was inserted; the insert is race-safe against a duplicate first delivery.
func (s *Store) LoadOrCreate(ctx context.Context, callID, fromNumber, toNumber string) (sess *Session, created bool, err error) {
	insert := `
		INSERT INTO call_sessions (id, call_id, from_number, to_number)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (call_id) DO NOTHING
		RETURNING ` + sessionColumns
	sess, err = scanSession(s.db.QueryRow(ctx, insert, uuid.New(), callID, fromNumber, toNumber))
	if err == nil {
		return sess, true, nil
	}
	if err != ErrNotFound {
		return nil, false, fmt.Errorf("calls: create session: %w", err)
	}

	// Conflict: the session already exists, load it.
	sess, err = s.Get(ctx, callID)
	if err != nil {
		return nil, false, err
	}
	return sess, false, nil
}

// Get loads one session by call id.
func (s *Store) Get(ctx context.Context, callID string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM call_sessions WHERE call_id = $1`
	sess, err := scanSession(s.db.QueryRow(ctx, query, callID))
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("calls: load session: %w", err)
	}
	return sess, nil
}

// AppendTurn atomically pushes one turn onto the transcript. The push is a
// single jsonb concatenation so concurrent appends for the same call cannot
// lose each other, and it is guarded on the active status so a terminal
// callback racing an in-flight turn wins: the append reports ErrSessionClosed.
func (s *Store) AppendTurn(ctx context.Context, callID string, turn Turn) error {
	payload, err := json.Marshal([]Turn{turn})
	if err != nil {
		return fmt.Errorf("calls: encode turn: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE call_sessions
		SET transcript = transcript || $2::jsonb, updated_at = now()
		WHERE call_id = $1 AND status = $3`,
		callID, payload, StatusActive)
	if err != nil {
		return fmt.Errorf("calls: append turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, callID); err != nil {
			return err
		}
		return ErrSessionClosed
	}
	return nil
}

// SetStatus transitions an active session to a terminal status, recording the
// end time and duration exactly once. A repeated terminal callback finds no
// active row and is a no-op; changed reports whether this call did the write.
func (s *Store) SetStatus(ctx context.Context, callID, status string, endTime time.Time) (changed bool, err error) {
	if !TerminalStatus(status) {
		return false, fmt.Errorf("calls: %q is not a terminal status", status)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE call_sessions
		SET status = $2,
		    end_time = $3,
		    duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($3::timestamptz - start_time))::int),
		    updated_at = now()
		WHERE call_id = $1 AND status = $4`,
		callID, status, endTime, StatusActive)
	if err != nil {
		return false, fmt.Errorf("calls: set status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkBooked flips the single-booking flag. The check-and-set means only one
// of two racing booking turns observes the transition; booked reports whether
// this call won it.
func (s *Store) MarkBooked(ctx context.Context, callID string) (booked bool, err error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE call_sessions
		SET appointment_booked = TRUE, updated_at = now()
		WHERE call_id = $1 AND appointment_booked = FALSE`,
		callID)
	if err != nil {
		return false, fmt.Errorf("calls: mark booked: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindCurrentLive returns the most recent active session, or nil when no call
// is live. Before reading it reaps: active sessions older than the stale
// threshold never got their terminal callback and are forced failed, so the
// dashboard cannot show a phantom live call forever.
func (s *Store) FindCurrentLive(ctx context.Context) (*Session, error) {
	cutoff := s.now().Add(-s.staleThreshold)
	_, err := s.db.Exec(ctx, `
		UPDATE call_sessions
		SET status = $1,
		    end_time = now(),
		    duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM (now() - start_time))::int),
		    updated_at = now()
		WHERE status = $2 AND start_time < $3`,
		StatusFailed, StatusActive, cutoff)
	if err != nil {
		return nil, fmt.Errorf("calls: reap stale sessions: %w", err)
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM call_sessions
		WHERE status = $1
		ORDER BY start_time DESC
		LIMIT 1`
	sess, err := scanSession(s.db.QueryRow(ctx, query, StatusActive))
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("calls: find live session: %w", err)
	}
	return sess, nil
}

// List returns sessions newest first with the total count for pagination.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Session, int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM call_sessions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("calls: list sessions: %w", err)
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("calls: list sessions: %w", err)
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("calls: list sessions: %w", err)
	}

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM call_sessions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("calls: count sessions: %w", err)
	}
	return out, total, nil
}

// CountSince counts sessions created at or after the cutoff, for stats.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM call_sessions WHERE created_at >= $1`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("calls: count since: %w", err)
	}
	return n, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		sess Session
		id   uuid.UUID
		raw  []byte
	)
	err := row.Scan(
		&id,
		&sess.CallID,
		&sess.FromNumber,
		&sess.ToNumber,
		&sess.Status,
		&raw,
		&sess.AppointmentBooked,
		&sess.StartTime,
		&sess.EndTime,
		&sess.DurationSeconds,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sess.ID = id.String()
	sess.Transcript = []Turn{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sess.Transcript); err != nil {
			return nil, fmt.Errorf("calls: decode transcript: %w", err)
		}
	}
	return &sess, nil
}
