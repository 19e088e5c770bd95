package doctors

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

// db is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores doctors in the relational database.
type Repository struct {
	db db
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("doctors: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(d db) *Repository {
	return &Repository{db: d}
}

const doctorColumns = `id, name, specialization, available_slots, is_active, created_at, updated_at`

// Create inserts a new doctor row.
func (r *Repository) Create(ctx context.Context, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	slots, err := encodeSlots(req.AvailableSlots)
	if err != nil {
		return nil, err
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	id := uuid.New()
	query := `
		INSERT INTO doctors (id, name, specialization, available_slots, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.db.QueryRow(ctx, query, id, req.Name, req.Specialization, slots, active).
		Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("doctors: insert failed: %w", err)
	}

	return &Doctor{
		ID:             id.String(),
		Name:           req.Name,
		Specialization: req.Specialization,
		AvailableSlots: req.AvailableSlots,
		IsActive:       active,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// GetByID fetches one doctor.
func (r *Repository) GetByID(ctx context.Context, id string) (*Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	return scanDoctor(r.db.QueryRow(ctx, query, id))
}

// ListActive returns all active doctors, the directory the orchestrator
// advertises to callers.
func (r *Repository) ListActive(ctx context.Context) ([]Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE is_active ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("doctors: list active failed: %w", err)
	}
	defer rows.Close()

	out := []Doctor{}
	for rows.Next() {
		doc, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

// FindActive looks up an active doctor by exact name and specialization,
// the match the booking directive requires.
func (r *Repository) FindActive(ctx context.Context, name, specialization string) (*Doctor, error) {
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors
		WHERE is_active AND name = $1 AND specialization = $2
		LIMIT 1
	`
	return scanDoctor(r.db.QueryRow(ctx, query, name, specialization))
}

// Update replaces the mutable fields of a doctor.
func (r *Repository) Update(ctx context.Context, id string, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	slots, err := encodeSlots(req.AvailableSlots)
	if err != nil {
		return nil, err
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	query := `
		UPDATE doctors
		SET name = $2, specialization = $3, available_slots = $4, is_active = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + doctorColumns
	return scanDoctor(r.db.QueryRow(ctx, query, id, req.Name, req.Specialization, slots, active))
}

// Deactivate soft-deletes a doctor so past appointments keep their reference.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE doctors SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("doctors: deactivate failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeSlots(slots []WeeklySlot) ([]byte, error) {
	if slots == nil {
		slots = []WeeklySlot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("doctors: encode slots: %w", err)
	}
	return data, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		doc Doctor
		id  uuid.UUID
		raw []byte
	)
	err := row.Scan(&id, &doc.Name, &doc.Specialization, &raw, &doc.IsActive, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("doctors: select failed: %w", err)
	}
	doc.ID = id.String()
	if err := json.Unmarshal(raw, &doc.AvailableSlots); err != nil {
		return nil, fmt.Errorf("doctors: decode slots: %w", err)
	}
	return &doc, nil
}
