package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fleetcab/cab-dispatch/internal/domain/rider"
)

// RiderRepo is the PostgreSQL rider repository.
type RiderRepo struct {
	db *sql.DB
}

// NewRiderRepo creates a rider repository.
func NewRiderRepo(db *sql.DB) *RiderRepo {
	return &RiderRepo{db: db}
}

func (r *RiderRepo) Create(ctx context.Context, rd *rider.Rider) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO riders (id, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, rd.ID, rd.Email, rd.PasswordHash, rd.Role)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return rider.ErrEmailTaken
	}
	return err
}

func (r *RiderRepo) GetByID(ctx context.Context, id uuid.UUID) (*rider.Rider, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, current_trip_id, created_at, updated_at
		FROM riders WHERE id = $1
	`, id)
	return scanRider(row)
}

func (r *RiderRepo) GetByEmail(ctx context.Context, email string) (*rider.Rider, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, current_trip_id, created_at, updated_at
		FROM riders WHERE email = $1
	`, email)
	return scanRider(row)
}

func (r *RiderRepo) SetCurrentTrip(ctx context.Context, id uuid.UUID, tripID *uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE riders SET current_trip_id = $2, updated_at = NOW()
		WHERE id = $1
	`, id, tripID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rider.ErrRiderNotFound
	}
	return nil
}

func scanRider(row rowScanner) (*rider.Rider, error) {
	var rd rider.Rider
	var tripID uuid.NullUUID
	err := row.Scan(&rd.ID, &rd.Email, &rd.PasswordHash, &rd.Role,
		&tripID, &rd.CreatedAt, &rd.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, rider.ErrRiderNotFound
	}
	if err != nil {
		return nil, err
	}
	if tripID.Valid {
		rd.CurrentTripID = &tripID.UUID
	}
	return &rd, nil
}
