package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/domain/trip"
)

// TripRepo is the PostgreSQL trip repository.
type TripRepo struct {
	db *sql.DB
}

// NewTripRepo creates a trip repository.
func NewTripRepo(db *sql.DB) *TripRepo {
	return &TripRepo{db: db}
}

func (r *TripRepo) Create(ctx context.Context, t *trip.Trip) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trips (id, rider_id, origin_latitude, origin_longitude, status, requested_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, t.ID, t.RiderID, t.Origin.Latitude, t.Origin.Longitude, t.Status, t.RequestedAt)
	return err
}

func (r *TripRepo) GetByID(ctx context.Context, id uuid.UUID) (*trip.Trip, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, rider_id, origin_latitude, origin_longitude, status,
		       assigned_vehicle_id, requested_at, ended_at, created_at, updated_at
		FROM trips WHERE id = $1
	`, id)
	return scanTrip(row)
}

func (r *TripRepo) GetActiveByRider(ctx context.Context, riderID uuid.UUID) (*trip.Trip, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, rider_id, origin_latitude, origin_longitude, status,
		       assigned_vehicle_id, requested_at, ended_at, created_at, updated_at
		FROM trips
		WHERE rider_id = $1 AND status IN ($2, $3)
		LIMIT 1
	`, riderID, trip.StatusRequested, trip.StatusInProgress)
	return scanTrip(row)
}

func (r *TripRepo) ListByStatus(ctx context.Context, status trip.Status) ([]*trip.Trip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, rider_id, origin_latitude, origin_longitude, status,
		       assigned_vehicle_id, requested_at, ended_at, created_at, updated_at
		FROM trips WHERE status = $1 ORDER BY requested_at
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*trip.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TripRepo) MarkInProgress(ctx context.Context, id, vehicleID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE trips SET status = $2, assigned_vehicle_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, trip.StatusInProgress, vehicleID, trip.StatusRequested)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *TripRepo) MarkEnded(ctx context.Context, id uuid.UUID, from, to trip.Status, endedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE trips SET status = $2, assigned_vehicle_id = NULL, ended_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, to, endedAt, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanTrip(row rowScanner) (*trip.Trip, error) {
	var t trip.Trip
	var vehicleID uuid.NullUUID
	var endedAt sql.NullTime
	err := row.Scan(&t.ID, &t.RiderID, &t.Origin.Latitude, &t.Origin.Longitude,
		&t.Status, &vehicleID, &t.RequestedAt, &endedAt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, trip.ErrTripNotFound
	}
	if err != nil {
		return nil, err
	}
	if vehicleID.Valid {
		t.AssignedVehicleID = &vehicleID.UUID
	}
	if endedAt.Valid {
		t.EndedAt = &endedAt.Time
	}
	return &t, nil
}
