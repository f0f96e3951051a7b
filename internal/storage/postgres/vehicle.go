// Package postgres implements the entity repositories over PostgreSQL.
// Allocation atomicity comes from conditional UPDATEs: the status flip is
// committed only when the row is still in the expected state, and callers
// check rows-affected.
package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/domain/vehicle"
)

// VehicleRepo is the PostgreSQL vehicle repository.
type VehicleRepo struct {
	db *sql.DB
}

// NewVehicleRepo creates a vehicle repository.
func NewVehicleRepo(db *sql.DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

func (r *VehicleRepo) Create(ctx context.Context, v *vehicle.Vehicle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vehicles (id, driver_name, license_plate, latitude, longitude, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, v.ID, v.DriverName, v.LicensePlate, v.Position.Latitude, v.Position.Longitude, v.Status)
	return err
}

func (r *VehicleRepo) GetByID(ctx context.Context, id uuid.UUID) (*vehicle.Vehicle, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, driver_name, license_plate, latitude, longitude, status, created_at, updated_at
		FROM vehicles WHERE id = $1
	`, id)
	return scanVehicle(row)
}

func (r *VehicleRepo) ListByStatus(ctx context.Context, status vehicle.Status) ([]*vehicle.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, driver_name, license_plate, latitude, longitude, status, created_at, updated_at
		FROM vehicles WHERE status = $1 ORDER BY created_at
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVehicles(rows)
}

func (r *VehicleRepo) ListAll(ctx context.Context) ([]*vehicle.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, driver_name, license_plate, latitude, longitude, status, created_at, updated_at
		FROM vehicles ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVehicles(rows)
}

func (r *VehicleRepo) UpdatePosition(ctx context.Context, id uuid.UUID, lat, lon float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vehicles SET latitude = $2, longitude = $3, updated_at = NOW()
		WHERE id = $1
	`, id, lat, lon)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return vehicle.ErrVehicleNotFound
	}
	return nil
}

// ClaimAvailable is the optimistic check-then-set guarding allocation: the
// flip to on_trip only lands when the vehicle is still available.
func (r *VehicleRepo) ClaimAvailable(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vehicles SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, vehicle.StatusOnTrip, vehicle.StatusAvailable)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *VehicleRepo) Release(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vehicles SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, id, vehicle.StatusAvailable)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return vehicle.ErrVehicleNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVehicle(row rowScanner) (*vehicle.Vehicle, error) {
	var v vehicle.Vehicle
	err := row.Scan(&v.ID, &v.DriverName, &v.LicensePlate,
		&v.Position.Latitude, &v.Position.Longitude, &v.Status,
		&v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, vehicle.ErrVehicleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVehicles(rows *sql.Rows) ([]*vehicle.Vehicle, error) {
	var out []*vehicle.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
