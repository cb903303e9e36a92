// README: Location store writes trajectory points and driver positions in one PostgreSQL transaction.
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/infra"
	"ridehail/internal/modules/driver"
	"ridehail/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func loadRef(ctx context.Context, q infra.DBTX, rideID types.ID, lock string) (*RideRef, error) {
	var ref RideRef
	err := q.QueryRow(ctx, `SELECT id, user_id, status, driver_id FROM rides WHERE id = $1 `+lock, string(rideID)).
		Scan(&ref.ID, &ref.UserID, &ref.Status, &ref.DriverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ride: %w", err)
	}
	return &ref, nil
}

// Ref returns nil when the ride does not exist.
func (s *Store) Ref(ctx context.Context, rideID types.ID) (*RideRef, error) {
	return loadRef(ctx, s.db, rideID, "")
}

// Record holds a share lock on the ride while check runs, so the ride cannot
// leave its status before the point and the driver position are committed.
func (s *Store) Record(ctx context.Context, p *Point, check func(*RideRef) error) error {
	return infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		ref, err := loadRef(ctx, tx, p.RideID, "FOR SHARE")
		if err != nil {
			return err
		}
		if err := check(ref); err != nil {
			return err
		}
		if ref == nil || ref.DriverID == nil {
			return fmt.Errorf("ride %s has no driver to move", p.RideID)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO ride_location_updates (id, ride_id, latitude, longitude, recorded_at)
			VALUES ($1, $2, $3, $4, $5)`,
			string(p.ID), string(p.RideID), p.Latitude, p.Longitude, p.Timestamp)
		if err != nil {
			return fmt.Errorf("insert location: %w", err)
		}
		return driver.MovePosition(ctx, tx, *ref.DriverID, p.Latitude, p.Longitude, p.Timestamp)
	})
}

func (s *Store) ListByRide(ctx context.Context, rideID types.ID) ([]Point, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, latitude, longitude, recorded_at
		FROM ride_location_updates WHERE ride_id = $1
		ORDER BY recorded_at, id`, string(rideID))
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()
	out := []Point{}
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ID, &p.RideID, &p.Latitude, &p.Longitude, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
