// README: Driver store backed by PostgreSQL; the tx-scoped helpers run inside ride and location transactions.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ridehail/internal/apperr"
	"ridehail/internal/infra"
	"ridehail/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const driverColumns = `d.id, d.user_id, u.full_name, d.vehicle_make, d.vehicle_model, d.vehicle_year,
	d.vehicle_color, d.vehicle_license_plate, d.driving_license_number, d.is_active, d.is_available,
	d.rating, d.total_rides, d.current_latitude, d.current_longitude, d.last_location_update,
	d.created_at, d.updated_at`

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	err := row.Scan(
		&d.ID, &d.UserID, &d.FullName, &d.VehicleMake, &d.VehicleModel, &d.VehicleYear,
		&d.VehicleColor, &d.VehicleLicensePlate, &d.DrivingLicenseNumber, &d.IsActive, &d.IsAvailable,
		&d.Rating, &d.TotalRides, &d.CurrentLatitude, &d.CurrentLongitude, &d.LastLocationUpdate,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.getBy(ctx, "d.id", id)
}

func (s *Store) GetByUserID(ctx context.Context, userID types.ID) (*Driver, error) {
	return s.getBy(ctx, "d.user_id", userID)
}

func (s *Store) getBy(ctx context.Context, column string, v types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+`
		FROM drivers d JOIN users u ON u.id = d.user_id
		WHERE `+column+` = $1`, string(v))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("driver", "Driver not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get driver: %w", err)
	}
	return d, nil
}

// CountRecentlyActive counts active, available drivers that reported a
// position at or after since.
func (s *Store) CountRecentlyActive(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM drivers
		WHERE is_active AND is_available AND last_location_update >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count drivers: %w", err)
	}
	return n, nil
}

// SetAvailability locks the driver row so a concurrent Claim cannot slip
// between the ongoing-ride check and the update. A driver on a trip keeps
// the availability Claim gave them until Release.
func (s *Store) SetAvailability(ctx context.Context, id types.ID, available bool, now time.Time) error {
	return infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx, `SELECT is_active FROM drivers WHERE id = $1 FOR UPDATE`, string(id)).Scan(&active)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("driver", "Driver not found")
		}
		if err != nil {
			return fmt.Errorf("lock driver: %w", err)
		}
		if !active {
			return apperr.InvalidInput("is_available", "Driver account is not active")
		}
		busy, err := hasOngoingRide(ctx, tx, id)
		if err != nil {
			return err
		}
		if busy {
			return apperr.Conflict("is_available", "Finish the current ride before changing availability")
		}
		if _, err := tx.Exec(ctx, `
			UPDATE drivers SET is_available = $2, updated_at = $3
			WHERE id = $1`, string(id), available, now); err != nil {
			return fmt.Errorf("set availability: %w", err)
		}
		return nil
	})
}

// hasOngoingRide mirrors the accepted, arrived and in_progress ride states.
func hasOngoingRide(ctx context.Context, q infra.DBTX, id types.ID) (bool, error) {
	var busy bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM rides
		WHERE driver_id = $1 AND status IN ('accepted', 'arrived', 'in_progress'))`, string(id)).Scan(&busy)
	if err != nil {
		return false, fmt.Errorf("ongoing ride: %w", err)
	}
	return busy, nil
}

// Claim marks an active, available driver busy. Losing the race to another
// ride is a Conflict.
func Claim(ctx context.Context, tx infra.DBTX, id types.ID, now time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE drivers SET is_available = FALSE, updated_at = $2
		WHERE id = $1 AND is_active AND is_available`, string(id), now)
	if err != nil {
		return fmt.Errorf("claim driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("driver", "Driver is not available")
	}
	return nil
}

// Release makes the driver available again; a completed trip also counts
// toward total_rides.
func Release(ctx context.Context, tx infra.DBTX, id types.ID, completed bool, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE drivers
		SET is_available = TRUE,
		    total_rides = total_rides + CASE WHEN $2 THEN 1 ELSE 0 END,
		    updated_at = $3
		WHERE id = $1`, string(id), completed, now)
	if err != nil {
		return fmt.Errorf("release driver: %w", err)
	}
	return nil
}

// RecomputeRating locks the driver row, so concurrent ratings of the same
// driver serialize, then stores the mean of all rated rides.
func RecomputeRating(ctx context.Context, tx infra.DBTX, id types.ID, now time.Time) (decimal.Decimal, error) {
	var locked string
	if err := tx.QueryRow(ctx, `SELECT id FROM drivers WHERE id = $1 FOR UPDATE`, string(id)).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, apperr.NotFound("driver", "Driver not found")
		}
		return decimal.Zero, fmt.Errorf("lock driver: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT user_rating FROM rides WHERE driver_id = $1 AND user_rating IS NOT NULL`, string(id))
	if err != nil {
		return decimal.Zero, fmt.Errorf("load ratings: %w", err)
	}
	ratings, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return decimal.Zero, fmt.Errorf("load ratings: %w", err)
	}

	rating := MeanRating(ratings)
	if _, err := tx.Exec(ctx, `UPDATE drivers SET rating = $2, updated_at = $3 WHERE id = $1`, string(id), rating, now); err != nil {
		return decimal.Zero, fmt.Errorf("update rating: %w", err)
	}
	return rating, nil
}

func MovePosition(ctx context.Context, tx infra.DBTX, id types.ID, lat, lng decimal.Decimal, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE drivers
		SET current_latitude = $2, current_longitude = $3, last_location_update = $4
		WHERE id = $1`, string(id), lat, lng, at)
	if err != nil {
		return fmt.Errorf("move driver: %w", err)
	}
	return nil
}
