// README: Ride store backed by PostgreSQL; every transition commits ride, driver and event rows together.
package ride

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/apperr"
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

// Change is one committed transition. Version is the status_version the
// caller read; the write only lands if nobody moved the ride since.
type Change struct {
	Ride    *Ride
	From    Status
	Version int

	ClaimDriver     bool
	ReleaseDriver   bool
	CountTrip       bool
	RecomputeRating bool

	Event *Event
}

type HistoryFilter struct {
	UserID types.ID
	Status Status
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

const rideColumns = `id, user_id, driver_id, category_id,
	pickup_latitude, pickup_longitude, pickup_address,
	destination_latitude, destination_longitude, destination_address,
	estimated_distance_km, estimated_duration_minutes, actual_distance_km, actual_duration_minutes,
	status, status_version, payment_method_id, payment_status,
	base_fare, distance_fare, time_fare, surge_multiplier, total_fare, per_km_rate, per_minute_rate,
	requested_at, accepted_at, driver_arrived_at, started_at, completed_at, cancelled_at,
	cancelled_by, cancellation_reason, user_rating, user_feedback, driver_rating, driver_feedback`

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	err := row.Scan(
		&r.ID, &r.UserID, &r.DriverID, &r.CategoryID,
		&r.PickupLatitude, &r.PickupLongitude, &r.PickupAddress,
		&r.DestinationLatitude, &r.DestinationLongitude, &r.DestinationAddress,
		&r.EstimatedDistanceKm, &r.EstimatedDurationMinutes, &r.ActualDistanceKm, &r.ActualDurationMinutes,
		&r.Status, &r.StatusVersion, &r.PaymentMethodID, &r.PaymentStatus,
		&r.BaseFare, &r.DistanceFare, &r.TimeFare, &r.SurgeMultiplier, &r.TotalFare, &r.PerKmRate, &r.PerMinuteRate,
		&r.RequestedAt, &r.AcceptedAt, &r.DriverArrivedAt, &r.StartedAt, &r.CompletedAt, &r.CancelledAt,
		&r.CancelledBy, &r.CancellationReason, &r.UserRating, &r.UserFeedback, &r.DriverRating, &r.DriverFeedback,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRides(rows pgx.Rows) ([]Ride, error) {
	defer rows.Close()
	out := []Ride{}
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, r *Ride, e *Event) error {
	return infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO rides (
				id, user_id, driver_id, category_id,
				pickup_latitude, pickup_longitude, pickup_address,
				destination_latitude, destination_longitude, destination_address,
				estimated_distance_km, estimated_duration_minutes,
				status, status_version, payment_method_id, payment_status,
				base_fare, distance_fare, time_fare, surge_multiplier, total_fare, per_km_rate, per_minute_rate,
				requested_at
			) VALUES (
				$1, $2, $3, $4,
				$5, $6, $7,
				$8, $9, $10,
				$11, $12,
				$13, $14, $15, $16,
				$17, $18, $19, $20, $21, $22, $23,
				$24
			)`,
			string(r.ID), string(r.UserID), idPtr(r.DriverID), string(r.CategoryID),
			r.PickupLatitude, r.PickupLongitude, r.PickupAddress,
			r.DestinationLatitude, r.DestinationLongitude, r.DestinationAddress,
			r.EstimatedDistanceKm, r.EstimatedDurationMinutes,
			string(r.Status), r.StatusVersion, idPtr(r.PaymentMethodID), string(r.PaymentStatus),
			r.BaseFare, r.DistanceFare, r.TimeFare, r.SurgeMultiplier, r.TotalFare, r.PerKmRate, r.PerMinuteRate,
			r.RequestedAt,
		)
		if err != nil {
			return fmt.Errorf("insert ride: %w", err)
		}
		if e != nil {
			return appendEvent(ctx, tx, e)
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Ride, error) {
	r, err := scanRide(s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ride_id", "Ride not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return r, nil
}

// Apply writes the new ride state guarded by status and status_version, plus
// the driver side effects and the event, in one transaction.
func (s *Store) Apply(ctx context.Context, ch Change) error {
	r := ch.Ride
	err := infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE rides
			SET status = $1,
			    status_version = status_version + 1,
			    driver_id = $2,
			    accepted_at = $3,
			    driver_arrived_at = $4,
			    started_at = $5,
			    completed_at = $6,
			    cancelled_at = $7,
			    cancelled_by = $8,
			    cancellation_reason = $9,
			    actual_distance_km = $10,
			    actual_duration_minutes = $11,
			    distance_fare = $12,
			    time_fare = $13,
			    total_fare = $14,
			    user_rating = $15,
			    user_feedback = $16,
			    driver_rating = $17,
			    driver_feedback = $18
			WHERE id = $19 AND status = $20 AND status_version = $21`,
			string(r.Status), idPtr(r.DriverID),
			r.AcceptedAt, r.DriverArrivedAt, r.StartedAt, r.CompletedAt, r.CancelledAt,
			r.CancelledBy, r.CancellationReason,
			r.ActualDistanceKm, r.ActualDurationMinutes,
			r.DistanceFare, r.TimeFare, r.TotalFare,
			r.UserRating, r.UserFeedback, r.DriverRating, r.DriverFeedback,
			string(r.ID), string(ch.From), ch.Version,
		)
		if err != nil {
			return fmt.Errorf("update ride: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.Conflict("status", "Ride was updated by another request")
		}

		now := time.Now()
		if ch.Event != nil {
			now = ch.Event.CreatedAt
		}
		if ch.ClaimDriver && r.DriverID != nil {
			if err := driver.Claim(ctx, tx, *r.DriverID, now); err != nil {
				return err
			}
		}
		if ch.ReleaseDriver && r.DriverID != nil {
			if err := driver.Release(ctx, tx, *r.DriverID, ch.CountTrip, now); err != nil {
				return err
			}
		}
		if ch.RecomputeRating && r.DriverID != nil {
			if _, err := driver.RecomputeRating(ctx, tx, *r.DriverID, now); err != nil {
				return err
			}
		}
		if ch.Event != nil {
			return appendEvent(ctx, tx, ch.Event)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.StatusVersion = ch.Version + 1
	return nil
}

func appendEvent(ctx context.Context, tx infra.DBTX, e *Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ride_status_events (
			ride_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RideID),
		string(e.FromStatus),
		string(e.ToStatus),
		string(e.ActorType),
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append ride event: %w", err)
	}
	return nil
}

func (s *Store) Events(ctx context.Context, rideID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, from_status, to_status, actor_type, actor_id, created_at
		FROM ride_status_events WHERE ride_id = $1 ORDER BY id`, string(rideID))
	if err != nil {
		return nil, fmt.Errorf("list ride events: %w", err)
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RideID, &e.FromStatus, &e.ToStatus, &e.ActorType, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ride event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListByUser returns one page of the user's rides, newest first, and the
// number of rides matching the filter.
func (s *Store) ListByUser(ctx context.Context, f HistoryFilter) ([]Ride, int, error) {
	where := []string{"user_id = $1"}
	args := []any{string(f.UserID)}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("requested_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("requested_at <= $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM rides WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rides: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM rides WHERE %s
		ORDER BY requested_at DESC, id LIMIT $%d OFFSET $%d`, rideColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rides: %w", err)
	}
	rides, err := collectRides(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list rides: %w", err)
	}
	return rides, total, nil
}

// FirstActiveByUser returns the user's most recent non-terminal ride, or nil.
func (s *Store) FirstActiveByUser(ctx context.Context, userID types.ID) (*Ride, error) {
	return s.firstActive(ctx, "user_id", userID)
}

func (s *Store) FirstActiveByDriver(ctx context.Context, driverID types.ID) (*Ride, error) {
	return s.firstActive(ctx, "driver_id", driverID)
}

func (s *Store) firstActive(ctx context.Context, column string, id types.ID) (*Ride, error) {
	r, err := scanRide(s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides
		WHERE `+column+` = $1 AND status IN ('requested','accepted','arrived','in_progress')
		ORDER BY requested_at DESC LIMIT 1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active ride: %w", err)
	}
	return r, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
