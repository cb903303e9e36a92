// README: Location service validates and records driver location updates and serves ride trajectories.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

type PointStore interface {
	Ref(ctx context.Context, rideID types.ID) (*RideRef, error)
	Record(ctx context.Context, p *Point, check func(*RideRef) error) error
	ListByRide(ctx context.Context, rideID types.ID) ([]Point, error)
}

type DriverResolver interface {
	DriverIDForUser(ctx context.Context, userID types.ID) (types.ID, error)
}

type PositionIndex interface {
	Put(ctx context.Context, id types.ID, p types.Point) error
}

type Service struct {
	store   PointStore
	drivers DriverResolver
	index   PositionIndex
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService accepts a nil index when Redis is not configured.
func NewService(store PointStore, drivers DriverResolver, index PositionIndex, log logrus.FieldLogger) *Service {
	return &Service{store: store, drivers: drivers, index: index, log: log, now: time.Now}
}

type SubmitCommand struct {
	UserID    types.ID
	RideID    string
	Latitude  decimal.Decimal
	Longitude decimal.Decimal
}

var (
	minLat = decimal.NewFromInt(-90)
	maxLat = decimal.NewFromInt(90)
	minLng = decimal.NewFromInt(-180)
	maxLng = decimal.NewFromInt(180)
)

// Submit appends a trajectory point for the caller's active ride and moves
// the caller's driver position to it.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Point, error) {
	if cmd.RideID == "" {
		return nil, apperr.InvalidInput("ride_id", "This field is required")
	}
	if cmd.Latitude.LessThan(minLat) || cmd.Latitude.GreaterThan(maxLat) {
		return nil, apperr.InvalidInput("latitude", "Latitude must be between -90 and 90")
	}
	if cmd.Longitude.LessThan(minLng) || cmd.Longitude.GreaterThan(maxLng) {
		return nil, apperr.InvalidInput("longitude", "Longitude must be between -180 and 180")
	}
	rideID, ok := types.ParseID(cmd.RideID)
	if !ok {
		return nil, apperr.NotFound("ride_id", inactiveRide)
	}

	driverID, err := s.drivers.DriverIDForUser(ctx, cmd.UserID)
	if errors.Is(err, apperr.ErrUnauthorized) {
		return nil, apperr.Unauthorized("ride_id", inactiveRide)
	}
	if err != nil {
		return nil, err
	}

	p := &Point{
		ID:        types.NewID(),
		RideID:    rideID,
		Latitude:  cmd.Latitude,
		Longitude: cmd.Longitude,
		Timestamp: s.now(),
	}
	err = s.store.Record(ctx, p, func(ref *RideRef) error {
		return Authorize(ref, driverID)
	})
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		pos := types.Point{Lat: p.Latitude.InexactFloat64(), Lng: p.Longitude.InexactFloat64()}
		if err := s.index.Put(ctx, driverID, pos); err != nil {
			s.log.WithError(err).WithField("driver_id", driverID).Warn("mirror driver position")
		}
	}
	return p, nil
}

// Trajectory lists a ride's points for its rider or its bound driver.
func (s *Service) Trajectory(ctx context.Context, rideID, userID types.ID) ([]Point, error) {
	ref, err := s.store.Ref(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, apperr.NotFound("ride_id", "Ride not found")
	}
	if ref.UserID != userID {
		driverID, err := s.drivers.DriverIDForUser(ctx, userID)
		if err != nil || ref.DriverID == nil || *ref.DriverID != driverID {
			return nil, apperr.NotFound("ride_id", "Ride not found")
		}
	}
	return s.store.ListByRide(ctx, rideID)
}
