// README: Driver service exposes the driver's own profile and availability toggle.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

type DriverStore interface {
	Get(ctx context.Context, id types.ID) (*Driver, error)
	GetByUserID(ctx context.Context, userID types.ID) (*Driver, error)
	CountRecentlyActive(ctx context.Context, since time.Time) (int, error)
	SetAvailability(ctx context.Context, id types.ID, available bool, now time.Time) error
}

type PositionIndex interface {
	Put(ctx context.Context, id types.ID, p types.Point) error
	Remove(ctx context.Context, id types.ID) error
}

type Service struct {
	store DriverStore
	index PositionIndex
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewService accepts a nil index when Redis is not configured.
func NewService(store DriverStore, index PositionIndex, log logrus.FieldLogger) *Service {
	return &Service{store: store, index: index, log: log, now: time.Now}
}

// DriverIDForUser resolves the caller's driver profile. Callers without one
// are not drivers and get Unauthorized.
func (s *Service) DriverIDForUser(ctx context.Context, userID types.ID) (types.ID, error) {
	d, err := s.store.GetByUserID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", apperr.Unauthorized("driver", "A driver profile is required")
	}
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

func (s *Service) CountRecentlyActive(ctx context.Context, window time.Duration) (int, error) {
	return s.store.CountRecentlyActive(ctx, s.now().Add(-window))
}

func (s *Service) SetAvailability(ctx context.Context, userID types.ID, available bool) (*Driver, error) {
	d, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetAvailability(ctx, d.ID, available, s.now()); err != nil {
		return nil, err
	}
	if !available && s.index != nil {
		if err := s.index.Remove(ctx, d.ID); err != nil {
			s.log.WithError(err).WithField("driver_id", d.ID).Warn("drop driver position")
		}
	}
	return s.store.Get(ctx, d.ID)
}
