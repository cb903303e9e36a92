// README: Ride service orchestrates requests, transitions, ratings and queries against the store.
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ridehail/internal/apperr"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type RideStore interface {
	Create(ctx context.Context, r *Ride, e *Event) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	Apply(ctx context.Context, ch Change) error
	Events(ctx context.Context, rideID types.ID) ([]Event, error)
	ListByUser(ctx context.Context, f HistoryFilter) ([]Ride, int, error)
	FirstActiveByUser(ctx context.Context, userID types.ID) (*Ride, error)
	FirstActiveByDriver(ctx context.Context, driverID types.ID) (*Ride, error)
}

type Categories interface {
	Get(ctx context.Context, id types.ID) (*pricing.Category, error)
}

type PaymentResolver interface {
	// ResolvePaymentMethod returns explicit when it belongs to the user, else
	// the user's default, else nil.
	ResolvePaymentMethod(ctx context.Context, userID types.ID, explicit *types.ID) (*types.ID, error)
}

type DriverResolver interface {
	DriverIDForUser(ctx context.Context, userID types.ID) (types.ID, error)
}

type RouteEstimator interface {
	Estimate(ctx context.Context, from, to types.Point) (distanceKm float64, durationMin int, err error)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Deps struct {
	Store      RideStore
	Categories Categories
	Payments   PaymentResolver
	Drivers    DriverResolver
	// Routes fills in missing estimates; optional.
	Routes RouteEstimator
	// Events receives committed transitions; optional.
	Events Publisher
	Log    logrus.FieldLogger
	Now    func() time.Time
}

type Service struct {
	store      RideStore
	categories Categories
	payments   PaymentResolver
	drivers    DriverResolver
	routes     RouteEstimator
	events     Publisher
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      d.Store,
		categories: d.Categories,
		payments:   d.Payments,
		drivers:    d.Drivers,
		routes:     d.Routes,
		events:     d.Events,
		log:        d.Log,
		now:        now,
	}
}

type RequestCommand struct {
	UserID                   types.ID
	CategoryID               types.ID
	PaymentMethodID          *types.ID
	PickupLatitude           decimal.Decimal
	PickupLongitude          decimal.Decimal
	PickupAddress            string
	DestinationLatitude      decimal.Decimal
	DestinationLongitude     decimal.Decimal
	DestinationAddress       string
	EstimatedDistanceKm      *decimal.Decimal
	EstimatedDurationMinutes *int
}

type CancelCommand struct {
	RideID types.ID
	Actor  Actor
	// ActorID is the cancelling user id or driver id; empty for system.
	ActorID types.ID
	Reason  string
}

type RateCommand struct {
	RideID   types.ID
	UserID   types.ID
	Rating   int
	Feedback *string
}

type HistoryQuery struct {
	UserID   types.ID
	Status   Status
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type Page struct {
	Count    int    `json:"count"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Results  []Ride `json:"results"`
}

func (s *Service) Request(ctx context.Context, cmd RequestCommand) (*Ride, error) {
	pickup := types.Point{Lat: cmd.PickupLatitude.InexactFloat64(), Lng: cmd.PickupLongitude.InexactFloat64()}
	dest := types.Point{Lat: cmd.DestinationLatitude.InexactFloat64(), Lng: cmd.DestinationLongitude.InexactFloat64()}
	if !pickup.Valid() {
		return nil, apperr.InvalidInput("pickup_latitude", "Pickup coordinates are out of range")
	}
	if !dest.Valid() {
		return nil, apperr.InvalidInput("destination_latitude", "Destination coordinates are out of range")
	}

	cat, err := s.categories.Get(ctx, cmd.CategoryID)
	if err != nil {
		return nil, err
	}

	distance, duration, err := s.estimates(ctx, cmd, pickup, dest)
	if err != nil {
		return nil, err
	}

	fare, err := pricing.Calculate(pricing.FareRequest{
		Rates:           cat.Rates(),
		Active:          cat.IsActive,
		DistanceKm:      distance,
		DurationMinutes: duration,
		Surge:           pricing.NoSurge,
	})
	if err != nil {
		return nil, err
	}

	paymentID, err := s.payments.ResolvePaymentMethod(ctx, cmd.UserID, cmd.PaymentMethodID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &Ride{
		ID:                       types.NewID(),
		UserID:                   cmd.UserID,
		CategoryID:               cat.ID,
		PickupLatitude:           cmd.PickupLatitude,
		PickupLongitude:          cmd.PickupLongitude,
		PickupAddress:            cmd.PickupAddress,
		DestinationLatitude:      cmd.DestinationLatitude,
		DestinationLongitude:     cmd.DestinationLongitude,
		DestinationAddress:       cmd.DestinationAddress,
		EstimatedDistanceKm:      distance,
		EstimatedDurationMinutes: duration,
		Status:                   StatusRequested,
		PaymentMethodID:          paymentID,
		PaymentStatus:            PaymentPending,
		Breakdown:                fare,
		PerKmRate:                cat.PerKmRate,
		PerMinuteRate:            cat.PerMinuteRate,
		RequestedAt:              now,
	}
	userID := cmd.UserID
	ev := &Event{RideID: r.ID, FromStatus: StatusNone, ToStatus: StatusRequested, ActorType: ActorUser, ActorID: &userID, CreatedAt: now}
	if err := s.store.Create(ctx, r, ev); err != nil {
		return nil, err
	}
	s.committed(ctx, ev)
	return r, nil
}

func (s *Service) estimates(ctx context.Context, cmd RequestCommand, pickup, dest types.Point) (decimal.Decimal, int, error) {
	if cmd.EstimatedDistanceKm != nil && cmd.EstimatedDurationMinutes != nil {
		return *cmd.EstimatedDistanceKm, *cmd.EstimatedDurationMinutes, nil
	}
	if s.routes == nil {
		field := "estimated_distance_km"
		if cmd.EstimatedDistanceKm != nil {
			field = "estimated_duration_minutes"
		}
		return decimal.Zero, 0, apperr.InvalidInput(field, "This field is required")
	}
	km, minutes, err := s.routes.Estimate(ctx, pickup, dest)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("estimate route: %w", err)
	}
	distance := types.RoundMoney(decimal.NewFromFloat(km))
	if cmd.EstimatedDistanceKm != nil {
		distance = *cmd.EstimatedDistanceKm
	}
	if cmd.EstimatedDurationMinutes != nil {
		minutes = *cmd.EstimatedDurationMinutes
	}
	return distance, minutes, nil
}

// Accept binds the calling driver to the ride and marks the driver busy.
func (s *Service) Accept(ctx context.Context, rideID, driverUserID types.ID) (*Ride, error) {
	driverID, err := s.drivers.DriverIDForUser(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, rideID, StatusAccepted, ActorDriver, &driverID, func(r *Ride, now time.Time) (Change, error) {
		if err := Accept(r, driverID, now); err != nil {
			return Change{}, err
		}
		return Change{ClaimDriver: true}, nil
	})
}

func (s *Service) Arrive(ctx context.Context, rideID, driverUserID types.ID) (*Ride, error) {
	return s.driverStep(ctx, rideID, driverUserID, StatusArrived, func(r *Ride, now time.Time) (Change, error) {
		return Change{}, Arrive(r, now)
	})
}

func (s *Service) Start(ctx context.Context, rideID, driverUserID types.ID) (*Ride, error) {
	return s.driverStep(ctx, rideID, driverUserID, StatusInProgress, func(r *Ride, now time.Time) (Change, error) {
		return Change{}, Start(r, now)
	})
}

// Complete finishes the trip, frees the driver and counts the trip.
func (s *Service) Complete(ctx context.Context, rideID, driverUserID types.ID, actuals *Actuals) (*Ride, error) {
	return s.driverStep(ctx, rideID, driverUserID, StatusCompleted, func(r *Ride, now time.Time) (Change, error) {
		if err := Complete(r, actuals, now); err != nil {
			return Change{}, err
		}
		return Change{ReleaseDriver: true, CountTrip: true}, nil
	})
}

// Cancel cancels on behalf of the ride's user, its driver or the system.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Ride, error) {
	var actorID *types.ID
	switch cmd.Actor {
	case ActorUser:
		id := cmd.ActorID
		actorID = &id
	case ActorDriver:
		id, err := s.drivers.DriverIDForUser(ctx, cmd.ActorID)
		if err != nil {
			return nil, err
		}
		actorID = &id
	}
	return s.transition(ctx, cmd.RideID, StatusCancelled, cmd.Actor, actorID, func(r *Ride, now time.Time) (Change, error) {
		switch cmd.Actor {
		case ActorUser:
			if r.UserID != cmd.ActorID {
				return Change{}, apperr.NotFound("ride_id", "Ride not found")
			}
		case ActorDriver:
			if err := RequireDriver(r, *actorID); err != nil {
				return Change{}, err
			}
		}
		if err := Cancel(r, cmd.Actor, cmd.Reason, now); err != nil {
			return Change{}, err
		}
		return Change{ReleaseDriver: r.DriverID != nil}, nil
	})
}

// Rate stores the passenger's rating and refreshes the driver's average in
// the same transaction.
func (s *Service) Rate(ctx context.Context, cmd RateCommand) (*Ride, error) {
	r, err := s.owned(ctx, cmd.RideID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	from, version := r.Status, r.StatusVersion
	if err := Rate(r, cmd.Rating, cmd.Feedback); err != nil {
		return nil, err
	}
	err = s.store.Apply(ctx, Change{
		Ride:            r,
		From:            from,
		Version:         version,
		RecomputeRating: r.DriverID != nil,
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"ride_id": r.ID, "user_rating": cmd.Rating}).Info("ride rated")
	return r, nil
}

// RatePassenger stores the bound driver's rating of the passenger.
func (s *Service) RatePassenger(ctx context.Context, rideID, driverUserID types.ID, rating int, feedback *string) (*Ride, error) {
	driverID, err := s.drivers.DriverIDForUser(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := RequireDriver(r, driverID); err != nil {
		return nil, err
	}
	from, version := r.Status, r.StatusVersion
	if err := RatePassenger(r, rating, feedback); err != nil {
		return nil, err
	}
	if err := s.store.Apply(ctx, Change{Ride: r, From: from, Version: version}); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns a ride visible to its user.
func (s *Service) Get(ctx context.Context, rideID, userID types.ID) (*Ride, error) {
	return s.owned(ctx, rideID, userID)
}

func (s *Service) Events(ctx context.Context, rideID types.ID) ([]Event, error) {
	return s.store.Events(ctx, rideID)
}

func (s *Service) Active(ctx context.Context, userID types.ID) (*Ride, error) {
	return s.store.FirstActiveByUser(ctx, userID)
}

func (s *Service) DriverCurrent(ctx context.Context, driverUserID types.ID) (*Ride, error) {
	driverID, err := s.drivers.DriverIDForUser(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	return s.store.FirstActiveByDriver(ctx, driverID)
}

func (s *Service) History(ctx context.Context, q HistoryQuery) (*Page, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, apperr.InvalidInput("status", fmt.Sprintf("%q is not a valid ride status", q.Status))
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	rides, total, err := s.store.ListByUser(ctx, HistoryFilter{
		UserID: q.UserID,
		Status: q.Status,
		From:   q.From,
		To:     q.To,
		Limit:  q.PageSize,
		Offset: (q.Page - 1) * q.PageSize,
	})
	if err != nil {
		return nil, err
	}
	return &Page{Count: total, Page: q.Page, PageSize: q.PageSize, Results: rides}, nil
}

// Recent returns the user's latest n rides.
func (s *Service) Recent(ctx context.Context, userID types.ID, n int) ([]Ride, error) {
	rides, _, err := s.store.ListByUser(ctx, HistoryFilter{UserID: userID, Limit: n})
	return rides, err
}

func (s *Service) owned(ctx context.Context, rideID, userID types.ID) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, apperr.NotFound("ride_id", "Ride not found")
	}
	return r, nil
}

func (s *Service) driverStep(ctx context.Context, rideID, driverUserID types.ID, to Status, apply func(*Ride, time.Time) (Change, error)) (*Ride, error) {
	driverID, err := s.drivers.DriverIDForUser(ctx, driverUserID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, rideID, to, ActorDriver, &driverID, func(r *Ride, now time.Time) (Change, error) {
		if err := RequireDriver(r, driverID); err != nil {
			return Change{}, err
		}
		return apply(r, now)
	})
}

// transition loads the ride, lets apply mutate it, and commits the result
// guarded by the status and version that were read.
func (s *Service) transition(ctx context.Context, rideID types.ID, to Status, actor Actor, actorID *types.ID, apply func(*Ride, time.Time) (Change, error)) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	from, version := r.Status, r.StatusVersion
	now := s.now()

	ch, err := apply(r, now)
	if err != nil {
		return nil, err
	}
	if err := CheckInvariants(r); err != nil {
		return nil, fmt.Errorf("ride %s: %w", r.ID, err)
	}
	ch.Ride = r
	ch.From = from
	ch.Version = version
	ch.Event = &Event{RideID: r.ID, FromStatus: from, ToStatus: to, ActorType: actor, ActorID: actorID, CreatedAt: now}

	if err := s.store.Apply(ctx, ch); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			conflictsTotal.WithLabelValues(string(to)).Inc()
		}
		return nil, err
	}
	s.committed(ctx, ch.Event)
	return r, nil
}

type StatusChanged struct {
	RideID    types.ID  `json:"ride_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ActorType Actor     `json:"actor_type"`
	ActorID   *types.ID `json:"actor_id,omitempty"`
	At        time.Time `json:"at"`
}

func (s *Service) committed(ctx context.Context, e *Event) {
	transitionsTotal.WithLabelValues(string(e.ToStatus)).Inc()
	s.log.WithFields(logrus.Fields{
		"ride_id": e.RideID,
		"from":    e.FromStatus,
		"to":      e.ToStatus,
		"actor":   e.ActorType,
	}).Info("ride transition")

	if s.events == nil {
		return
	}
	msg := StatusChanged{RideID: e.RideID, From: e.FromStatus, To: e.ToStatus, ActorType: e.ActorType, ActorID: e.ActorID, At: e.CreatedAt}
	if err := s.events.Publish(ctx, "ride.status."+string(e.ToStatus), msg); err != nil {
		s.log.WithError(err).WithField("ride_id", e.RideID).Warn("publish ride event")
	}
}
