// README: Ride aggregate, status definitions and the transition table.
package ride

import (
	"time"

	"github.com/shopspring/decimal"

	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusRequested  Status = "requested"
	StatusAccepted   Status = "accepted"
	StatusArrived    Status = "arrived"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusAccepted, StatusArrived, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Trackable statuses accept driver location updates.
func (s Status) Trackable() bool {
	return s == StatusAccepted || s == StatusArrived || s == StatusInProgress
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Actor string

const (
	ActorUser   Actor = "user"
	ActorDriver Actor = "driver"
	ActorSystem Actor = "system"
)

func (a Actor) Valid() bool {
	return a == ActorUser || a == ActorDriver || a == ActorSystem
}

type Ride struct {
	ID         types.ID  `json:"id"`
	UserID     types.ID  `json:"user_id"`
	DriverID   *types.ID `json:"driver_id"`
	CategoryID types.ID  `json:"category_id"`

	PickupLatitude       decimal.Decimal `json:"pickup_latitude"`
	PickupLongitude      decimal.Decimal `json:"pickup_longitude"`
	PickupAddress        string          `json:"pickup_address"`
	DestinationLatitude  decimal.Decimal `json:"destination_latitude"`
	DestinationLongitude decimal.Decimal `json:"destination_longitude"`
	DestinationAddress   string          `json:"destination_address"`

	EstimatedDistanceKm      decimal.Decimal  `json:"estimated_distance_km"`
	EstimatedDurationMinutes int              `json:"estimated_duration_minutes"`
	ActualDistanceKm         *decimal.Decimal `json:"actual_distance_km"`
	ActualDurationMinutes    *int             `json:"actual_duration_minutes"`

	Status        Status `json:"status"`
	StatusVersion int    `json:"-"`

	PaymentMethodID *types.ID     `json:"payment_method_id"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	pricing.Breakdown
	// Category rates captured at request time.
	PerKmRate     decimal.Decimal `json:"-"`
	PerMinuteRate decimal.Decimal `json:"-"`

	RequestedAt     time.Time  `json:"requested_at"`
	AcceptedAt      *time.Time `json:"accepted_at"`
	DriverArrivedAt *time.Time `json:"driver_arrived_at"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CancelledAt     *time.Time `json:"cancelled_at"`

	CancelledBy        *Actor  `json:"cancelled_by"`
	CancellationReason *string `json:"cancellation_reason"`

	UserRating     *int    `json:"user_rating"`
	UserFeedback   *string `json:"user_feedback"`
	DriverRating   *int    `json:"driver_rating"`
	DriverFeedback *string `json:"driver_feedback"`
}

func (r *Ride) Pickup() types.Point {
	return types.Point{Lat: r.PickupLatitude.InexactFloat64(), Lng: r.PickupLongitude.InexactFloat64()}
}

func (r *Ride) Destination() types.Point {
	return types.Point{Lat: r.DestinationLatitude.InexactFloat64(), Lng: r.DestinationLongitude.InexactFloat64()}
}

func (r *Ride) snapshotRates() pricing.Rates {
	return pricing.Rates{BaseFare: r.BaseFare, PerKmRate: r.PerKmRate, PerMinuteRate: r.PerMinuteRate}
}

type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  Actor
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the ride state flow (diagram) as code.
var AllowedTransitions = map[Status][]Status{
	StatusRequested:  {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusArrived, StatusCancelled},
	StatusArrived:    {StatusInProgress},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
