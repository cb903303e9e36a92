// README: Trajectory points and the ride facts location updates are checked against.
package location

import (
	"time"

	"github.com/shopspring/decimal"

	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type Point struct {
	ID        types.ID        `json:"id"`
	RideID    types.ID        `json:"ride_id"`
	Latitude  decimal.Decimal `json:"latitude"`
	Longitude decimal.Decimal `json:"longitude"`
	Timestamp time.Time       `json:"timestamp"`
}

// RideRef is the slice of a ride needed to authorize a location update.
type RideRef struct {
	ID       types.ID
	UserID   types.ID
	Status   ride.Status
	DriverID *types.ID
}
