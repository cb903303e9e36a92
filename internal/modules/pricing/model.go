// README: Ride category fare policy and fare breakdown types.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"ridehail/internal/types"
)

type Category struct {
	ID            types.ID        `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	BaseFare      decimal.Decimal `json:"base_fare"`
	PerKmRate     decimal.Decimal `json:"per_km_rate"`
	PerMinuteRate decimal.Decimal `json:"per_minute_rate"`
	Capacity      int             `json:"capacity"`
	ImageURL      *string         `json:"image,omitempty"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Rates is the part of a category a fare depends on. Rides keep their own copy
// so later category edits never change a ride's price.
type Rates struct {
	BaseFare      decimal.Decimal
	PerKmRate     decimal.Decimal
	PerMinuteRate decimal.Decimal
}

func (c Category) Rates() Rates {
	return Rates{BaseFare: c.BaseFare, PerKmRate: c.PerKmRate, PerMinuteRate: c.PerMinuteRate}
}

type FareRequest struct {
	Rates           Rates
	Active          bool
	DistanceKm      decimal.Decimal
	DurationMinutes int
	// Surge zero means no surge (1.0).
	Surge decimal.Decimal
}

type Breakdown struct {
	BaseFare        decimal.Decimal `json:"base_fare"`
	DistanceFare    decimal.Decimal `json:"distance_fare"`
	TimeFare        decimal.Decimal `json:"time_fare"`
	SurgeMultiplier decimal.Decimal `json:"surge_multiplier"`
	TotalFare       decimal.Decimal `json:"total_fare"`
}
