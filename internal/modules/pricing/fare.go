// README: Fare calculation from category rates, distance, duration and surge.
package pricing

import (
	"github.com/shopspring/decimal"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

var NoSurge = decimal.NewFromInt(1)

// Calculate prices a trip. Every component is rounded half-up to cents and the
// total is computed from the rounded components, so the parts always add up.
func Calculate(req FareRequest) (Breakdown, error) {
	if !req.Active {
		return Breakdown{}, apperr.InvalidInput("category_id", "Ride category is not active")
	}
	if req.DistanceKm.IsNegative() {
		return Breakdown{}, apperr.InvalidInput("estimated_distance_km", "Distance must not be negative")
	}
	if req.DurationMinutes < 0 {
		return Breakdown{}, apperr.InvalidInput("estimated_duration_minutes", "Duration must not be negative")
	}
	surge := req.Surge
	if surge.IsZero() {
		surge = NoSurge
	}
	if surge.LessThan(NoSurge) {
		return Breakdown{}, apperr.InvalidInput("surge_multiplier", "Surge multiplier must be at least 1.0")
	}

	base := types.RoundMoney(req.Rates.BaseFare)
	distance := types.RoundMoney(req.Rates.PerKmRate.Mul(req.DistanceKm))
	timeFare := types.RoundMoney(req.Rates.PerMinuteRate.Mul(decimal.NewFromInt(int64(req.DurationMinutes))))
	total := types.RoundMoney(base.Add(distance).Add(timeFare).Mul(surge))

	return Breakdown{
		BaseFare:        base,
		DistanceFare:    distance,
		TimeFare:        timeFare,
		SurgeMultiplier: surge,
		TotalFare:       total,
	}, nil
}
