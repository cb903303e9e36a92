// README: Pure ride transitions; each validates the current status and applies its side effects in place.
package ride

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ridehail/internal/apperr"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

// Actuals are the measured trip figures reported at completion.
type Actuals struct {
	DistanceKm      decimal.Decimal
	DurationMinutes int
}

func statusError(r *Ride) error {
	return apperr.InvalidTransition("status", fmt.Sprintf("Ride status is %s", r.Status))
}

func advance(r *Ride, to Status) error {
	if !CanTransition(r.Status, to) {
		return statusError(r)
	}
	r.Status = to
	return nil
}

// Accept binds the driver to a requested ride. Any other status means
// someone else got there first.
func Accept(r *Ride, driverID types.ID, now time.Time) error {
	if r.Status != StatusRequested {
		return apperr.Conflict("status", fmt.Sprintf("Ride is already %s", r.Status))
	}
	r.Status = StatusAccepted
	r.DriverID = &driverID
	r.AcceptedAt = &now
	return nil
}

func Arrive(r *Ride, now time.Time) error {
	if err := advance(r, StatusArrived); err != nil {
		return err
	}
	r.DriverArrivedAt = &now
	return nil
}

func Start(r *Ride, now time.Time) error {
	if err := advance(r, StatusInProgress); err != nil {
		return err
	}
	r.StartedAt = &now
	return nil
}

// Complete finishes the trip. When actuals are given the fare is recomputed
// from them with the rates captured at request time, otherwise the estimate
// based fare stands.
func Complete(r *Ride, actuals *Actuals, now time.Time) error {
	if r.Status != StatusInProgress {
		return statusError(r)
	}
	if actuals != nil {
		fare, err := pricing.Calculate(pricing.FareRequest{
			Rates:           r.snapshotRates(),
			Active:          true,
			DistanceKm:      actuals.DistanceKm,
			DurationMinutes: actuals.DurationMinutes,
			Surge:           r.SurgeMultiplier,
		})
		if err != nil {
			return err
		}
		dist := actuals.DistanceKm
		dur := actuals.DurationMinutes
		r.ActualDistanceKm = &dist
		r.ActualDurationMinutes = &dur
		r.Breakdown = fare
	}
	r.Status = StatusCompleted
	r.CompletedAt = &now
	return nil
}

// Cancel is only possible before the driver has arrived.
func Cancel(r *Ride, by Actor, reason string, now time.Time) error {
	if !CanTransition(r.Status, StatusCancelled) {
		return apperr.InvalidTransition("status", fmt.Sprintf("Ride is already %s", r.Status))
	}
	if !by.Valid() {
		return apperr.InvalidInput("cancelled_by", "Unknown cancelling party")
	}
	if reason == "" {
		reason = "Cancelled by " + string(by)
	}
	r.Status = StatusCancelled
	r.CancelledAt = &now
	r.CancelledBy = &by
	r.CancellationReason = &reason
	return nil
}

// Rate records the passenger's rating of a completed trip.
func Rate(r *Ride, rating int, feedback *string) error {
	return applyRating(r, &r.UserRating, &r.UserFeedback, "user_rating", rating, feedback)
}

// RatePassenger records the driver's rating of the passenger.
func RatePassenger(r *Ride, rating int, feedback *string) error {
	return applyRating(r, &r.DriverRating, &r.DriverFeedback, "driver_rating", rating, feedback)
}

func applyRating(r *Ride, slot **int, note **string, field string, rating int, feedback *string) error {
	if r.Status != StatusCompleted {
		return statusError(r)
	}
	if *slot != nil {
		return apperr.AlreadyRated(field, "Ride is already rated")
	}
	if rating < 1 || rating > 5 {
		return apperr.InvalidInput(field, "Rating must be between 1 and 5")
	}
	*slot = &rating
	*note = feedback
	return nil
}

// RequireDriver fails unless driverID is the driver bound to the ride.
func RequireDriver(r *Ride, driverID types.ID) error {
	if r.DriverID == nil || *r.DriverID != driverID {
		return apperr.Unauthorized("ride_id", "Ride is not assigned to this driver")
	}
	return nil
}

// CheckInvariants reports the first disagreement between the status and the
// lifecycle timestamps.
func CheckInvariants(r *Ride) error {
	if !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.CompletedAt != nil && r.CancelledAt != nil {
		return fmt.Errorf("ride %s is both completed and cancelled", r.ID)
	}
	if (r.Status == StatusCompleted) != (r.CompletedAt != nil) {
		return fmt.Errorf("ride %s: status %s disagrees with completed_at", r.ID, r.Status)
	}
	if (r.Status == StatusCancelled) != (r.CancelledAt != nil) {
		return fmt.Errorf("ride %s: status %s disagrees with cancelled_at", r.ID, r.Status)
	}

	// Number of accepted/arrived/started stamps each status implies.
	depth := map[Status]int{
		StatusRequested:  0,
		StatusAccepted:   1,
		StatusArrived:    2,
		StatusInProgress: 3,
		StatusCompleted:  3,
		StatusCancelled:  1,
	}[r.Status]
	stamps := []*time.Time{r.AcceptedAt, r.DriverArrivedAt, r.StartedAt}
	for i, at := range stamps {
		set := at != nil
		want := i < depth
		if r.Status == StatusCancelled && i == 0 {
			want = set
		}
		if set != want {
			return fmt.Errorf("ride %s: status %s disagrees with lifecycle timestamps", r.ID, r.Status)
		}
	}
	if r.AcceptedAt != nil && r.DriverID == nil {
		return fmt.Errorf("ride %s: accepted without a driver", r.ID)
	}

	prev := r.RequestedAt
	for _, at := range []*time.Time{r.AcceptedAt, r.DriverArrivedAt, r.StartedAt, r.CompletedAt, r.CancelledAt} {
		if at == nil {
			continue
		}
		if at.Before(prev) {
			return fmt.Errorf("ride %s: lifecycle timestamps go backwards", r.ID)
		}
		prev = *at
	}
	return nil
}
