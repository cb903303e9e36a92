// README: Location update authorization.
package location

import (
	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

const inactiveRide = "No active ride found with this ID"

// Authorize accepts an update only for an existing ride that is accepted,
// arrived or in progress and bound to driverID.
func Authorize(ref *RideRef, driverID types.ID) error {
	if ref == nil {
		return apperr.NotFound("ride_id", inactiveRide)
	}
	if !ref.Status.Trackable() || ref.DriverID == nil || *ref.DriverID != driverID {
		return apperr.Unauthorized("ride_id", inactiveRide)
	}
	return nil
}
