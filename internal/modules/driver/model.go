// README: Driver profile, availability and last known position.
package driver

import (
	"time"

	"github.com/shopspring/decimal"

	"ridehail/internal/types"
)

type Driver struct {
	ID                   types.ID         `json:"id"`
	UserID               types.ID         `json:"user_id"`
	FullName             string           `json:"full_name"`
	VehicleMake          string           `json:"vehicle_make"`
	VehicleModel         string           `json:"vehicle_model"`
	VehicleYear          int              `json:"vehicle_year"`
	VehicleColor         string           `json:"vehicle_color"`
	VehicleLicensePlate  string           `json:"vehicle_license_plate"`
	DrivingLicenseNumber string           `json:"-"`
	IsActive             bool             `json:"is_active"`
	IsAvailable          bool             `json:"is_available"`
	Rating               decimal.Decimal  `json:"rating"`
	TotalRides           int              `json:"total_rides"`
	CurrentLatitude      *decimal.Decimal `json:"current_latitude"`
	CurrentLongitude     *decimal.Decimal `json:"current_longitude"`
	LastLocationUpdate   *time.Time       `json:"last_location_update,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}
