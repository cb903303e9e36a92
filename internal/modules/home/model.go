// README: Home screen aggregate and the static promotion catalogue.
package home

import (
	"time"

	"ridehail/internal/modules/account"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/ride"
)

type Promotion struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
	ImageURL    string    `json:"image_url"`
}

type Data struct {
	User               *account.User           `json:"user"`
	SavedLocations     []account.SavedLocation `json:"saved_locations"`
	NearbyDriversCount int                     `json:"nearby_drivers_count"`
	Categories         []pricing.Category      `json:"categories"`
	RecentRides        []ride.Ride             `json:"recent_rides"`
	Promotions         []Promotion             `json:"promotions"`
}

// Promotions returns the current offers with expiry relative to now.
func Promotions(now time.Time) []Promotion {
	return []Promotion{
		{
			ID:          "1",
			Title:       "20% Off Your Next Ride",
			Description: "Use code WELCOME20 for 20% off your next ride",
			Code:        "WELCOME20",
			ExpiresAt:   now.AddDate(0, 0, 7),
			ImageURL:    "https://example.com/promotions/welcome20.jpg",
		},
		{
			ID:          "2",
			Title:       "Refer a Friend",
			Description: "Refer a friend and you both get free rides",
			Code:        "REFER10",
			ExpiresAt:   now.AddDate(0, 0, 30),
			ImageURL:    "https://example.com/promotions/refer.jpg",
		},
	}
}
