// README: Home service assembles profile, places, nearby drivers, categories, recent rides and promotions.
package home

import (
	"context"
	"time"

	"ridehail/internal/modules/account"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

const recentRides = 3

type Accounts interface {
	Profile(ctx context.Context, uid types.ID) (*account.User, error)
	Locations(ctx context.Context, uid types.ID) ([]account.SavedLocation, error)
	HasFavoriteHome(ctx context.Context, uid types.ID) (bool, error)
}

type Drivers interface {
	CountRecentlyActive(ctx context.Context, window time.Duration) (int, error)
}

type Categories interface {
	ListActive(ctx context.Context) ([]pricing.Category, error)
}

type Rides interface {
	Recent(ctx context.Context, userID types.ID, n int) ([]ride.Ride, error)
}

type Service struct {
	accounts   Accounts
	drivers    Drivers
	categories Categories
	rides      Rides
	window     time.Duration
	now        func() time.Time
}

// NewService counts drivers seen within window as nearby.
func NewService(accounts Accounts, drivers Drivers, categories Categories, rides Rides, window time.Duration) *Service {
	return &Service{
		accounts:   accounts,
		drivers:    drivers,
		categories: categories,
		rides:      rides,
		window:     window,
		now:        time.Now,
	}
}

func (s *Service) Load(ctx context.Context, uid types.ID) (*Data, error) {
	user, err := s.accounts.Profile(ctx, uid)
	if err != nil {
		return nil, err
	}
	locations, err := s.accounts.Locations(ctx, uid)
	if err != nil {
		return nil, err
	}

	// Placeholder metric: recently active drivers, only for users with a
	// favorite home.
	nearby := 0
	hasHome, err := s.accounts.HasFavoriteHome(ctx, uid)
	if err != nil {
		return nil, err
	}
	if hasHome {
		if nearby, err = s.drivers.CountRecentlyActive(ctx, s.window); err != nil {
			return nil, err
		}
	}

	categories, err := s.categories.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	rides, err := s.rides.Recent(ctx, uid, recentRides)
	if err != nil {
		return nil, err
	}

	return &Data{
		User:               user,
		SavedLocations:     locations,
		NearbyDriversCount: nearby,
		Categories:         categories,
		RecentRides:        rides,
		Promotions:         Promotions(s.now()),
	}, nil
}
