package home

import (
	"context"
	"errors"
	"testing"
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/modules/account"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type fakeAccounts struct {
	users   map[types.ID]*account.User
	hasHome bool
}

func (f *fakeAccounts) Profile(_ context.Context, uid types.ID) (*account.User, error) {
	u, ok := f.users[uid]
	if !ok {
		return nil, apperr.NotFound("user", "Profile not found")
	}
	return u, nil
}

func (f *fakeAccounts) Locations(context.Context, types.ID) ([]account.SavedLocation, error) {
	return []account.SavedLocation{{Name: "Home", Type: account.LocationHome, IsFavorite: f.hasHome}}, nil
}

func (f *fakeAccounts) HasFavoriteHome(context.Context, types.ID) (bool, error) {
	return f.hasHome, nil
}

type fakeDrivers struct {
	calls  int
	window time.Duration
}

func (f *fakeDrivers) CountRecentlyActive(_ context.Context, window time.Duration) (int, error) {
	f.calls++
	f.window = window
	return 4, nil
}

type fakeCategories struct{}

func (fakeCategories) ListActive(context.Context) ([]pricing.Category, error) {
	return []pricing.Category{{Name: "Economy", IsActive: true}}, nil
}

type fakeRides struct{ n int }

func (f *fakeRides) Recent(_ context.Context, _ types.ID, n int) ([]ride.Ride, error) {
	f.n = n
	return []ride.Ride{{Status: ride.StatusCompleted}}, nil
}

func TestLoad(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		hasHome    bool
		wantNearby int
		wantCalls  int
	}{
		{"with favorite home", true, 4, 1},
		{"without favorite home", false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &fakeAccounts{users: map[types.ID]*account.User{"u1": {ID: "u1"}}, hasHome: tt.hasHome}
			drivers := &fakeDrivers{}
			rides := &fakeRides{}
			svc := NewService(accounts, drivers, fakeCategories{}, rides, 15*time.Minute)
			svc.now = func() time.Time { return now }

			data, err := svc.Load(context.Background(), "u1")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if data.NearbyDriversCount != tt.wantNearby || drivers.calls != tt.wantCalls {
				t.Errorf("nearby = %d (calls %d), want %d (calls %d)", data.NearbyDriversCount, drivers.calls, tt.wantNearby, tt.wantCalls)
			}
			if tt.wantCalls > 0 && drivers.window != 15*time.Minute {
				t.Errorf("window = %v", drivers.window)
			}
			if rides.n != 3 {
				t.Errorf("recent rides requested = %d, want 3", rides.n)
			}
			if len(data.Categories) != 1 || len(data.RecentRides) != 1 || len(data.SavedLocations) != 1 {
				t.Errorf("unexpected aggregate %+v", data)
			}
			if len(data.Promotions) != 2 {
				t.Fatalf("promotions = %d", len(data.Promotions))
			}
			if !data.Promotions[0].ExpiresAt.Equal(now.AddDate(0, 0, 7)) || !data.Promotions[1].ExpiresAt.Equal(now.AddDate(0, 0, 30)) {
				t.Errorf("promotion expiry = %v, %v", data.Promotions[0].ExpiresAt, data.Promotions[1].ExpiresAt)
			}
		})
	}
}

func TestLoad_MissingProfile(t *testing.T) {
	svc := NewService(&fakeAccounts{}, &fakeDrivers{}, fakeCategories{}, &fakeRides{}, time.Minute)
	if _, err := svc.Load(context.Background(), "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
