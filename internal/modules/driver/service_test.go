package driver

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

type memDrivers struct {
	byID   map[types.ID]*Driver
	onTrip map[types.ID]bool
}

func (m *memDrivers) Get(_ context.Context, id types.ID) (*Driver, error) {
	d, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("driver", "Driver not found")
	}
	cp := *d
	return &cp, nil
}

func (m *memDrivers) GetByUserID(ctx context.Context, userID types.ID) (*Driver, error) {
	for _, d := range m.byID {
		if d.UserID == userID {
			return m.Get(ctx, d.ID)
		}
	}
	return nil, apperr.NotFound("driver", "Driver not found")
}

func (m *memDrivers) CountRecentlyActive(_ context.Context, since time.Time) (int, error) {
	n := 0
	for _, d := range m.byID {
		if d.IsActive && d.IsAvailable && d.LastLocationUpdate != nil && !d.LastLocationUpdate.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memDrivers) SetAvailability(_ context.Context, id types.ID, available bool, _ time.Time) error {
	d := m.byID[id]
	if !d.IsActive {
		return apperr.InvalidInput("is_available", "Driver account is not active")
	}
	if m.onTrip[id] {
		return apperr.Conflict("is_available", "Finish the current ride before changing availability")
	}
	d.IsAvailable = available
	return nil
}

type memIndex struct {
	removed []types.ID
}

func (m *memIndex) Put(context.Context, types.ID, types.Point) error { return nil }

func (m *memIndex) Remove(_ context.Context, id types.ID) error {
	m.removed = append(m.removed, id)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSetAvailability(t *testing.T) {
	store := &memDrivers{byID: map[types.ID]*Driver{
		"d1": {ID: "d1", UserID: "u1", IsActive: true, IsAvailable: true},
		"d2": {ID: "d2", UserID: "u2", IsActive: false},
	}}
	idx := &memIndex{}
	svc := NewService(store, idx, quietLogger())
	ctx := context.Background()

	d, err := svc.SetAvailability(ctx, "u1", false)
	if err != nil {
		t.Fatalf("go offline: %v", err)
	}
	if d.IsAvailable {
		t.Error("expected driver to be unavailable")
	}
	if len(idx.removed) != 1 || idx.removed[0] != "d1" {
		t.Errorf("expected position drop for d1, got %v", idx.removed)
	}

	if _, err := svc.SetAvailability(ctx, "u2", true); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("inactive driver: expected invalid input, got %v", err)
	}
	if _, err := svc.SetAvailability(ctx, "nobody", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown user: expected not found, got %v", err)
	}
}

func TestSetAvailabilityDuringTrip(t *testing.T) {
	store := &memDrivers{
		byID:   map[types.ID]*Driver{"d1": {ID: "d1", UserID: "u1", IsActive: true, IsAvailable: false}},
		onTrip: map[types.ID]bool{"d1": true},
	}
	idx := &memIndex{}
	svc := NewService(store, idx, quietLogger())
	ctx := context.Background()

	for _, available := range []bool{true, false} {
		if _, err := svc.SetAvailability(ctx, "u1", available); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("available=%v: expected conflict, got %v", available, err)
		}
	}
	if store.byID["d1"].IsAvailable {
		t.Error("driver on a trip must stay unavailable")
	}
	if len(idx.removed) != 0 {
		t.Errorf("position must be kept during a trip, removed %v", idx.removed)
	}

	store.onTrip["d1"] = false
	d, err := svc.SetAvailability(ctx, "u1", true)
	if err != nil {
		t.Fatalf("after trip: %v", err)
	}
	if !d.IsAvailable {
		t.Error("expected driver to be available after the trip")
	}
}

func TestCountRecentlyActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-5 * time.Minute)
	stale := now.Add(-20 * time.Minute)
	store := &memDrivers{byID: map[types.ID]*Driver{
		"a": {ID: "a", IsActive: true, IsAvailable: true, LastLocationUpdate: &recent},
		"b": {ID: "b", IsActive: true, IsAvailable: true, LastLocationUpdate: &stale},
		"c": {ID: "c", IsActive: true, IsAvailable: false, LastLocationUpdate: &recent},
		"d": {ID: "d", IsActive: true, IsAvailable: true},
	}}
	svc := NewService(store, nil, quietLogger())
	svc.now = func() time.Time { return now }

	n, err := svc.CountRecentlyActive(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestDriverIDForUser(t *testing.T) {
	store := &memDrivers{byID: map[types.ID]*Driver{"d1": {ID: "d1", UserID: "u1", IsActive: true}}}
	svc := NewService(store, nil, quietLogger())

	id, err := svc.DriverIDForUser(context.Background(), "u1")
	if err != nil || id != "d1" {
		t.Fatalf("got %q, %v", id, err)
	}
	if _, err := svc.DriverIDForUser(context.Background(), "rider"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for non-driver, got %v", err)
	}
}
