package location

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"ridehail/internal/apperr"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type position struct {
	lat, lng string
	at       time.Time
}

// memPoints applies the point and the driver position under one lock, like
// the Postgres transaction.
type memPoints struct {
	mu        sync.Mutex
	rides     map[types.ID]*RideRef
	points    []Point
	positions map[types.ID]position
}

func (m *memPoints) Ref(_ context.Context, id types.ID) (*RideRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.rides[id]
	if !ok {
		return nil, nil
	}
	cp := *ref
	return &cp, nil
}

func (m *memPoints) Record(_ context.Context, p *Point, check func(*RideRef) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := m.rides[p.RideID]
	if err := check(ref); err != nil {
		return err
	}
	m.points = append(m.points, *p)
	m.positions[*ref.DriverID] = position{lat: p.Latitude.String(), lng: p.Longitude.String(), at: p.Timestamp}
	return nil
}

func (m *memPoints) ListByRide(_ context.Context, id types.ID) ([]Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Point
	for _, p := range m.points {
		if p.RideID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

type driverUsers map[types.ID]types.ID

func (m driverUsers) DriverIDForUser(_ context.Context, userID types.ID) (types.ID, error) {
	if id, ok := m[userID]; ok {
		return id, nil
	}
	return "", apperr.Unauthorized("driver", "A driver profile is required")
}

type memIndex struct {
	puts map[types.ID]types.Point
}

func (m *memIndex) Put(_ context.Context, id types.ID, p types.Point) error {
	m.puts[id] = p
	return nil
}

const (
	activeRide   = types.ID("5b0f3c52-7c2e-4a55-9e34-3f1f3f0a9a01")
	finishedRide = types.ID("5b0f3c52-7c2e-4a55-9e34-3f1f3f0a9a02")
	unknownRide  = "5b0f3c52-7c2e-4a55-9e34-3f1f3f0a9a03"
)

func newTestService() (*Service, *memPoints, *memIndex) {
	d1, d2 := types.ID("d1"), types.ID("d2")
	store := &memPoints{
		rides: map[types.ID]*RideRef{
			activeRide:   {ID: activeRide, UserID: "rider", Status: ride.StatusInProgress, DriverID: &d1},
			finishedRide: {ID: finishedRide, UserID: "rider", Status: ride.StatusCompleted, DriverID: &d2},
		},
		positions: map[types.ID]position{},
	}
	idx := &memIndex{puts: map[types.ID]types.Point{}}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := NewService(store, driverUsers{"du1": "d1", "du2": "d2"}, idx, logger)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return svc, store, idx
}

func TestSubmit_BoundDriverUpdatesTrajectoryAndPosition(t *testing.T) {
	svc, store, idx := newTestService()
	p, err := svc.Submit(context.Background(), SubmitCommand{
		UserID:    "du1",
		RideID:    string(activeRide),
		Latitude:  types.Money("25.040100"),
		Longitude: types.Money("121.550200"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(store.points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(store.points))
	}
	pos, ok := store.positions["d1"]
	if !ok || pos.lat != "25.0401" || pos.lng != "121.5502" {
		t.Fatalf("driver position = %+v", pos)
	}
	if !pos.at.Equal(p.Timestamp) {
		t.Errorf("position time %v differs from point time %v", pos.at, p.Timestamp)
	}
	if got := idx.puts["d1"]; got.Lat != 25.0401 {
		t.Errorf("geo mirror = %+v", got)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name string
		cmd  SubmitCommand
		want error
	}{
		{"missing ride id", SubmitCommand{UserID: "du1", Latitude: types.Money("1"), Longitude: types.Money("1")}, apperr.ErrInvalidInput},
		{"latitude out of range", SubmitCommand{UserID: "du1", RideID: string(activeRide), Latitude: types.Money("90.5"), Longitude: types.Money("1")}, apperr.ErrInvalidInput},
		{"longitude out of range", SubmitCommand{UserID: "du1", RideID: string(activeRide), Latitude: types.Money("1"), Longitude: types.Money("-180.1")}, apperr.ErrInvalidInput},
		{"malformed ride id", SubmitCommand{UserID: "du1", RideID: "abc", Latitude: types.Money("1"), Longitude: types.Money("1")}, apperr.ErrNotFound},
		{"unknown ride", SubmitCommand{UserID: "du1", RideID: unknownRide, Latitude: types.Money("1"), Longitude: types.Money("1")}, apperr.ErrNotFound},
		{"driver not bound", SubmitCommand{UserID: "du2", RideID: string(activeRide), Latitude: types.Money("1"), Longitude: types.Money("1")}, apperr.ErrUnauthorized},
		{"not a driver", SubmitCommand{UserID: "rider", RideID: string(activeRide), Latitude: types.Money("1"), Longitude: types.Money("1")}, apperr.ErrUnauthorized},
		{"finished ride", SubmitCommand{UserID: "du2", RideID: string(finishedRide), Latitude: types.Money("1"), Longitude: types.Money("1")}, apperr.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, idx := newTestService()
			_, err := svc.Submit(context.Background(), tt.cmd)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(store.points) != 0 || len(store.positions) != 0 || len(idx.puts) != 0 {
				t.Fatal("rejected update must not write anything")
			}
		})
	}
}

func TestTrajectory(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for _, lat := range []string{"25.01", "25.02"} {
		if _, err := svc.Submit(ctx, SubmitCommand{UserID: "du1", RideID: string(activeRide), Latitude: types.Money(lat), Longitude: types.Money("121.5")}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	for _, viewer := range []types.ID{"rider", "du1"} {
		pts, err := svc.Trajectory(ctx, activeRide, viewer)
		if err != nil || len(pts) != 2 {
			t.Fatalf("%s: got %d points, %v", viewer, len(pts), err)
		}
	}
	if _, err := svc.Trajectory(ctx, activeRide, "du2"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unrelated driver: expected not found, got %v", err)
	}
	if _, err := svc.Trajectory(ctx, types.ID(unknownRide), "rider"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown ride: expected not found, got %v", err)
	}
}
