package ride

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"ridehail/internal/apperr"
	"ridehail/internal/modules/driver"
	"ridehail/internal/types"
)

type memDriver struct {
	available  bool
	totalRides int
	rating     decimal.Decimal
}

// memStore mirrors the Postgres store's guarded writes in memory.
type memStore struct {
	mu      sync.Mutex
	rides   map[types.ID]Ride
	drivers map[types.ID]*memDriver
	events  []Event
}

func newMemStore() *memStore {
	return &memStore{rides: map[types.ID]Ride{}, drivers: map[types.ID]*memDriver{}}
}

func (m *memStore) Create(_ context.Context, r *Ride, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = *r
	if e != nil {
		m.events = append(m.events, *e)
	}
	return nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, apperr.NotFound("ride_id", "Ride not found")
	}
	return &r, nil
}

func (m *memStore) Apply(_ context.Context, ch Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rides[ch.Ride.ID]
	if !ok || cur.Status != ch.From || cur.StatusVersion != ch.Version {
		return apperr.Conflict("status", "Ride was updated by another request")
	}
	var d *memDriver
	if ch.Ride.DriverID != nil {
		d = m.drivers[*ch.Ride.DriverID]
	}
	if ch.ClaimDriver {
		if d == nil || !d.available {
			return apperr.Conflict("driver", "Driver is not available")
		}
		d.available = false
	}
	if ch.ReleaseDriver && d != nil {
		d.available = true
		if ch.CountTrip {
			d.totalRides++
		}
	}

	next := *ch.Ride
	next.StatusVersion = ch.Version + 1
	m.rides[next.ID] = next
	ch.Ride.StatusVersion = next.StatusVersion

	if ch.RecomputeRating && d != nil {
		var ratings []int
		for _, r := range m.rides {
			if r.DriverID != nil && *r.DriverID == *ch.Ride.DriverID && r.UserRating != nil {
				ratings = append(ratings, *r.UserRating)
			}
		}
		d.rating = driver.MeanRating(ratings)
	}
	if ch.Event != nil {
		m.events = append(m.events, *ch.Event)
	}
	return nil
}

func (m *memStore) Events(_ context.Context, rideID types.ID) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.RideID == rideID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListByUser(_ context.Context, f HistoryFilter) ([]Ride, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Ride
	for _, r := range m.rides {
		if r.UserID != f.UserID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.From != nil && r.RequestedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && r.RequestedAt.After(*f.To) {
			continue
		}
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RequestedAt.After(all[j].RequestedAt) })
	total := len(all)
	if f.Offset >= len(all) {
		return []Ride{}, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (m *memStore) FirstActiveByUser(_ context.Context, userID types.ID) (*Ride, error) {
	return m.firstActive(func(r Ride) bool { return r.UserID == userID })
}

func (m *memStore) FirstActiveByDriver(_ context.Context, driverID types.ID) (*Ride, error) {
	return m.firstActive(func(r Ride) bool { return r.DriverID != nil && *r.DriverID == driverID })
}

func (m *memStore) firstActive(match func(Ride) bool) (*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Ride
	for _, r := range m.rides {
		if !match(r) || r.Status.Terminal() {
			continue
		}
		if best == nil || r.RequestedAt.After(best.RequestedAt) {
			cp := r
			best = &cp
		}
	}
	return best, nil
}
