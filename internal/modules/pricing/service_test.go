package pricing

import (
	"context"
	"errors"
	"testing"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

type memCategories map[types.ID]Category

func (m memCategories) Get(_ context.Context, id types.ID) (*Category, error) {
	c, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("category_id", "Invalid ride category")
	}
	return &c, nil
}

func (m memCategories) ListActive(_ context.Context) ([]Category, error) {
	var out []Category
	for _, c := range m {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestService_GetAndListActive(t *testing.T) {
	r := standardRates()
	store := memCategories{
		"standard": {ID: "standard", Name: "Standard", BaseFare: r.BaseFare, PerKmRate: r.PerKmRate, PerMinuteRate: r.PerMinuteRate, IsActive: true},
		"retired":  {ID: "retired", Name: "Retired", BaseFare: r.BaseFare, PerKmRate: r.PerKmRate, PerMinuteRate: r.PerMinuteRate},
	}
	svc := NewService(store)
	ctx := context.Background()

	c, err := svc.Get(ctx, "standard")
	if err != nil || c.Name != "Standard" {
		t.Fatalf("get = %+v, %v", c, err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing category: expected not found, got %v", err)
	}

	active, err := svc.ListActive(ctx)
	if err != nil || len(active) != 1 || active[0].ID != "standard" {
		t.Errorf("list active = %+v, %v", active, err)
	}
}
