// README: Pricing service serves the ride categories a passenger can book.
package pricing

import (
	"context"

	"ridehail/internal/types"
)

type CategoryStore interface {
	Get(ctx context.Context, id types.ID) (*Category, error)
	ListActive(ctx context.Context) ([]Category, error)
}

type Service struct {
	store CategoryStore
}

func NewService(store CategoryStore) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Category, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListActive(ctx context.Context) ([]Category, error) {
	return s.store.ListActive(ctx)
}
