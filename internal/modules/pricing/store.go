// README: Ride category store backed by PostgreSQL with a Redis cache of active categories.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

const activeCategoriesKey = "pricing:categories:active"

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
	ttl   time.Duration
}

// NewStore caches the active list for ttl when rdb is non-nil.
func NewStore(db *pgxpool.Pool, rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{db: db, redis: rdb, ttl: ttl}
}

const categoryColumns = `id, name, description, base_fare, per_km_rate, per_minute_rate,
	capacity, image_url, is_active, created_at, updated_at`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.BaseFare, &c.PerKmRate, &c.PerMinuteRate,
		&c.Capacity, &c.ImageURL, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Category, error) {
	row := s.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM ride_categories WHERE id = $1`, string(id))
	c, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("category_id", "Invalid ride category")
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *Store) ListActive(ctx context.Context) ([]Category, error) {
	if cached, ok := s.cached(ctx); ok {
		return cached, nil
	}

	rows, err := s.db.Query(ctx, `SELECT `+categoryColumns+`
		FROM ride_categories WHERE is_active ORDER BY base_fare, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	s.remember(ctx, out)
	return out, nil
}

func (s *Store) cached(ctx context.Context) ([]Category, bool) {
	if s.redis == nil || s.ttl <= 0 {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, activeCategoriesKey).Bytes()
	if err != nil {
		return nil, false
	}
	var out []Category
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

// remember is best effort: a cache miss only costs a query.
func (s *Store) remember(ctx context.Context, cats []Category) {
	if s.redis == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(cats)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, activeCategoriesKey, raw, s.ttl).Err()
}
