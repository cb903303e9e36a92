// README: Redis GEO mirror of available driver positions.
package driver

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ridehail/internal/types"
)

const driverGeoKey = "drivers:positions"

type GeoIndex struct {
	redis *redis.Client
}

func NewGeoIndex(rdb *redis.Client) *GeoIndex {
	return &GeoIndex{redis: rdb}
}

func (g *GeoIndex) Put(ctx context.Context, id types.ID, p types.Point) error {
	return g.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (g *GeoIndex) Remove(ctx context.Context, id types.ID) error {
	return g.redis.ZRem(ctx, driverGeoKey, string(id)).Err()
}
