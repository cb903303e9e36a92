// README: Google Maps Directions route estimator with a straight-line fallback.
package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"googlemaps.github.io/maps"

	"ridehail/internal/types"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maps_directions_requests_total",
			Help: "Google Maps Directions calls by outcome.",
		},
		[]string{"status"},
	)

	requestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maps_directions_request_duration_seconds",
			Help:    "Google Maps Directions call latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var ErrNoRoute = errors.New("no route found")

type Estimator interface {
	Estimate(ctx context.Context, from, to types.Point) (distanceKm float64, durationMin int, err error)
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Estimate returns the driving distance and duration of the first route.
func (s *RouteService) Estimate(ctx context.Context, from, to types.Point) (float64, int, error) {
	r := &maps.DirectionsRequest{
		Origin:      latLng(from),
		Destination: latLng(to),
		Mode:        maps.TravelModeDriving,
	}

	start := time.Now()
	routes, _, err := s.client.Directions(ctx, r)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return 0, 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		requestsTotal.WithLabelValues("no_route").Inc()
		return 0, 0, ErrNoRoute
	}
	requestsTotal.WithLabelValues("ok").Inc()

	leg := routes[0].Legs[0]
	km := float64(leg.Distance.Meters) / 1000
	minutes := int(math.Ceil(leg.Duration.Minutes()))
	return km, minutes, nil
}

func latLng(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

// Fallback asks Primary first and answers from Secondary when it fails.
type Fallback struct {
	Primary   Estimator
	Secondary Estimator
	Log       logrus.FieldLogger
}

func (f Fallback) Estimate(ctx context.Context, from, to types.Point) (float64, int, error) {
	km, minutes, err := f.Primary.Estimate(ctx, from, to)
	if err == nil {
		return km, minutes, nil
	}
	if ctx.Err() != nil {
		return 0, 0, ctx.Err()
	}
	if f.Log != nil {
		f.Log.WithError(err).Warn("route estimate failed, using straight-line distance")
	}
	return f.Secondary.Estimate(ctx, from, to)
}
