// README: Driver handlers: availability, current ride and ride transitions.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ridehail/internal/apperr"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type DriverRideService interface {
	Accept(ctx context.Context, rideID, driverUserID types.ID) (*ride.Ride, error)
	Arrive(ctx context.Context, rideID, driverUserID types.ID) (*ride.Ride, error)
	Start(ctx context.Context, rideID, driverUserID types.ID) (*ride.Ride, error)
	Complete(ctx context.Context, rideID, driverUserID types.ID, actuals *ride.Actuals) (*ride.Ride, error)
	Cancel(ctx context.Context, cmd ride.CancelCommand) (*ride.Ride, error)
	RatePassenger(ctx context.Context, rideID, driverUserID types.ID, rating int, feedback *string) (*ride.Ride, error)
	DriverCurrent(ctx context.Context, driverUserID types.ID) (*ride.Ride, error)
}

type DriverService interface {
	SetAvailability(ctx context.Context, userID types.ID, available bool) (*driver.Driver, error)
}

type DriverHandler struct {
	Base
	rides   DriverRideService
	drivers DriverService
}

func NewDriverHandler(base Base, rides DriverRideService, drivers DriverService) *DriverHandler {
	return &DriverHandler{Base: base, rides: rides, drivers: drivers}
}

type availabilityReq struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req availabilityReq
	if !h.bindJSON(c, &req) {
		return
	}
	d, err := h.drivers.SetAvailability(c.Request.Context(), caller(c), *req.IsAvailable)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Availability updated successfully", d)
}

func (h *DriverHandler) Current(c *gin.Context) {
	r, err := h.rides.DriverCurrent(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if r == nil {
		h.ok(c, http.StatusOK, "No active ride found", nil)
		return
	}
	h.ok(c, http.StatusOK, "Active ride retrieved successfully", r)
}

func (h *DriverHandler) step(c *gin.Context, message string, fn func(ctx context.Context, id types.ID) (*ride.Ride, error)) {
	id, err := pathID(c, "ride_id", "Ride not found")
	if err != nil {
		h.fail(c, err)
		return
	}
	r, err := fn(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, message, r)
}

func (h *DriverHandler) Accept(c *gin.Context) {
	h.step(c, "Ride accepted successfully", func(ctx context.Context, id types.ID) (*ride.Ride, error) {
		return h.rides.Accept(ctx, id, caller(c))
	})
}

func (h *DriverHandler) Arrive(c *gin.Context) {
	h.step(c, "Arrival recorded successfully", func(ctx context.Context, id types.ID) (*ride.Ride, error) {
		return h.rides.Arrive(ctx, id, caller(c))
	})
}

func (h *DriverHandler) Start(c *gin.Context) {
	h.step(c, "Ride started successfully", func(ctx context.Context, id types.ID) (*ride.Ride, error) {
		return h.rides.Start(ctx, id, caller(c))
	})
}

type completeReq struct {
	ActualDistanceKm      *decimal.Decimal `json:"actual_distance_km"`
	ActualDurationMinutes *int             `json:"actual_duration_minutes"`
}

func (h *DriverHandler) Complete(c *gin.Context) {
	var req completeReq
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	var actuals *ride.Actuals
	switch {
	case req.ActualDistanceKm != nil && req.ActualDurationMinutes != nil:
		actuals = &ride.Actuals{DistanceKm: *req.ActualDistanceKm, DurationMinutes: *req.ActualDurationMinutes}
	case req.ActualDistanceKm != nil:
		h.fail(c, apperr.InvalidInput("actual_duration_minutes", "Required together with actual_distance_km"))
		return
	case req.ActualDurationMinutes != nil:
		h.fail(c, apperr.InvalidInput("actual_distance_km", "Required together with actual_duration_minutes"))
		return
	}
	h.step(c, "Ride completed successfully", func(ctx context.Context, id types.ID) (*ride.Ride, error) {
		return h.rides.Complete(ctx, id, caller(c), actuals)
	})
}

func (h *DriverHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	id, err := pathID(c, "ride_id", "Ride not found")
	if err != nil {
		h.fail(c, err)
		return
	}
	r, err := h.rides.Cancel(c.Request.Context(), ride.CancelCommand{
		RideID:  id,
		Actor:   ride.ActorDriver,
		ActorID: caller(c),
		Reason:  req.Reason,
	})
	if err != nil {
		h.failAs(c, err, cancelView)
		return
	}
	h.ok(c, http.StatusOK, "Ride cancelled successfully", r)
}

type ratePassengerReq struct {
	Rating   *int    `json:"driver_rating" binding:"required"`
	Feedback *string `json:"driver_feedback"`
}

func (h *DriverHandler) RatePassenger(c *gin.Context) {
	var req ratePassengerReq
	if !h.bindJSON(c, &req) {
		return
	}
	h.step(c, "Passenger rated successfully", func(ctx context.Context, id types.ID) (*ride.Ride, error) {
		return h.rides.RatePassenger(ctx, id, caller(c), *req.Rating, req.Feedback)
	})
}
