// README: Passenger ride handlers: request, active, history, detail, cancel and rate.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ridehail/internal/apperr"
	"ridehail/internal/modules/location"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type RideService interface {
	Request(ctx context.Context, cmd ride.RequestCommand) (*ride.Ride, error)
	Cancel(ctx context.Context, cmd ride.CancelCommand) (*ride.Ride, error)
	Rate(ctx context.Context, cmd ride.RateCommand) (*ride.Ride, error)
	Get(ctx context.Context, rideID, userID types.ID) (*ride.Ride, error)
	Active(ctx context.Context, userID types.ID) (*ride.Ride, error)
	History(ctx context.Context, q ride.HistoryQuery) (*ride.Page, error)
}

type TrajectoryService interface {
	Trajectory(ctx context.Context, rideID, userID types.ID) ([]location.Point, error)
}

type RideHandler struct {
	Base
	rides      RideService
	trajectory TrajectoryService
}

func NewRideHandler(base Base, rides RideService, trajectory TrajectoryService) *RideHandler {
	return &RideHandler{Base: base, rides: rides, trajectory: trajectory}
}

type requestRideReq struct {
	CategoryID               string           `json:"category_id" binding:"required,uuid"`
	PaymentMethodID          *string          `json:"payment_method_id" binding:"omitempty,uuid"`
	PickupLatitude           *decimal.Decimal `json:"pickup_latitude" binding:"required"`
	PickupLongitude          *decimal.Decimal `json:"pickup_longitude" binding:"required"`
	PickupAddress            string           `json:"pickup_address"`
	DestinationLatitude      *decimal.Decimal `json:"destination_latitude" binding:"required"`
	DestinationLongitude     *decimal.Decimal `json:"destination_longitude" binding:"required"`
	DestinationAddress       string           `json:"destination_address"`
	EstimatedDistanceKm      *decimal.Decimal `json:"estimated_distance_km"`
	EstimatedDurationMinutes *int             `json:"estimated_duration_minutes"`
}

func (h *RideHandler) Request(c *gin.Context) {
	var req requestRideReq
	if !h.bindJSON(c, &req) {
		return
	}
	var paymentID *types.ID
	if req.PaymentMethodID != nil {
		id := types.ID(*req.PaymentMethodID)
		paymentID = &id
	}
	r, err := h.rides.Request(c.Request.Context(), ride.RequestCommand{
		UserID:                   caller(c),
		CategoryID:               types.ID(req.CategoryID),
		PaymentMethodID:          paymentID,
		PickupLatitude:           *req.PickupLatitude,
		PickupLongitude:          *req.PickupLongitude,
		PickupAddress:            req.PickupAddress,
		DestinationLatitude:      *req.DestinationLatitude,
		DestinationLongitude:     *req.DestinationLongitude,
		DestinationAddress:       req.DestinationAddress,
		EstimatedDistanceKm:      req.EstimatedDistanceKm,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
	})
	if err != nil {
		h.failAs(c, err, errorView{notFound: http.StatusBadRequest})
		return
	}
	h.ok(c, http.StatusCreated, "Ride requested successfully", r)
}

func (h *RideHandler) Active(c *gin.Context) {
	r, err := h.rides.Active(c.Request.Context(), caller(c))
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

type historyReq struct {
	Status   string `form:"status"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1"`
}

func (h *RideHandler) History(c *gin.Context) {
	var req historyReq
	if !h.bindQuery(c, &req) {
		return
	}
	from, err := parseDate(req.DateFrom, false)
	if err != nil {
		h.invalid(c, "Invalid input", map[string]string{"date_from": "Use YYYY-MM-DD or RFC3339"})
		return
	}
	to, err := parseDate(req.DateTo, true)
	if err != nil {
		h.invalid(c, "Invalid input", map[string]string{"date_to": "Use YYYY-MM-DD or RFC3339"})
		return
	}
	page, err := h.rides.History(c.Request.Context(), ride.HistoryQuery{
		UserID:   caller(c),
		Status:   ride.Status(req.Status),
		From:     from,
		To:       to,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Ride history retrieved successfully", page)
}

type rideDetail struct {
	*ride.Ride
	Trajectory []location.Point `json:"trajectory"`
}

func (h *RideHandler) Get(c *gin.Context) {
	id, err := pathID(c, "ride_id", "Ride not found")
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	r, err := h.rides.Get(ctx, id, caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	points, err := h.trajectory.Trajectory(ctx, id, caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if points == nil {
		points = []location.Point{}
	}
	h.ok(c, http.StatusOK, "Ride retrieved successfully", rideDetail{Ride: r, Trajectory: points})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

var cancelView = errorView{messages: map[apperr.Kind]string{
	apperr.KindInvalidTransition: "This ride cannot be cancelled",
}}

func (h *RideHandler) Cancel(c *gin.Context) {
	id, err := pathID(c, "ride_id", "Ride not found")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req cancelReq
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	r, err := h.rides.Cancel(c.Request.Context(), ride.CancelCommand{
		RideID:  id,
		Actor:   ride.ActorUser,
		ActorID: caller(c),
		Reason:  req.Reason,
	})
	if err != nil {
		h.failAs(c, err, cancelView)
		return
	}
	h.ok(c, http.StatusOK, "Ride cancelled successfully", r)
}

type rateReq struct {
	Rating   *int    `json:"user_rating" binding:"required"`
	Feedback *string `json:"user_feedback"`
}

var rateView = errorView{messages: map[apperr.Kind]string{
	apperr.KindInvalidTransition: "Only completed rides can be rated",
	apperr.KindAlreadyRated:      "This ride has already been rated",
}}

func (h *RideHandler) Rate(c *gin.Context) {
	id, err := pathID(c, "ride_id", "Ride not found")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req rateReq
	if !h.bindJSON(c, &req) {
		return
	}
	r, err := h.rides.Rate(c.Request.Context(), ride.RateCommand{
		RideID:   id,
		UserID:   caller(c),
		Rating:   *req.Rating,
		Feedback: req.Feedback,
	})
	if err != nil {
		h.failAs(c, err, rateView)
		return
	}
	h.ok(c, http.StatusOK, "Ride rated successfully", r)
}
