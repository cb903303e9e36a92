// README: Location update handler for drivers on an active ride.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ridehail/internal/apperr"
	"ridehail/internal/modules/location"
)

type LocationService interface {
	Submit(ctx context.Context, cmd location.SubmitCommand) (*location.Point, error)
}

type LocationHandler struct {
	Base
	location LocationService
}

func NewLocationHandler(base Base, svc LocationService) *LocationHandler {
	return &LocationHandler{Base: base, location: svc}
}

type locationUpdateReq struct {
	RideID    string           `json:"ride_id"`
	Latitude  *decimal.Decimal `json:"latitude" binding:"required"`
	Longitude *decimal.Decimal `json:"longitude" binding:"required"`
}

var locationView = errorView{
	notFound: http.StatusBadRequest,
	messages: map[apperr.Kind]string{
		apperr.KindNotFound:     "Invalid or inactive ride",
		apperr.KindUnauthorized: "Invalid or inactive ride",
	},
}

func (h *LocationHandler) Update(c *gin.Context) {
	var req locationUpdateReq
	if !h.bindJSON(c, &req) {
		return
	}
	if req.RideID == "" {
		h.invalid(c, "Ride ID is required", map[string]string{"ride_id": "This field is required"})
		return
	}
	p, err := h.location.Submit(c.Request.Context(), location.SubmitCommand{
		UserID:    caller(c),
		RideID:    req.RideID,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		h.failAs(c, err, locationView)
		return
	}
	h.ok(c, http.StatusCreated, "Location updated successfully", p)
}
