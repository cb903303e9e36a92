// README: Home page and ride category handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/modules/home"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

type HomeService interface {
	Load(ctx context.Context, uid types.ID) (*home.Data, error)
}

type CategoryService interface {
	ListActive(ctx context.Context) ([]pricing.Category, error)
}

type HomeHandler struct {
	Base
	home       HomeService
	categories CategoryService
}

func NewHomeHandler(base Base, homeSvc HomeService, categories CategoryService) *HomeHandler {
	return &HomeHandler{Base: base, home: homeSvc, categories: categories}
}

func (h *HomeHandler) Home(c *gin.Context) {
	data, err := h.home.Load(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Home page data retrieved successfully", data)
}

func (h *HomeHandler) Categories(c *gin.Context) {
	list, err := h.categories.ListActive(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Ride categories retrieved successfully", list)
}
