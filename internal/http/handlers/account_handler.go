// README: Account handlers for profile, saved locations and payment methods.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ridehail/internal/http/middleware"
	"ridehail/internal/modules/account"
	"ridehail/internal/types"
)

type AccountService interface {
	CreateProfile(ctx context.Context, uid types.ID, in account.ProfileInput) (*account.User, bool, error)
	Profile(ctx context.Context, uid types.ID) (*account.User, error)
	UpdateProfile(ctx context.Context, uid types.ID, patch account.ProfilePatch) (*account.User, error)

	Locations(ctx context.Context, uid types.ID) ([]account.SavedLocation, error)
	CreateLocation(ctx context.Context, uid types.ID, in account.LocationInput) (*account.SavedLocation, error)
	UpdateLocation(ctx context.Context, uid, id types.ID, patch account.LocationPatch) (*account.SavedLocation, error)
	DeleteLocation(ctx context.Context, uid, id types.ID) error

	PaymentMethods(ctx context.Context, uid types.ID) ([]account.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, uid types.ID, in account.PaymentInput) (*account.PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, uid, id types.ID) (*account.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, uid, id types.ID) error
}

type AccountHandler struct {
	Base
	accounts AccountService
}

func NewAccountHandler(base Base, svc AccountService) *AccountHandler {
	return &AccountHandler{Base: base, accounts: svc}
}

type createProfileReq struct {
	Email       string `json:"email" binding:"omitempty,email"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
}

// CreateProfile falls back to the token's email and verification claims.
func (h *AccountHandler) CreateProfile(c *gin.Context) {
	var req createProfileReq
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	email := req.Email
	if email == "" {
		email = middleware.CallerClaim(c, "email")
	}
	u, created, err := h.accounts.CreateProfile(c.Request.Context(), caller(c), account.ProfileInput{
		Email:       email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Verified:    claimBool(c, "email_verified"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if !created {
		h.ok(c, http.StatusOK, "Profile already exists", u)
		return
	}
	h.ok(c, http.StatusCreated, "User registered successfully", u)
}

func claimBool(c *gin.Context, name string) bool {
	b, _ := middleware.CallerClaims(c)[name].(bool)
	return b
}

func (h *AccountHandler) Profile(c *gin.Context) {
	u, err := h.accounts.Profile(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Profile retrieved successfully", u)
}

type updateProfileReq struct {
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
}

func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileReq
	if !h.bindJSON(c, &req) {
		return
	}
	u, err := h.accounts.UpdateProfile(c.Request.Context(), caller(c), account.ProfilePatch{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Profile updated successfully", u)
}

func (h *AccountHandler) Locations(c *gin.Context) {
	list, err := h.accounts.Locations(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Saved locations retrieved successfully", list)
}

type locationReq struct {
	Name       string           `json:"name" binding:"required"`
	Address    string           `json:"address" binding:"required"`
	Latitude   *decimal.Decimal `json:"latitude" binding:"required"`
	Longitude  *decimal.Decimal `json:"longitude" binding:"required"`
	Type       string           `json:"type" binding:"omitempty,oneof=home work other"`
	IsFavorite bool             `json:"is_favorite"`
}

func (h *AccountHandler) CreateLocation(c *gin.Context) {
	var req locationReq
	if !h.bindJSON(c, &req) {
		return
	}
	l, err := h.accounts.CreateLocation(c.Request.Context(), caller(c), account.LocationInput{
		Name:       req.Name,
		Address:    req.Address,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Type:       account.LocationType(req.Type),
		IsFavorite: req.IsFavorite,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "Saved location created successfully", l)
}

type locationPatchReq struct {
	Name       *string               `json:"name"`
	Address    *string               `json:"address"`
	Latitude   *decimal.Decimal      `json:"latitude"`
	Longitude  *decimal.Decimal      `json:"longitude"`
	Type       *account.LocationType `json:"type"`
	IsFavorite *bool                 `json:"is_favorite"`
}

func (h *AccountHandler) UpdateLocation(c *gin.Context) {
	id, err := pathID(c, "location", "Saved location not found")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req locationPatchReq
	if !h.bindJSON(c, &req) {
		return
	}
	l, err := h.accounts.UpdateLocation(c.Request.Context(), caller(c), id, account.LocationPatch{
		Name:       req.Name,
		Address:    req.Address,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Type:       req.Type,
		IsFavorite: req.IsFavorite,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Saved location updated successfully", l)
}

func (h *AccountHandler) DeleteLocation(c *gin.Context) {
	id, err := pathID(c, "location", "Saved location not found")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.accounts.DeleteLocation(c.Request.Context(), caller(c), id); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Saved location deleted successfully", nil)
}

func (h *AccountHandler) PaymentMethods(c *gin.Context) {
	list, err := h.accounts.PaymentMethods(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Payment methods retrieved successfully", list)
}

type paymentMethodReq struct {
	Type            string  `json:"type" binding:"required,oneof=card cash wallet"`
	IsDefault       bool    `json:"is_default"`
	CardLastFour    *string `json:"card_last_four"`
	CardBrand       *string `json:"card_brand"`
	CardExpiryMonth *string `json:"card_expiry_month"`
	CardExpiryYear  *string `json:"card_expiry_year"`
	WalletProvider  *string `json:"wallet_provider"`
	WalletNumber    *string `json:"wallet_number"`
}

func (h *AccountHandler) CreatePaymentMethod(c *gin.Context) {
	var req paymentMethodReq
	if !h.bindJSON(c, &req) {
		return
	}
	p, err := h.accounts.CreatePaymentMethod(c.Request.Context(), caller(c), account.PaymentInput{
		Type:            account.PaymentType(req.Type),
		IsDefault:       req.IsDefault,
		CardLastFour:    req.CardLastFour,
		CardBrand:       req.CardBrand,
		CardExpiryMonth: req.CardExpiryMonth,
		CardExpiryYear:  req.CardExpiryYear,
		WalletProvider:  req.WalletProvider,
		WalletNumber:    req.WalletNumber,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "Payment method created successfully", p)
}

func (h *AccountHandler) SetDefaultPaymentMethod(c *gin.Context) {
	id, err := pathID(c, "payment_method", "Payment method not found")
	if err != nil {
		h.fail(c, err)
		return
	}
	p, err := h.accounts.SetDefaultPaymentMethod(c.Request.Context(), caller(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Default payment method updated", p)
}

func (h *AccountHandler) DeletePaymentMethod(c *gin.Context) {
	id, err := pathID(c, "payment_method", "Payment method not found")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.accounts.DeletePaymentMethod(c.Request.Context(), caller(c), id); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Payment method deleted successfully", nil)
}
