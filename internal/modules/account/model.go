// README: Account models: user profile, saved locations and payment methods.
package account

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

type User struct {
	ID          types.ID  `json:"id"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	FullName    string    `json:"full_name"`
	IsVerified  bool      `json:"is_verified"`
	DateJoined  time.Time `json:"date_joined"`
	TotalRides  int       `json:"total_rides"`
}

type LocationType string

const (
	LocationHome  LocationType = "home"
	LocationWork  LocationType = "work"
	LocationOther LocationType = "other"
)

func (t LocationType) Valid() bool {
	switch t {
	case LocationHome, LocationWork, LocationOther:
		return true
	}
	return false
}

type SavedLocation struct {
	ID         types.ID        `json:"id"`
	UserID     types.ID        `json:"-"`
	Name       string          `json:"name"`
	Address    string          `json:"address"`
	Latitude   decimal.Decimal `json:"latitude"`
	Longitude  decimal.Decimal `json:"longitude"`
	Type       LocationType    `json:"type"`
	IsFavorite bool            `json:"is_favorite"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

var (
	minLat = decimal.NewFromInt(-90)
	maxLat = decimal.NewFromInt(90)
	minLng = decimal.NewFromInt(-180)
	maxLng = decimal.NewFromInt(180)
)

func (l *SavedLocation) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return apperr.InvalidInput("name", "This field is required")
	}
	if strings.TrimSpace(l.Address) == "" {
		return apperr.InvalidInput("address", "This field is required")
	}
	if l.Latitude.LessThan(minLat) || l.Latitude.GreaterThan(maxLat) {
		return apperr.InvalidInput("latitude", "Latitude must be between -90 and 90")
	}
	if l.Longitude.LessThan(minLng) || l.Longitude.GreaterThan(maxLng) {
		return apperr.InvalidInput("longitude", "Longitude must be between -180 and 180")
	}
	if !l.Type.Valid() {
		return apperr.InvalidInput("type", "Invalid location type")
	}
	return nil
}

type PaymentType string

const (
	PaymentCard   PaymentType = "card"
	PaymentCash   PaymentType = "cash"
	PaymentWallet PaymentType = "wallet"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentCard, PaymentCash, PaymentWallet:
		return true
	}
	return false
}

type PaymentMethod struct {
	ID              types.ID    `json:"id"`
	UserID          types.ID    `json:"-"`
	Type            PaymentType `json:"type"`
	IsDefault       bool        `json:"is_default"`
	CardLastFour    *string     `json:"card_last_four,omitempty"`
	CardBrand       *string     `json:"card_brand,omitempty"`
	CardExpiryMonth *string     `json:"card_expiry_month,omitempty"`
	CardExpiryYear  *string     `json:"card_expiry_year,omitempty"`
	WalletProvider  *string     `json:"wallet_provider,omitempty"`
	WalletNumber    *string     `json:"wallet_number,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Validate checks the fields each payment type requires. Fields that do not
// belong to the type are cleared.
func (p *PaymentMethod) Validate() error {
	switch p.Type {
	case PaymentCard:
		if blank(p.CardLastFour) {
			return apperr.InvalidInput("card_last_four", "Card last four digits are required")
		}
		if !isDigits(*p.CardLastFour, 4) {
			return apperr.InvalidInput("card_last_four", "Must be exactly 4 digits")
		}
		if blank(p.CardBrand) {
			return apperr.InvalidInput("card_brand", "Card brand is required")
		}
		p.WalletProvider, p.WalletNumber = nil, nil
	case PaymentWallet:
		if blank(p.WalletProvider) {
			return apperr.InvalidInput("wallet_provider", "Wallet provider is required")
		}
		if blank(p.WalletNumber) {
			return apperr.InvalidInput("wallet_number", "Wallet number is required")
		}
		p.CardLastFour, p.CardBrand, p.CardExpiryMonth, p.CardExpiryYear = nil, nil, nil, nil
	case PaymentCash:
		p.CardLastFour, p.CardBrand, p.CardExpiryMonth, p.CardExpiryYear = nil, nil, nil, nil
		p.WalletProvider, p.WalletNumber = nil, nil
	default:
		return apperr.InvalidInput("type", "Invalid payment method type")
	}
	return nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
