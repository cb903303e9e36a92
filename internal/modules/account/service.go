// README: Account service: profile bootstrap, saved locations, payment methods and payment resolution for rides.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

type AccountStore interface {
	CreateUser(ctx context.Context, u *User, first *PaymentMethod) (*User, bool, error)
	GetUser(ctx context.Context, id types.ID) (*User, error)
	UpdateUser(ctx context.Context, id types.ID, fullName, phone *string) error

	ListLocations(ctx context.Context, userID types.ID) ([]SavedLocation, error)
	GetLocation(ctx context.Context, userID, id types.ID) (*SavedLocation, error)
	SaveLocation(ctx context.Context, l *SavedLocation, create bool) error
	DeleteLocation(ctx context.Context, userID, id types.ID) error
	HasFavoriteHome(ctx context.Context, userID types.ID) (bool, error)

	ListPaymentMethods(ctx context.Context, userID types.ID) ([]PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, userID, id types.ID) (*PaymentMethod, error)
	DefaultPaymentMethod(ctx context.Context, userID types.ID) (*types.ID, error)
	CreatePaymentMethod(ctx context.Context, p *PaymentMethod) error
	SetDefaultPaymentMethod(ctx context.Context, userID, id types.ID, now time.Time) error
	DeletePaymentMethod(ctx context.Context, userID, id types.ID, now time.Time) error
}

type Service struct {
	store AccountStore
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(store AccountStore, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

type ProfileInput struct {
	Email       string
	FullName    string
	PhoneNumber string
	Verified    bool
}

// CreateProfile creates the caller's user row with a default cash payment
// method. created is false when the profile already existed.
func (s *Service) CreateProfile(ctx context.Context, uid types.ID, in ProfileInput) (*User, bool, error) {
	if uid == "" {
		return nil, false, apperr.Unauthorized("user", "Authentication required")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, false, apperr.InvalidInput("email", "This field is required")
	}
	now := s.now()
	u := &User{
		ID:          uid,
		Email:       email,
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		FullName:    strings.TrimSpace(in.FullName),
		IsVerified:  in.Verified,
		DateJoined:  now,
	}
	cash := &PaymentMethod{
		ID:        types.NewID(),
		UserID:    uid,
		Type:      PaymentCash,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	got, created, err := s.store.CreateUser(ctx, u, cash)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.WithField("user_id", uid).Info("profile created")
	}
	return got, created, nil
}

func (s *Service) Profile(ctx context.Context, uid types.ID) (*User, error) {
	return s.store.GetUser(ctx, uid)
}

type ProfilePatch struct {
	FullName    *string
	PhoneNumber *string
}

func (s *Service) UpdateProfile(ctx context.Context, uid types.ID, patch ProfilePatch) (*User, error) {
	if patch.FullName != nil && strings.TrimSpace(*patch.FullName) == "" {
		return nil, apperr.InvalidInput("full_name", "This field may not be blank")
	}
	if err := s.store.UpdateUser(ctx, uid, patch.FullName, patch.PhoneNumber); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, uid)
}

func (s *Service) Locations(ctx context.Context, uid types.ID) ([]SavedLocation, error) {
	return s.store.ListLocations(ctx, uid)
}

type LocationInput struct {
	Name       string
	Address    string
	Latitude   decimal.Decimal
	Longitude  decimal.Decimal
	Type       LocationType
	IsFavorite bool
}

func (s *Service) CreateLocation(ctx context.Context, uid types.ID, in LocationInput) (*SavedLocation, error) {
	now := s.now()
	l := &SavedLocation{
		ID:         types.NewID(),
		UserID:     uid,
		Name:       strings.TrimSpace(in.Name),
		Address:    strings.TrimSpace(in.Address),
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Type:       in.Type,
		IsFavorite: in.IsFavorite,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if l.Type == "" {
		l.Type = LocationOther
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveLocation(ctx, l, true); err != nil {
		return nil, err
	}
	return l, nil
}

type LocationPatch struct {
	Name       *string
	Address    *string
	Latitude   *decimal.Decimal
	Longitude  *decimal.Decimal
	Type       *LocationType
	IsFavorite *bool
}

func (s *Service) UpdateLocation(ctx context.Context, uid, id types.ID, patch LocationPatch) (*SavedLocation, error) {
	l, err := s.store.GetLocation(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		l.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Address != nil {
		l.Address = strings.TrimSpace(*patch.Address)
	}
	if patch.Latitude != nil {
		l.Latitude = *patch.Latitude
	}
	if patch.Longitude != nil {
		l.Longitude = *patch.Longitude
	}
	if patch.Type != nil {
		l.Type = *patch.Type
	}
	if patch.IsFavorite != nil {
		l.IsFavorite = *patch.IsFavorite
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	l.UpdatedAt = s.now()
	if err := s.store.SaveLocation(ctx, l, false); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) DeleteLocation(ctx context.Context, uid, id types.ID) error {
	return s.store.DeleteLocation(ctx, uid, id)
}

func (s *Service) HasFavoriteHome(ctx context.Context, uid types.ID) (bool, error) {
	return s.store.HasFavoriteHome(ctx, uid)
}

func (s *Service) PaymentMethods(ctx context.Context, uid types.ID) ([]PaymentMethod, error) {
	return s.store.ListPaymentMethods(ctx, uid)
}

type PaymentInput struct {
	Type            PaymentType
	IsDefault       bool
	CardLastFour    *string
	CardBrand       *string
	CardExpiryMonth *string
	CardExpiryYear  *string
	WalletProvider  *string
	WalletNumber    *string
}

func (s *Service) CreatePaymentMethod(ctx context.Context, uid types.ID, in PaymentInput) (*PaymentMethod, error) {
	now := s.now()
	p := &PaymentMethod{
		ID:              types.NewID(),
		UserID:          uid,
		Type:            in.Type,
		IsDefault:       in.IsDefault,
		CardLastFour:    in.CardLastFour,
		CardBrand:       in.CardBrand,
		CardExpiryMonth: in.CardExpiryMonth,
		CardExpiryYear:  in.CardExpiryYear,
		WalletProvider:  in.WalletProvider,
		WalletNumber:    in.WalletNumber,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreatePaymentMethod(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) SetDefaultPaymentMethod(ctx context.Context, uid, id types.ID) (*PaymentMethod, error) {
	if err := s.store.SetDefaultPaymentMethod(ctx, uid, id, s.now()); err != nil {
		return nil, err
	}
	return s.store.GetPaymentMethod(ctx, uid, id)
}

func (s *Service) DeletePaymentMethod(ctx context.Context, uid, id types.ID) error {
	return s.store.DeletePaymentMethod(ctx, uid, id, s.now())
}

// ResolvePaymentMethod returns explicit when it belongs to the user, else the
// user's default, else nil.
func (s *Service) ResolvePaymentMethod(ctx context.Context, uid types.ID, explicit *types.ID) (*types.ID, error) {
	if explicit == nil {
		return s.store.DefaultPaymentMethod(ctx, uid)
	}
	id, ok := types.ParseID(string(*explicit))
	if !ok {
		return nil, apperr.InvalidInput("payment_method_id", "Invalid payment method")
	}
	p, err := s.store.GetPaymentMethod(ctx, uid, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.InvalidInput("payment_method_id", "Invalid payment method")
	}
	if err != nil {
		return nil, err
	}
	return &p.ID, nil
}
