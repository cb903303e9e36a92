package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridehail/internal/apperr"
	httptransport "ridehail/internal/http"
	"ridehail/internal/infra"
	"ridehail/internal/modules/account"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/home"
	"ridehail/internal/modules/location"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

const rideID = "0d6f4a0e-8a43-4c53-9f0e-5f7f1b8a2c11"

type stubVerifier struct{}

func (stubVerifier) VerifyIDToken(_ context.Context, tok string) (*infra.AuthToken, error) {
	if tok != "good" {
		return nil, errors.New("bad token")
	}
	return &infra.AuthToken{UID: "u1", Claims: map[string]interface{}{"email": "u1@example.com", "email_verified": true}}, nil
}

// stubRides records the last call and returns err when set.
type stubRides struct {
	err     error
	ride    *ride.Ride
	request ride.RequestCommand
	cancel  ride.CancelCommand
	history ride.HistoryQuery
	actuals *ride.Actuals
	rate    ride.RateCommand
	// passengerRating is the last driver-side rating.
	passengerRating int
}

func (s *stubRides) result() (*ride.Ride, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.ride != nil {
		return s.ride, nil
	}
	return &ride.Ride{ID: rideID, Status: ride.StatusRequested}, nil
}

func (s *stubRides) Request(_ context.Context, cmd ride.RequestCommand) (*ride.Ride, error) {
	s.request = cmd
	return s.result()
}

func (s *stubRides) Cancel(_ context.Context, cmd ride.CancelCommand) (*ride.Ride, error) {
	s.cancel = cmd
	return s.result()
}

func (s *stubRides) Rate(_ context.Context, cmd ride.RateCommand) (*ride.Ride, error) {
	s.rate = cmd
	return s.result()
}

func (s *stubRides) Get(context.Context, types.ID, types.ID) (*ride.Ride, error) {
	return s.result()
}

func (s *stubRides) Active(context.Context, types.ID) (*ride.Ride, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ride, nil
}

func (s *stubRides) History(_ context.Context, q ride.HistoryQuery) (*ride.Page, error) {
	s.history = q
	if s.err != nil {
		return nil, s.err
	}
	return &ride.Page{Page: 1, PageSize: 20, Results: []ride.Ride{}}, nil
}

func (s *stubRides) Accept(context.Context, types.ID, types.ID) (*ride.Ride, error) {
	return s.result()
}

func (s *stubRides) Arrive(context.Context, types.ID, types.ID) (*ride.Ride, error) {
	return s.result()
}

func (s *stubRides) Start(context.Context, types.ID, types.ID) (*ride.Ride, error) {
	return s.result()
}

func (s *stubRides) Complete(_ context.Context, _, _ types.ID, actuals *ride.Actuals) (*ride.Ride, error) {
	s.actuals = actuals
	return s.result()
}

func (s *stubRides) RatePassenger(_ context.Context, _, _ types.ID, rating int, _ *string) (*ride.Ride, error) {
	s.passengerRating = rating
	return s.result()
}

func (s *stubRides) DriverCurrent(context.Context, types.ID) (*ride.Ride, error) {
	return s.ride, s.err
}

type stubDrivers struct{}

func (stubDrivers) SetAvailability(_ context.Context, _ types.ID, available bool) (*driver.Driver, error) {
	return &driver.Driver{IsAvailable: available}, nil
}

type stubLocations struct {
	err    error
	submit location.SubmitCommand
}

func (s *stubLocations) Submit(_ context.Context, cmd location.SubmitCommand) (*location.Point, error) {
	s.submit = cmd
	if s.err != nil {
		return nil, s.err
	}
	return &location.Point{RideID: types.ID(cmd.RideID), Latitude: cmd.Latitude, Longitude: cmd.Longitude}, nil
}

func (s *stubLocations) Trajectory(context.Context, types.ID, types.ID) ([]location.Point, error) {
	return []location.Point{{RideID: rideID}}, nil
}

// stubAccounts embeds the interface so tests only implement what they hit.
type stubAccounts struct {
	httpAccounts
	created bool
	input   account.ProfileInput
}

type httpAccounts interface {
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

func (s *stubAccounts) CreateProfile(_ context.Context, uid types.ID, in account.ProfileInput) (*account.User, bool, error) {
	s.input = in
	created := !s.created
	s.created = true
	return &account.User{ID: uid, Email: in.Email}, created, nil
}

func (s *stubAccounts) DeleteLocation(context.Context, types.ID, types.ID) error {
	return apperr.NotFound("location", "Saved location not found")
}

type stubHome struct{}

func (stubHome) Load(context.Context, types.ID) (*home.Data, error) {
	return &home.Data{Promotions: home.Promotions(time.Now())}, nil
}

type stubCategories struct{}

func (stubCategories) ListActive(context.Context) ([]pricing.Category, error) {
	return []pricing.Category{{Name: "Economy", IsActive: true}}, nil
}

type fixture struct {
	router    http.Handler
	rides     *stubRides
	locations *stubLocations
	accounts  *stubAccounts
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)
	f := &fixture{rides: &stubRides{}, locations: &stubLocations{}, accounts: &stubAccounts{}}
	f.router = httptransport.NewServer(httptransport.ServerDeps{
		Rides:      f.rides,
		Drivers:    stubDrivers{},
		Locations:  f.locations,
		Accounts:   f.accounts,
		Home:       stubHome{},
		Categories: stubCategories{},
		Verifier:   stubVerifier{},
		Log:        log,
	}).Routes()
	return f
}

type response struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
	}
	return w.Code, resp
}

func validRequest() map[string]any {
	return map[string]any{
		"category_id":                "5f0c7a4e-1b2d-4c3e-9f8a-7b6c5d4e3f21",
		"pickup_latitude":            "25.0330",
		"pickup_longitude":           "121.5654",
		"destination_latitude":       25.0478,
		"destination_longitude":      121.5170,
		"estimated_distance_km":      "5.00",
		"estimated_duration_minutes": 20,
	}
}

func TestHealthAndAuth(t *testing.T) {
	f := newFixture()

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/rides/active", nil)
	req.Header.Set("Authorization", "Bearer bad")
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d, want 401", w.Code)
	}
}

func TestRequestRide(t *testing.T) {
	f := newFixture()
	code, resp := f.do(t, http.MethodPost, "/api/rides", validRequest())
	if code != http.StatusCreated || resp.Status != "success" || resp.Message != "Ride requested successfully" {
		t.Fatalf("got %d %+v", code, resp)
	}
	if f.rides.request.UserID != "u1" || f.rides.request.PickupLatitude.String() != "25.033" {
		t.Errorf("command = %+v", f.rides.request)
	}
	if *f.rides.request.EstimatedDurationMinutes != 20 {
		t.Errorf("duration = %d", *f.rides.request.EstimatedDurationMinutes)
	}
}

func TestRequestRide_ValidationErrors(t *testing.T) {
	f := newFixture()
	body := validRequest()
	delete(body, "category_id")
	delete(body, "pickup_longitude")
	code, resp := f.do(t, http.MethodPost, "/api/rides", body)
	if code != http.StatusBadRequest || resp.Status != "error" {
		t.Fatalf("got %d %+v", code, resp)
	}
	for _, field := range []string{"category_id", "pickup_longitude"} {
		if resp.Errors[field] != "This field is required" {
			t.Errorf("errors[%s] = %q", field, resp.Errors[field])
		}
	}
}

func TestRequestRide_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"unknown category", apperr.NotFound("category_id", "Invalid ride category"), http.StatusBadRequest, "category_id"},
		{"inactive category", apperr.InvalidInput("category_id", "This ride category is not available"), http.StatusBadRequest, "category_id"},
		{"foreign payment method", apperr.InvalidInput("payment_method_id", "Invalid payment method"), http.StatusBadRequest, "payment_method_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.rides.err = tt.err
			code, resp := f.do(t, http.MethodPost, "/api/rides", validRequest())
			if code != tt.status || resp.Errors[tt.field] == "" {
				t.Fatalf("got %d %+v", code, resp)
			}
		})
	}

	f := newFixture()
	f.rides.err = errors.New("connection refused")
	code, resp := f.do(t, http.MethodPost, "/api/rides", validRequest())
	if code != http.StatusInternalServerError || resp.Message != "Server error" {
		t.Fatalf("infra failure: got %d %+v", code, resp)
	}
}

func TestActiveRide_NullWhenNone(t *testing.T) {
	f := newFixture()
	code, resp := f.do(t, http.MethodGet, "/api/rides/active", nil)
	if code != http.StatusOK || string(resp.Data) != "null" || resp.Message != "No active ride found" {
		t.Fatalf("got %d %+v", code, resp)
	}
}

func TestHistory_DateFilters(t *testing.T) {
	f := newFixture()
	code, _ := f.do(t, http.MethodGet, "/api/rides/history?status=completed&date_from=2026-01-01&date_to=2026-01-31&page=2&page_size=5", nil)
	if code != http.StatusOK {
		t.Fatalf("got %d", code)
	}
	q := f.rides.history
	if q.Status != ride.StatusCompleted || q.Page != 2 || q.PageSize != 5 {
		t.Errorf("query = %+v", q)
	}
	if !q.From.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", q.From)
	}
	if want := time.Date(2026, 1, 31, 23, 59, 59, 999999999, time.UTC); !q.To.Equal(want) {
		t.Errorf("to = %v, want %v", q.To, want)
	}

	code, resp := f.do(t, http.MethodGet, "/api/rides/history?date_from=yesterday", nil)
	if code != http.StatusBadRequest || resp.Errors["date_from"] == "" {
		t.Fatalf("bad date: got %d %+v", code, resp)
	}
}

func TestGetRide(t *testing.T) {
	f := newFixture()
	code, resp := f.do(t, http.MethodGet, "/api/rides/"+rideID, nil)
	if code != http.StatusOK {
		t.Fatalf("got %d %+v", code, resp)
	}
	var detail struct {
		ID         string           `json:"id"`
		Trajectory []map[string]any `json:"trajectory"`
	}
	if err := json.Unmarshal(resp.Data, &detail); err != nil || detail.ID != rideID || len(detail.Trajectory) != 1 {
		t.Fatalf("detail = %+v, %v", detail, err)
	}

	code, _ = f.do(t, http.MethodGet, "/api/rides/not-an-id", nil)
	if code != http.StatusNotFound {
		t.Fatalf("malformed id: got %d", code)
	}

	f.rides.err = apperr.NotFound("ride_id", "Ride not found")
	code, _ = f.do(t, http.MethodGet, "/api/rides/"+rideID, nil)
	if code != http.StatusNotFound {
		t.Fatalf("foreign ride: got %d", code)
	}
}

func TestCancelAndRate_Messages(t *testing.T) {
	f := newFixture()
	f.rides.err = apperr.InvalidTransition("status", "Ride is already completed")
	code, resp := f.do(t, http.MethodPost, "/api/rides/"+rideID+"/cancel", map[string]string{"reason": "late"})
	if code != http.StatusBadRequest || resp.Message != "This ride cannot be cancelled" || resp.Errors["status"] != "Ride is already completed" {
		t.Fatalf("cancel: got %d %+v", code, resp)
	}
	if f.rides.cancel.Actor != ride.ActorUser || f.rides.cancel.Reason != "late" {
		t.Errorf("cancel command = %+v", f.rides.cancel)
	}

	f.rides.err = nil
	code, resp = f.do(t, http.MethodPost, "/api/rides/"+rideID+"/rate", map[string]any{"user_rating": 5, "user_feedback": "great"})
	if code != http.StatusOK || resp.Message != "Ride rated successfully" {
		t.Fatalf("rate: got %d %+v", code, resp)
	}
	if f.rides.rate.Rating != 5 || f.rides.rate.Feedback == nil || *f.rides.rate.Feedback != "great" || f.rides.rate.UserID != "u1" {
		t.Errorf("rate command = %+v", f.rides.rate)
	}

	f.rides.err = apperr.AlreadyRated("user_rating", "Ride is already rated")
	code, resp = f.do(t, http.MethodPost, "/api/rides/"+rideID+"/rate", map[string]int{"user_rating": 4})
	if code != http.StatusBadRequest || resp.Message != "This ride has already been rated" {
		t.Fatalf("rate twice: got %d %+v", code, resp)
	}

	code, resp = f.do(t, http.MethodPost, "/api/rides/"+rideID+"/rate", map[string]int{"rating": 5})
	if code != http.StatusBadRequest || resp.Errors["user_rating"] != "This field is required" {
		t.Fatalf("rate without user_rating: got %d %+v", code, resp)
	}
}

func TestDriverRatePassenger(t *testing.T) {
	f := newFixture()
	f.rides.ride = &ride.Ride{ID: rideID, Status: ride.StatusCompleted}

	code, resp := f.do(t, http.MethodPost, "/api/driver/rides/"+rideID+"/rate", map[string]any{"driver_rating": 4, "driver_feedback": "polite"})
	if code != http.StatusOK || f.rides.passengerRating != 4 {
		t.Fatalf("got %d %+v, rating %d", code, resp, f.rides.passengerRating)
	}

	code, resp = f.do(t, http.MethodPost, "/api/driver/rides/"+rideID+"/rate", map[string]int{"user_rating": 4})
	if code != http.StatusBadRequest || resp.Errors["driver_rating"] != "This field is required" {
		t.Fatalf("missing driver_rating: got %d %+v", code, resp)
	}
}

func TestLocationUpdate(t *testing.T) {
	f := newFixture()
	code, resp := f.do(t, http.MethodPost, "/api/location-update", map[string]any{"ride_id": rideID, "latitude": 25.04, "longitude": "121.55"})
	if code != http.StatusCreated || resp.Message != "Location updated successfully" {
		t.Fatalf("got %d %+v", code, resp)
	}
	if f.locations.submit.UserID != "u1" || f.locations.submit.RideID != rideID {
		t.Errorf("submit = %+v", f.locations.submit)
	}

	code, resp = f.do(t, http.MethodPost, "/api/location-update", map[string]any{"latitude": 1, "longitude": 1})
	if code != http.StatusBadRequest || resp.Message != "Ride ID is required" {
		t.Fatalf("missing ride id: got %d %+v", code, resp)
	}

	for _, err := range []error{apperr.NotFound("ride_id", "No active ride found with this ID"), apperr.Unauthorized("ride_id", "No active ride found with this ID")} {
		f.locations.err = err
		code, resp = f.do(t, http.MethodPost, "/api/location-update", map[string]any{"ride_id": rideID, "latitude": 1, "longitude": 1})
		if code != http.StatusBadRequest || resp.Message != "Invalid or inactive ride" || resp.Errors["ride_id"] == "" {
			t.Fatalf("%v: got %d %+v", err, code, resp)
		}
	}
}

func TestDriverComplete_Actuals(t *testing.T) {
	f := newFixture()
	code, _ := f.do(t, http.MethodPost, "/api/driver/rides/"+rideID+"/complete", nil)
	if code != http.StatusOK || f.rides.actuals != nil {
		t.Fatalf("no body: got %d actuals %+v", code, f.rides.actuals)
	}

	code, _ = f.do(t, http.MethodPost, "/api/driver/rides/"+rideID+"/complete", map[string]any{"actual_distance_km": "7.5", "actual_duration_minutes": 25})
	if code != http.StatusOK || f.rides.actuals == nil || f.rides.actuals.DurationMinutes != 25 {
		t.Fatalf("with actuals: got %d %+v", code, f.rides.actuals)
	}

	code, resp := f.do(t, http.MethodPost, "/api/driver/rides/"+rideID+"/complete", map[string]any{"actual_distance_km": "7.5"})
	if code != http.StatusBadRequest || resp.Errors["actual_duration_minutes"] == "" {
		t.Fatalf("partial actuals: got %d %+v", code, resp)
	}
}

func TestDriverAccept_Conflict(t *testing.T) {
	f := newFixture()
	f.rides.err = apperr.Conflict("status", "Ride is already accepted")
	code, resp := f.do(t, http.MethodPost, "/api/driver/rides/"+rideID+"/accept", nil)
	if code != http.StatusBadRequest || resp.Errors["status"] != "Ride is already accepted" {
		t.Fatalf("got %d %+v", code, resp)
	}
}

func TestCreateProfile(t *testing.T) {
	f := newFixture()
	code, resp := f.do(t, http.MethodPost, "/api/account", map[string]string{"full_name": "Ann"})
	if code != http.StatusCreated || resp.Message != "User registered successfully" {
		t.Fatalf("first create: got %d %+v", code, resp)
	}
	if f.accounts.input.Email != "u1@example.com" || !f.accounts.input.Verified {
		t.Errorf("token claims not used: %+v", f.accounts.input)
	}

	code, _ = f.do(t, http.MethodPost, "/api/account", nil)
	if code != http.StatusOK {
		t.Fatalf("second create: got %d", code)
	}
}

func TestAccountSubresourceNotFound(t *testing.T) {
	f := newFixture()
	code, resp := f.do(t, http.MethodDelete, "/api/account/locations/"+rideID, nil)
	if code != http.StatusNotFound || resp.Errors["location"] == "" {
		t.Fatalf("got %d %+v", code, resp)
	}
}

func TestCategoriesAndHome(t *testing.T) {
	f := newFixture()
	if code, resp := f.do(t, http.MethodGet, "/api/categories", nil); code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("categories: got %d %+v", code, resp)
	}
	code, resp := f.do(t, http.MethodGet, "/api/home", nil)
	if code != http.StatusOK {
		t.Fatalf("home: got %d", code)
	}
	var data struct {
		Promotions []home.Promotion `json:"promotions"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || len(data.Promotions) != 2 {
		t.Fatalf("promotions = %+v, %v", data.Promotions, err)
	}
}
