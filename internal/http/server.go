// README: API gateway; builds the gin engine, registers routes and delegates to module services.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ridehail/internal/http/handlers"
	"ridehail/internal/http/middleware"
	"ridehail/internal/infra"
)

// RideAPI is served by the ride lifecycle service for both passengers and drivers.
type RideAPI interface {
	handlers.RideService
	handlers.DriverRideService
}

type LocationAPI interface {
	handlers.LocationService
	handlers.TrajectoryService
}

type ServerDeps struct {
	Rides      RideAPI
	Drivers    handlers.DriverService
	Locations  LocationAPI
	Accounts   handlers.AccountService
	Home       handlers.HomeService
	Categories handlers.CategoryService
	Verifier   infra.TokenVerifier
	Log        logrus.FieldLogger
	// AllowOrigins defaults to any origin.
	AllowOrigins []string
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	d := s.deps
	r := gin.New()
	r.Use(middleware.Recovery(d.Log), middleware.Metrics(), middleware.Logging(d.Log))

	origins := d.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	base := handlers.NewBase(d.Log)
	rideH := handlers.NewRideHandler(base, d.Rides, d.Locations)
	driverH := handlers.NewDriverHandler(base, d.Rides, d.Drivers)
	locationH := handlers.NewLocationHandler(base, d.Locations)
	accountH := handlers.NewAccountHandler(base, d.Accounts)
	homeH := handlers.NewHomeHandler(base, d.Home, d.Categories)

	api := r.Group("/api", middleware.Auth(d.Verifier))

	api.GET("/categories", homeH.Categories)
	api.GET("/home", homeH.Home)

	api.POST("/rides", rideH.Request)
	api.GET("/rides/active", rideH.Active)
	api.GET("/rides/history", rideH.History)
	api.GET("/rides/:id", rideH.Get)
	api.POST("/rides/:id/cancel", rideH.Cancel)
	api.POST("/rides/:id/rate", rideH.Rate)

	api.POST("/location-update", locationH.Update)

	drv := api.Group("/driver")
	drv.POST("/availability", driverH.SetAvailability)
	drv.GET("/rides/current", driverH.Current)
	drv.POST("/rides/:id/accept", driverH.Accept)
	drv.POST("/rides/:id/arrive", driverH.Arrive)
	drv.POST("/rides/:id/start", driverH.Start)
	drv.POST("/rides/:id/complete", driverH.Complete)
	drv.POST("/rides/:id/cancel", driverH.Cancel)
	drv.POST("/rides/:id/rate", driverH.RatePassenger)

	acct := api.Group("/account")
	acct.POST("", accountH.CreateProfile)
	acct.GET("", accountH.Profile)
	acct.PATCH("", accountH.UpdateProfile)
	acct.GET("/locations", accountH.Locations)
	acct.POST("/locations", accountH.CreateLocation)
	acct.PATCH("/locations/:id", accountH.UpdateLocation)
	acct.DELETE("/locations/:id", accountH.DeleteLocation)
	acct.GET("/payment-methods", accountH.PaymentMethods)
	acct.POST("/payment-methods", accountH.CreatePaymentMethod)
	acct.POST("/payment-methods/:id/default", accountH.SetDefaultPaymentMethod)
	acct.DELETE("/payment-methods/:id", accountH.DeletePaymentMethod)

	return r
}
