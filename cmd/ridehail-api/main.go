// README: Entry point; loads config, wires services and serves the HTTP API until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"ridehail/internal/config"
	httptransport "ridehail/internal/http"
	"ridehail/internal/infra"
	"ridehail/internal/maps"
	"ridehail/internal/modules/account"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/home"
	"ridehail/internal/modules/location"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/ride"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := infra.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		logger.WithError(err).Fatal("auth init")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.WithError(err).Fatal("postgres init")
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unreachable; category cache and position mirror will miss")
	}

	var events ride.Publisher
	if cfg.Broker.URL != "" {
		broker, err := infra.NewBroker(cfg.Broker.URL)
		if err != nil {
			logger.WithError(err).Fatal("rabbitmq init")
		}
		defer broker.Close()
		events = broker
	}

	pricingSvc := pricing.NewService(pricing.NewStore(dbPool, redisClient, cfg.Redis.CategoriesTTL))
	accountSvc := account.NewService(account.NewStore(dbPool), logger)
	geo := driver.NewGeoIndex(redisClient)
	driverSvc := driver.NewService(driver.NewStore(dbPool), geo, logger)

	rideSvc := ride.NewService(ride.Deps{
		Store:      ride.NewStore(dbPool),
		Categories: pricingSvc,
		Payments:   accountSvc,
		Drivers:    driverSvc,
		Routes:     newRouteEstimator(cfg.Maps.APIKey, logger),
		Events:     events,
		Log:        logger,
	})
	locationSvc := location.NewService(location.NewStore(dbPool), driverSvc, geo, logger)
	homeSvc := home.NewService(accountSvc, driverSvc, pricingSvc, rideSvc, cfg.Home.NearbyWindow)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Rides:        rideSvc,
		Drivers:      driverSvc,
		Locations:    locationSvc,
		Accounts:     accountSvc,
		Home:         homeSvc,
		Categories:   pricingSvc,
		Verifier:     verifier,
		Log:          logger,
		AllowOrigins: cfg.HTTP.AllowOrigins,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("http shutdown")
		}
	}()

	logger.WithField("addr", cfg.HTTP.Addr).Info("http server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("http server")
	}
	logger.Info("http server stopped")
}

// newVerifier prefers Firebase and falls back to HMAC JWTs.
func newVerifier(ctx context.Context, cfg config.AuthConfig) (infra.TokenVerifier, error) {
	switch {
	case cfg.FirebaseProjectID != "":
		return infra.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.CredentialsFile)
	case cfg.JWTSecret != "":
		return infra.NewHMACVerifier(cfg.JWTSecret), nil
	default:
		return nil, errors.New("RIDEHAIL_FIREBASE_PROJECT_ID or RIDEHAIL_JWT_SECRET is required")
	}
}

func newRouteEstimator(apiKey string, logger logrus.FieldLogger) maps.Estimator {
	straight := maps.StraightLine{SpeedKmh: maps.DefaultCitySpeedKmh}
	if apiKey == "" {
		return straight
	}
	directions, err := maps.NewRouteService(apiKey)
	if err != nil {
		logger.WithError(err).Warn("google maps client init failed; using straight-line estimates")
		return straight
	}
	return maps.Fallback{Primary: directions, Secondary: straight, Log: logger}
}
