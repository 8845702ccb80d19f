package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/hms/internal/devapi/http"
	"github.com/aussiebroadwan/hms/internal/devapi/service"
	"github.com/aussiebroadwan/hms/pkg/cryptox"
	"github.com/aussiebroadwan/hms/pkg/jwtx"
	"github.com/aussiebroadwan/hms/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the development backend with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	signer   *jwtx.HS256Signer
	verifier *jwtx.HS256Verifier
	revoked  *service.RevocationList

	// Services
	tokenService        *service.TokenService
	userService         *service.UserService
	hospitalService     *service.HospitalService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "hms-devapi",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initKeys(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("dev api starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down dev api...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	app.logger.Info("dev api stopped")
	return nil
}

// initKeys sets up the HS256 signer and verifier. Without a configured
// secret, tokens do not survive a restart.
func (app *Application) initKeys() error {
	secret := app.cfg.Secret
	if secret == "" {
		generated, err := cryptox.GenerateSecret(cryptox.SecretSize)
		if err != nil {
			return fmt.Errorf("failed to generate signing secret: %w", err)
		}
		secret = generated
		app.logger.Warn("DEVAPI_SECRET not set, using an ephemeral signing secret")
	}

	signer, err := jwtx.NewSignerHS256([]byte(secret))
	if err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}

	app.signer = signer
	app.verifier = jwtx.NewVerifierHS256([]byte(secret), app.cfg.Issuer)
	return nil
}

// initServices initializes all business logic services and seeds data
func (app *Application) initServices() error {
	app.revoked = service.NewRevocationList()

	app.tokenService = &service.TokenService{
		Signer:         app.signer,
		Issuer:         app.cfg.Issuer,
		AccessTTL:      app.cfg.TokenTTL,
		RotationWindow: app.cfg.RotationWindow,
		Revoked:        app.revoked,
	}

	password := app.cfg.SeedPassword
	if password == "" {
		generated, err := cryptox.GeneratePassword()
		if err != nil {
			return err
		}
		password = generated
		app.logger.Warn("DEVAPI_SEED_PASSWORD not set, generated one for the seeded accounts", "password", password)
	}

	app.userService = service.NewUserService(cryptox.NewPasswordHasher(app.cfg.Pepper))
	if err := app.userService.SeedStaff(password); err != nil {
		return fmt.Errorf("failed to seed staff accounts: %w", err)
	}

	app.hospitalService = service.NewHospitalService()
	app.hospitalService.Seed()

	app.housekeepingService = service.NewHousekeepingService(
		app.revoked,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.verifier, BuildVersion, app.logger)

	// Wire services to router
	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.HospitalService = app.hospitalService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
