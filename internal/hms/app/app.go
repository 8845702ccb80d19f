package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/hms/internal/hms/store"
	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns the CLI's session: one store, one client, one token manager.
type Application struct {
	cfg    Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	// Core dependencies
	store   store.Store
	client  *hmssdk.SDKClient
	tokens  *hmssdk.TokenManager
	session *hmssdk.Session

	// expired is signalled by the session-expired handler
	expired chan struct{}
}

// New creates a new Application instance with all dependencies initialized.
// Command output goes to stdout, logs and prompts to stderr.
func New(cfg Config, stdout, stderr io.Writer) (*Application, error) {
	app := &Application{
		cfg:     cfg,
		stdout:  stdout,
		stderr:  stderr,
		expired: make(chan struct{}, 1),
		logger: slogx.New(slogx.Config{
			Service: "hms",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  stderr,
		}),
	}

	if err := app.initStore(context.Background()); err != nil {
		return nil, err
	}

	app.initSession()

	return app, nil
}

// Run executes one command and returns when it completes.
func (app *Application) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		app.usage()
		return ErrUsage
	}

	cmd, ok := app.commands()[args[0]]
	if !ok {
		app.usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	ctx = slogx.WithContext(ctx, app.logger.With("command", args[0]))
	return cmd.run(ctx, args[1:])
}

// Shutdown releases the token store.
func (app *Application) Shutdown() error {
	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing token store", "error", err)
		return err
	}
	return nil
}

// initStore opens the configured token store.
func (app *Application) initStore(ctx context.Context) error {
	if app.cfg.StoreDriver == store.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(app.cfg.DatabaseFile), 0o700); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	s, err := store.Open(ctx, app.cfg.StoreConfig())
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	app.store = s

	app.logger.Debug("token store ready", "driver", app.cfg.StoreDriver, "slot", app.cfg.TokenSlot)
	return nil
}

// initSession wires the client, the token manager and the session together.
func (app *Application) initSession() {
	app.client = hmssdk.NewSDKClient(hmssdk.Config{
		BaseURL:     app.cfg.BaseURL,
		Timeout:     app.cfg.Timeout,
		Retry:       app.cfg.RetryPolicy(),
		RateLimit:   app.cfg.RateLimit,
		RateBurst:   app.cfg.RateBurst,
		RefreshPath: app.cfg.RefreshPath,
		Logger:      app.logger,
	})

	app.tokens = hmssdk.NewTokenManager(app.store, app.client,
		hmssdk.WithLogger(app.logger),
		hmssdk.WithRefreshThreshold(app.cfg.RefreshThreshold),
		hmssdk.WithSessionExpiredHandler(app.sessionExpired),
	)

	app.session = app.client.NewSession(app.tokens)
}

// sessionExpired is the login entry point: the stored token is gone and the
// user has to sign in again.
func (app *Application) sessionExpired(cause error) {
	app.logger.Info("session expired", "error", cause)
	fmt.Fprintln(app.stderr, "Your session has expired. Run `hms login` to sign in again.")

	select {
	case app.expired <- struct{}{}:
	default:
	}
}

// requireSession turns a missing token into a friendly instruction.
func requireSession(err error) error {
	if errors.Is(err, hmssdk.ErrNoToken) {
		return ErrNotLoggedIn
	}
	return err
}
