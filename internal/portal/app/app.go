package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/internal/portal/store/drivers/sqlite"
	"github.com/aussiebroadwan/portal/pkg/apiclient"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application holds the wired client and the services built on it.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	client *apiclient.Client

	Session  *service.SessionService
	Patients *service.PatientService
}

// New opens the token cache, builds the API client and restores any session
// persisted by an earlier run.
func New(ctx context.Context, cfg Config, opts ...Option) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "portal",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initClient()
	app.initServices()

	restored, err := app.Session.Restore(ctx)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	app.logger.Debug("application ready", "base_url", cfg.BaseURL, "session_restored", restored)

	return app, nil
}

// Option adjusts an Application before it is wired.
type Option func(*Application)

// WithLogger replaces the logger built from Config.
func WithLogger(l *slog.Logger) Option {
	return func(app *Application) { app.logger = l }
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Client returns the API client.
func (app *Application) Client() *apiclient.Client { return app.client }

// Close releases the token cache.
func (app *Application) Close() error {
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing token store", "error", err)
		return err
	}
	return nil
}

// initDatabase opens the token cache and applies migrations
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.TokenDB)
	if app.cfg.TokenDB == ":memory:" {
		dsn = ":memory:"
	}

	var opts []sqlite.Option
	sealer, err := cryptox.LoadSealer(app.cfg.MasterKeyPath, app.cfg.MasterKey)
	switch {
	case errors.Is(err, cryptox.ErrNoMasterKey):
		app.logger.Debug("token store is not encrypted, no master key configured")
	case err != nil:
		return fmt.Errorf("failed to load master key: %w", err)
	default:
		opts = append(opts, sqlite.WithSealer(sealer))
	}

	db, err := sqlite.NewStore(dsn, opts...)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply token store migrations: %w", err)
	}
	return nil
}

func (app *Application) initClient() {
	opts := []apiclient.Option{
		apiclient.WithHTTPClient(&http.Client{Timeout: app.cfg.RequestTimeout}),
		apiclient.WithLogger(app.logger),
		apiclient.WithInterceptor(apiclient.RequestIDInterceptor()),
	}

	if limit := app.cfg.RateLimit.limit(); limit.Enabled() {
		opts = append(opts, apiclient.WithInterceptor(httpx.RateLimitInterceptor(limit, httpx.HostKeyExtractor)))
	}

	opts = append(opts, apiclient.WithInterceptor(apiclient.LoggingInterceptor(app.logger)))

	app.client = apiclient.New(app.cfg.BaseURL, app.db.Tokens(), opts...)
}

func (app *Application) initServices() {
	app.Session = &service.SessionService{Client: app.client}
	app.Patients = &service.PatientService{Client: app.client}
}
