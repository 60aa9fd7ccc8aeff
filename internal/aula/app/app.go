package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/cryptox"
	"github.com/aussiebroadwan/aula/pkg/realtime"
	"github.com/aussiebroadwan/aula/pkg/slogx"
	"github.com/aussiebroadwan/aula/pkg/tokenstore"
)

// Application wires the configured token store, HTTP client and session for
// one CLI invocation.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store   *tokenstore.Store
	client  *aulasdk.SDKClient
	session *aulasdk.Session
}

// New opens the token store and builds the client stack.
func New(cfg Config, version string) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "aula-cli",
			Version: version,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	store, err := OpenStore(cfg.Store, app.logger)
	if err != nil {
		return nil, err
	}
	app.store = store

	app.client = aulasdk.NewSDKClient(cfg.BaseURL,
		aulasdk.WithLogger(app.logger),
		aulasdk.WithTimeout(cfg.RequestTimeout),
		aulasdk.WithRefreshTimeout(cfg.RefreshTimeout),
		aulasdk.WithRateLimit(cfg.RateLimit.transport()),
	)
	app.bind(aulasdk.NewSession(app.client, app.store))

	return app, nil
}

func (app *Application) bind(sess *aulasdk.Session) {
	sess.OnTerminated(func(cause error) {
		app.logger.Info("session ended, sign in again", "cause", cause)
	})
	app.session = sess
}

func (app *Application) Config() Config { return app.cfg }
func (app *Application) Logger() *slog.Logger { return app.logger }
func (app *Application) Client() *aulasdk.SDKClient { return app.client }
func (app *Application) Session() *aulasdk.Session { return app.session }
func (app *Application) Store() *tokenstore.Store { return app.store }

// Login signs in and replaces the application's session.
func (app *Application) Login(ctx context.Context, email, password string) (*aulasdk.User, error) {
	sess, err := app.client.Login(ctx, app.store, aulasdk.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	app.bind(sess)
	app.logger.Debug("signed in", "email", email)
	return sess.CurrentUser(ctx)
}

// Inbox returns an unstarted realtime inbox for the current session.
func (app *Application) Inbox(onNotification func(aulasdk.Notification)) (*realtime.Inbox, error) {
	wsURL := app.cfg.WebsocketURL
	if wsURL == "" {
		var err error
		if wsURL, err = realtime.WebsocketURL(app.cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("failed to derive websocket url: %w", err)
		}
	}

	return realtime.NewInbox(app.session, realtime.Config{
		URL:            wsURL,
		Limit:          app.cfg.NotificationLimit,
		OnNotification: onNotification,
		Logger:         app.logger,
	}), nil
}

// Close releases the token store.
func (app *Application) Close() error {
	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing token store", "error", err)
		return err
	}
	return nil
}

// OpenStore opens the configured backend, sealing values when a key is
// available.
func OpenStore(cfg StoreConfig, logger *slog.Logger) (*tokenstore.Store, error) {
	var opts []tokenstore.Option
	if cfg.Sealed() {
		sealer, err := cryptox.LoadSealer(cfg.KeyFile, MasterKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("failed to load store key: %w", err)
		}
		opts = append(opts, tokenstore.WithSealer(sealer))
	}

	var backend tokenstore.Backend
	switch cfg.Driver {
	case StoreMemory:
		backend = tokenstore.NewMemoryBackend()
	case StoreSQLite, StoreBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		var err error
		if cfg.Driver == StoreSQLite {
			backend, err = tokenstore.OpenSQLite(cfg.Path)
		} else {
			backend, err = tokenstore.OpenBolt(cfg.Path)
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unknown store driver " + cfg.Driver)
	}

	logger.Debug("token store opened", "driver", cfg.Driver, "path", cfg.Path, "sealed", len(opts) > 0)
	return tokenstore.New(backend, opts...), nil
}
