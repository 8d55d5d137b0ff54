// Package server wires the messenger server together: it selects a user
// store, builds the session registry and core loop, and handles OS signals
// for shutdown and list-refresh broadcasts.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gomessenger/internal/cryptox"
	"github.com/dmitrijs2005/gomessenger/internal/logging"
	"github.com/dmitrijs2005/gomessenger/internal/proto"
	"github.com/dmitrijs2005/gomessenger/internal/server/config"
	"github.com/dmitrijs2005/gomessenger/internal/server/core"
	"github.com/dmitrijs2005/gomessenger/internal/server/registry"
	"github.com/dmitrijs2005/gomessenger/internal/server/users"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  users.Store
	srv    *core.Server
	out    io.Writer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewDefault().With("module", "server")

	var store users.Store
	if cfg.DatabaseDSN != "" {
		s, err := users.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		store = s
	} else {
		store = users.NewMemoryStore()
	}

	reg := registry.New(store, logger)
	srv := core.NewServer(cfg.TCPAddr(), cfg.MaxFrameLength, proto.DefaultKeys(), store, reg, logger)

	return &App{config: cfg, logger: logger, store: store, srv: srv, out: os.Stdout}, nil
}

// runAdminAction performs the one-shot administrative actions: -register,
// -remove, and the -active / -history / -stats reports. Returns true if an
// action was requested, in which case the server should exit instead of
// serving.
func (app *App) runAdminAction(ctx context.Context) (bool, error) {
	if app.config.RegisterUser != "" {
		name, password, ok := strings.Cut(app.config.RegisterUser, ":")
		if !ok || name == "" || password == "" {
			return true, fmt.Errorf("register: expected name:password, got %q", app.config.RegisterUser)
		}
		if err := app.store.RegisterUser(ctx, name, cryptox.PasswordHash(password, name)); err != nil {
			return true, fmt.Errorf("register %s: %w", name, err)
		}
		app.logger.Info(ctx, "user registered", "user", name)
		return true, nil
	}

	if app.config.RemoveUser != "" {
		if err := app.store.RemoveUser(ctx, app.config.RemoveUser); err != nil {
			return true, fmt.Errorf("remove %s: %w", app.config.RemoveUser, err)
		}
		app.logger.Info(ctx, "user removed", "user", app.config.RemoveUser)
		return true, nil
	}

	if app.config.ShowActive {
		list, err := app.store.ActiveUsers(ctx)
		if err != nil {
			return true, fmt.Errorf("active users: %w", err)
		}
		for _, u := range list {
			fmt.Fprintf(app.out, "%s\t%s:%d\t%s\n", u.Name, u.Addr, u.Port, u.LoginAt.Format(time.RFC3339))
		}
		return true, nil
	}

	if app.config.HistoryUser != "" {
		list, err := app.store.LoginHistory(ctx, app.config.HistoryUser)
		if err != nil {
			return true, fmt.Errorf("login history %s: %w", app.config.HistoryUser, err)
		}
		for _, e := range list {
			fmt.Fprintf(app.out, "%s\t%s:%d\t%s\n", e.Name, e.Addr, e.Port, e.At.Format(time.RFC3339))
		}
		return true, nil
	}

	if app.config.ShowStats {
		list, err := app.store.MessageHistory(ctx)
		if err != nil {
			return true, fmt.Errorf("message stats: %w", err)
		}
		for _, st := range list {
			fmt.Fprintf(app.out, "%s\tsent %d\treceived %d\n", st.Name, st.Sent, st.Received)
		}
		return true, nil
	}

	return false, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	go func() {
		for sig := range sigs {
			if sig == syscall.SIGHUP {
				app.logger.Info(ctx, "refresh requested")
				app.srv.BroadcastRefresh(ctx)
				continue
			}
			cancelFunc()
			return
		}
	}()
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	if done, err := app.runAdminAction(ctx); done {
		return err
	}

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(ctx, cancelFunc)

	err := app.srv.Run(ctx)

	if cerr := app.store.Close(); cerr != nil {
		app.logger.Error(ctx, "store close error", "error", cerr)
	}

	return err
}
