// Package daemon wires the codexd components into an fx application.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bruwbird/codex/internal/config"
	"github.com/bruwbird/codex/internal/httpapi"
	"github.com/bruwbird/codex/internal/notify"
	"github.com/bruwbird/codex/internal/session"
	"github.com/bruwbird/codex/internal/settings"
	"github.com/bruwbird/codex/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

type httpListener struct{ net.Listener }

// Options returns the fx options for a daemon serving on lis.
func Options(cfg config.Config, baseLogger *zap.Logger, lis net.Listener) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg, baseLogger, baseLogger.Sugar().With("component", "codexd")),
		fx.Supply(httpListener{Listener: lis}),
		fx.Provide(
			newStore,
			newSender,
			newNotifier,
			session.NewState,
			newCommands,
			newAPI,
			newHTTPServer,
		),
		fx.WithLogger(func() fxevent.Logger { return &fxevent.ZapLogger{Logger: baseLogger} }),
		fx.Invoke(func(*http.Server) {}),
	}
}

func newStore(cfg config.Config) settings.Store {
	return settings.NewFileStore(cfg.Workspace)
}

func newSender(cfg config.Config, logger *zap.SugaredLogger) transport.Sender {
	return transport.New(transport.Config{
		BaseURL:            cfg.BaseURL,
		InsecureSkipVerify: cfg.InsecureSkipTLSVerify,
		Timeout:            cfg.HTTPTimeout,
		Logger:             logger,
	})
}

func newNotifier(logger *zap.SugaredLogger) notify.Notifier {
	return notify.NewLog(logger)
}

type commandsParams struct {
	fx.In

	State    *session.State
	Store    settings.Store
	Sender   transport.Sender
	Notifier notify.Notifier
	Logger   *zap.SugaredLogger
}

func newCommands(p commandsParams) (*session.Commands, error) {
	return session.NewCommands(session.Config{
		State:    p.State,
		Store:    p.Store,
		Sender:   p.Sender,
		Notifier: p.Notifier,
		Logger:   p.Logger,
	})
}

func newAPI(
	lc fx.Lifecycle,
	cfg config.Config,
	cmds *session.Commands,
	logger *zap.SugaredLogger,
) (*httpapi.Server, error) {
	api, err := httpapi.New(httpapi.Config{
		Workspace: cfg.Workspace,
		APIKeys:   cfg.APIKeys,
	}, cmds, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cmds.Deactivate()
			api.Close()
			return nil
		},
	})
	return api, nil
}

func newHTTPServer(
	lc fx.Lifecycle,
	lis httpListener,
	api *httpapi.Server,
	logger *zap.SugaredLogger,
) *http.Server {
	server := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.Serve(lis.Listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorw("http serve failed", "err", err)
				}
			}()
			logger.Infow("codexd listening", "addr", lis.Addr().String())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})

	return server
}
