package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bruwbird/codex/internal/config"
	"github.com/bruwbird/codex/internal/logging"
	"github.com/bruwbird/codex/internal/notify"
	"github.com/bruwbird/codex/internal/prompt"
	"github.com/bruwbird/codex/internal/session"
	"github.com/bruwbird/codex/internal/settings"
	"github.com/bruwbird/codex/internal/transport"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"
)

const (
	exitOK          = 0
	exitError       = 1
	exitConfigError = 2
)

var errConfig = errors.New("config error")

// env is the process surface the commands run against.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// lookup replaces the process environment when non-nil.
	lookup map[string]string
	// newLogger defaults to logging.New.
	newLogger func(level string) (*zap.Logger, error)
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	cmd := newRootCmd(e)
	cmd.SetArgs(os.Args[1:])
	return exitCode(cmd.ExecuteContext(ctx), os.Stderr)
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errConfig):
		fmt.Fprintln(stderr, err)
		return exitConfigError
	default:
		fmt.Fprintln(stderr, err)
		return exitError
	}
}

// app is built per invocation from the resolved configuration.
type app struct {
	cfg    config.Config
	store  settings.Store
	cmds   *session.Commands
	logger *zap.Logger
}

func (e env) newApp(ctx context.Context, workspace string) (*app, error) {
	var lookuper envconfig.Lookuper = envconfig.OsLookuper()
	if e.lookup != nil {
		lookuper = envconfig.MapLookuper(e.lookup)
	}
	if workspace != "" {
		lookuper = envconfig.MultiLookuper(
			envconfig.MapLookuper(map[string]string{"CODEX_WORKSPACE": workspace}),
			lookuper,
		)
	}

	cfg, err := config.Load(ctx, config.Options{Lookuper: lookuper, DefaultLogLevel: "warn"})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	newLogger := e.newLogger
	if newLogger == nil {
		newLogger = logging.New
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	sugar := logger.Sugar().With("component", "codex")

	store := settings.NewFileStore(cfg.Workspace)
	cmds, err := session.NewCommands(session.Config{
		State: session.NewState(),
		Store: store,
		Sender: transport.New(transport.Config{
			BaseURL:            cfg.BaseURL,
			InsecureSkipVerify: cfg.InsecureSkipTLSVerify,
			Timeout:            cfg.HTTPTimeout,
			Logger:             sugar,
		}),
		Notifier: notify.NewTerminal(e.stdout),
		Prompter: prompt.New(e.stdin, e.stdout),
		Logger:   sugar,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &app{cfg: cfg, store: store, cmds: cmds, logger: logger}, nil
}

func (a *app) Close() {
	_ = a.logger.Sync()
}
