package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bruwbird/codex/internal/config"
	"github.com/bruwbird/codex/internal/daemon"
	"github.com/bruwbird/codex/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	exitOK          = 0
	exitError       = 1
	exitConfigError = 2

	defaultStartupTimeout  = 20 * time.Second
	defaultShutdownTimeout = 3 * time.Second
)

type flags struct {
	workspace      string
	httpAddr       string
	startupTimeout time.Duration
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	fl, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, fl, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	baseLogger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	defer func() { _ = baseLogger.Sync() }()

	if logging.ParseLevel(cfg.LogLevel) <= zapcore.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(ctx, cfg, fl.startupTimeout, baseLogger); err != nil {
		baseLogger.Error("codexd failed", zap.Error(err))
		return exitError
	}
	return exitOK
}

func parseFlags(args []string, out io.Writer) (flags, error) {
	fs := flag.NewFlagSet("codexd", flag.ContinueOnError)
	fs.SetOutput(out)

	workspace := fs.String("workspace", "", "workspace directory (or env CODEX_WORKSPACE)")
	httpAddr := fs.String("http_addr", "", "HTTP listen address (or env CODEXD_HTTP_ADDR)")
	startupTimeout := fs.Duration("startup_timeout", defaultStartupTimeout, "fx startup timeout (e.g. 20s)")

	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	if *startupTimeout <= 0 {
		return flags{}, fmt.Errorf("startup_timeout must be > 0, got %s", *startupTimeout)
	}
	return flags{
		workspace:      *workspace,
		httpAddr:       *httpAddr,
		startupTimeout: *startupTimeout,
	}, nil
}

// loadConfig applies flags on top of the environment. Flags win.
func loadConfig(ctx context.Context, fl flags, lookup map[string]string) (config.Config, error) {
	var lookuper envconfig.Lookuper = envconfig.OsLookuper()
	if lookup != nil {
		lookuper = envconfig.MapLookuper(lookup)
	}
	if fl.workspace != "" {
		lookuper = envconfig.MultiLookuper(
			envconfig.MapLookuper(map[string]string{"CODEX_WORKSPACE": fl.workspace}),
			lookuper,
		)
	}

	cfg, err := config.Load(ctx, config.Options{Lookuper: lookuper, DefaultLogLevel: "info"})
	if err != nil {
		return config.Config{}, err
	}
	if fl.httpAddr != "" {
		if _, _, splitErr := net.SplitHostPort(fl.httpAddr); splitErr != nil {
			return config.Config{}, fmt.Errorf("http_addr: %w", splitErr)
		}
		cfg.HTTPAddr = fl.httpAddr
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, startupTimeout time.Duration, baseLogger *zap.Logger) error {
	logger := baseLogger.Sugar().With("component", "codexd")

	listenCfg := &net.ListenConfig{}
	lis, err := listenCfg.Listen(ctx, "tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", cfg.HTTPAddr, err)
	}
	defer func() { _ = lis.Close() }()

	if len(cfg.APIKeys) == 0 {
		logger.Warnw("daemon auth disabled", "hint", "set CODEXD_API_KEYS to require a bearer token")
	}
	logger.Infow("workspace", "path", cfg.Workspace, "base_url", cfg.BaseURL)

	app := fx.New(daemon.Options(cfg, baseLogger, lis)...)
	return startAndWait(ctx, app, startupTimeout, logger)
}

func startAndWait(ctx context.Context, app *fx.App, startupTimeout time.Duration, logger *zap.SugaredLogger) error {
	startCtx, startCancel := context.WithTimeout(ctx, startupTimeout)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("fx start: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	logger.Info("ready")
	<-ctx.Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}
