package daemonrun

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"furrow/internal/config"
	"furrow/internal/daemon"
	"furrow/internal/ipc"
	"furrow/internal/logging"
	"furrow/internal/preflight"
	"furrow/internal/queue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel   string
	SocketPath string
}

// Run starts the furrow daemon runtime loop and blocks until the context
// ends or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.NewFromConfig(level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, check := range preflight.RunAll(signalCtx, cfg) {
		if check.Passed {
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
		)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("construct daemon: %w", err)
	}
	defer d.Close()

	socket := opts.SocketPath
	if socket == "" {
		socket = cfg.Paths.SocketPath
	}
	server, err := ipc.NewServer(signalCtx, socket, d, logger)
	if err != nil {
		return fmt.Errorf("start ipc server: %w", err)
	}
	defer server.Close()
	server.Serve()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	logger.Info("furrow daemon running",
		logging.String("socket", socket),
		logging.String("queue_db", cfg.QueueDBPath()),
	)

	<-signalCtx.Done()
	logger.Info("shutdown signal received")
	return nil
}
