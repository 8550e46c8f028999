package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/displayd/internal/config"
	"github.com/1broseidon/displayd/internal/daemon"
	"github.com/1broseidon/displayd/internal/hotkeys"
	"github.com/1broseidon/displayd/internal/ipc"
	"github.com/1broseidon/displayd/internal/platform"
)

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/displayd/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: displayd daemon [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the daemon in the foreground. SIGHUP reloads the config.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	configPath := *path
	if configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		configPath = p
	}
	res, err := config.LoadFromPath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	cfg := res.Config

	level := new(slog.LevelVar)
	level.Set(cfg.SlogLevel())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger.Info("configuration loaded", "path", configPath, "files", len(res.Files), "log_level", cfg.LogLevel)

	backend, err := platform.NewLinuxBackendFromDisplay()
	if err != nil {
		logger.Error("failed to connect to display", "error", err)
		return 1
	}
	defer backend.Disconnect()
	major, minor := backend.RandRVersion()
	logger.Info("connected to display", "randr", fmt.Sprintf("%d.%d", major, minor))

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		ConfigPath: configPath,
		Backend:    backend,
		Logger:     logger,
		Level:      level,
	})
	if err != nil {
		logger.Error("failed to create daemon", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		logger.Error("failed to start daemon", "error", err)
		return 1
	}

	hotkeyHandler := hotkeys.NewHandler(backend, d, logger.With("component", "hotkeys"))
	if err := hotkeyHandler.Bind(cfg.Hotkeys); err != nil {
		logger.Warn("failed to bind hotkeys", "error", err)
	}
	d.OnReload(func(next *config.Config) {
		if err := hotkeyHandler.Bind(next.Hotkeys); err != nil {
			logger.Warn("failed to rebind hotkeys", "error", err)
		}
	})

	ipcServer, err := ipc.NewServer(d, logger.With("component", "ipc"))
	if err != nil {
		logger.Error("failed to create ipc server", "error", err)
		d.Shutdown()
		return 1
	}
	if err := ipcServer.Start(); err != nil {
		logger.Error("failed to start ipc server", "error", err)
		d.Shutdown()
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				logger.Info("received SIGHUP, reloading config")
				if err := d.Reload(); err != nil {
					logger.Error("config reload failed", "error", err)
				}
				continue
			}
			logger.Info("shutting down", "signal", sig.String())
			ipcServer.Stop()
			d.Shutdown()
			backend.Quit()
			return
		}
	}()

	logger.Info("entering event loop")
	backend.EventLoop()
	signal.Stop(sigCh)
	return 0
}
