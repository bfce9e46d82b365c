package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/takershield/observer/internal/command"
	"github.com/takershield/observer/internal/config"
	"github.com/takershield/observer/internal/connection"
	"github.com/takershield/observer/internal/database"
	"github.com/takershield/observer/internal/display"
	"github.com/takershield/observer/internal/input"
	"github.com/takershield/observer/internal/journal"
	"github.com/takershield/observer/internal/protocol"
	"github.com/takershield/observer/internal/session"
	"github.com/takershield/observer/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "configs/observer.yaml", "path to config file")
	serverURL := flag.String("url", "", "brain server WebSocket URL (overrides config)")
	token := flag.String("token", "", "auth token (overrides config)")
	size := flag.Int("size", 0, "position size for display context (overrides config)")
	side := flag.String("side", "", "quote side for display context: yes, no, both (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("observer", version.String())
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	// Flag overrides
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}
	if *token != "" {
		cfg.Server.Token = *token
	}
	if *size != 0 {
		cfg.Display.PositionSize = *size
	}
	if *side != "" {
		cfg.Display.QuoteSide = *side
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The terminal belongs to the dashboard, so logs go to a file.
	logFile, err := os.OpenFile(cfg.Log.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting observer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"url", cfg.Server.URL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Session state and wire decoder
	state := session.NewState(session.WithStatusDuration(cfg.Display.StatusDuration))
	decoder := protocol.NewDecoder(logger)

	// Optional write-only risk-event journal
	var recorder session.Recorder
	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		logger.Info("connecting to journal database",
			"host", cfg.Journal.Database.Host,
			"port", cfg.Journal.Database.Port,
			"database", cfg.Journal.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Journal.Database)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()

		jrnl = journal.New(cfg.Journal, pool, logger)
		if err := jrnl.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			jrnl.Stop(stopCtx)
		}()
		recorder = jrnl
	}

	reconciler := session.NewReconciler(state, decoder, recorder, logger)

	// Transport session
	sess := connection.NewSession(connection.SessionConfig{
		URL:              cfg.Server.URL,
		Token:            cfg.Server.Token,
		CleanCloseDelay:  cfg.Connection.CleanCloseDelay,
		ErrorDelay:       cfg.Connection.ErrorDelay,
		HandshakeTimeout: cfg.Connection.HandshakeTimeout,
		WriteTimeout:     cfg.Connection.WriteTimeout,
		PingInterval:     cfg.Connection.PingInterval,
		BufferSize:       cfg.Connection.BufferSize,
	}, connection.Hooks{
		OnConnect:    reconciler.OnConnect,
		OnDisconnect: reconciler.OnDisconnect,
	}, logger)

	sess.Start(ctx)
	defer sess.Stop()

	go reconciler.Run(ctx, sess.Messages())

	// Display
	mode := display.NewMode()
	terminal := display.NewTerminal(os.Stdout)
	scheduler := display.NewScheduler(state, terminal, mode, cfg.Display.RefreshInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Keyboard: blocks until quit, error, or cancellation.
	dispatcher := command.NewDispatcher(sess, state, logger)
	handler := input.NewHandler(dispatcher, state, mode, terminal, logger)

	err = handler.Run(ctx)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("input loop failed", "error", err)
	}
	logger.Info("observer stopped")

	// Leave the cursor below the last frame.
	fmt.Println()
	fmt.Println("Goodbye!")
	return nil
}

// loadConfig loads and defaults the config; a missing file falls back to
// pure defaults so flags alone can drive the observer.
func loadConfig(path string) (*config.ObserverConfig, error) {
	cfg, err := config.LoadWithDefaults(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		cfg = &config.ObserverConfig{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return nil, err
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
