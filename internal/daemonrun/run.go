// Package daemonrun wires the daemon process: logger, bus connection, event
// journal, IPC socket, and signal handling.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"telephony/internal/config"
	"telephony/internal/daemon"
	"telephony/internal/ipc"
	"telephony/internal/journal"
	"telephony/internal/logging"
	"telephony/internal/transport"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the telephony daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("telephony-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update telephony.log link: %v\n", err)
	}
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "telephony.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	conn, err := transport.Dial(cfg.Bus.Type, cfg.Bus.Address, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "connect to message bus", "bus_connect_failed",
			logging.Error(err),
			logging.String("bus_type", cfg.Bus.Type),
			logging.String(logging.FieldErrorHint, "run telephony doctor to check bus access"),
			logging.String(logging.FieldImpact, "daemon cannot start"),
		)
		return err
	}

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg)
		if err != nil {
			conn.Close()
			logger.Error("open event journal", logging.Error(err))
			return err
		}
	}

	d, err := daemon.New(cfg, conn, store, logger)
	if err != nil {
		conn.Close()
		if store != nil {
			store.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the lock file and the slots section of the config"),
			logging.String(logging.FieldImpact, "no notifications are delivered until the daemon is started over IPC"),
		)
	}

	<-signalCtx.Done()
	logger.Info("telephony daemon shutting down")
	return nil
}

// CurrentLogPath is the stable link to the log file of the latest run.
func CurrentLogPath(logDir string) string {
	return filepath.Join(logDir, "telephony.log")
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := CurrentLogPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("config snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("bus_type", cfg.Bus.Type),
		logging.String("service", cfg.Bus.Service),
		logging.Int("slots", len(cfg.Slots)),
		logging.Int("watches", len(cfg.Watches)),
		logging.Int("max_in_flight", cfg.Dispatch.MaxInFlight),
		logging.Bool("journal_enabled", cfg.Journal.Enabled),
		logging.Bool("hotplug_enabled", cfg.Hotplug.Enabled),
		logging.Bool("api_enabled", cfg.API.Bind != ""),
	)
}
