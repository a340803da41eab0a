package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pelletier/go-toml/v2"

	"telephony/internal/config"
	"telephony/internal/daemon"
	"telephony/internal/ipc"
	"telephony/internal/logging"
	"telephony/internal/tapi"
	"telephony/internal/testsupport"
	"telephony/internal/transport"
)

const modem0 = "/ril_0"

type cliTestEnv struct {
	cfg        *config.Config
	conn       *testsupport.FakeConn
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

// modemResponder answers registration, serving cell, and scan calls.
func modemResponder(call testsupport.FakeCall) *transport.Reply {
	switch {
	case call.Interface == tapi.NetworkRegistrationInterface && call.Method == "GetProperties":
		return &transport.Reply{Body: []any{testsupport.Props(
			"Name", "Carrier", "Status", "registered", "Technology", "lte",
			"MobileCountryCode", "208", "MobileNetworkCode", "01",
		)}}
	case call.Method == "Scan":
		return &transport.Reply{Body: []any{[][]any{
			{dbus.ObjectPath("/ril_0/operator/20801"), testsupport.Props("Name", "Orange", "Status", "current")},
			{dbus.ObjectPath("/ril_0/operator/20810"), testsupport.Props("Name", "SFR", "Status", "available")},
		}}}
	case call.Method == "Register":
		return &transport.Reply{}
	}
	return nil
}

// setupDirectEnv writes a config whose daemon socket does not exist and
// routes direct bus sessions to an in-memory connection.
func setupDirectEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSlots(modem0))
	conn := testsupport.NewFakeConn()
	conn.SetResponder(modemResponder)

	previous := dialBus
	dialBus = func(*config.Config, *slog.Logger) (transport.Conn, error) { return conn, nil }
	t.Cleanup(func() { dialBus = previous })

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, conn: conn, socketPath: cfg.Paths.SocketPath, configPath: configPath}
}

// setupDaemonEnv starts a daemon and IPC server over an in-memory bus.
func setupDaemonEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := setupDirectEnv(t)
	daemonConn := testsupport.NewFakeConn()
	daemonConn.SetResponder(modemResponder)
	store := testsupport.MustOpenJournal(t, env.cfg)

	logger := logging.NewNop()
	d, err := daemon.New(env.cfg, daemonConn, store, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := os.MkdirAll(filepath.Dir(env.socketPath), 0o755); err != nil {
		t.Fatalf("mkdir socket dir: %v", err)
	}
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping daemon CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})
	env.conn = daemonConn
	env.daemon = d
	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
