package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"telephony/internal/config"
	"telephony/internal/logging"
	"telephony/internal/transport"
)

const (
	defaultSystemBusSocket = "/run/dbus/system_bus_socket"
	connectTimeout         = 5 * time.Second
)

// Requirement defines an external binary the bridge relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

func serviceRequirements() []Requirement {
	return []Requirement{
		{
			Name:        "oFono",
			Command:     "ofonod",
			Description: "Telephony service exporting the modem objects",
			Optional:    true,
		},
	}
}

// CheckBinaries reports which requirements resolve on PATH.
func CheckBinaries(requirements []Requirement) []Result {
	results := make([]Result, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		res := Result{Name: req.Name, Optional: req.Optional}
		switch {
		case cmd == "":
			res.Detail = "command not configured"
		default:
			if path, err := exec.LookPath(cmd); err != nil {
				res.Detail = fmt.Sprintf("binary %q not found (%s)", cmd, req.Description)
			} else {
				res.Passed = true
				res.Detail = path
			}
		}
		results = append(results, res)
	}
	return results
}

// BusAddress returns the address the configured bus type resolves to.
func BusAddress(cfg *config.Config) string {
	switch cfg.Bus.Type {
	case config.BusAddress:
		return cfg.Bus.Address
	case config.BusSession:
		return os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	default:
		if addr := os.Getenv("DBUS_SYSTEM_BUS_ADDRESS"); addr != "" {
			return addr
		}
		return "unix:path=" + defaultSystemBusSocket
	}
}

// SocketPath extracts the filesystem socket from a bus address. Only the
// first transport of a semicolon list is considered. ok is false for
// non-unix or abstract addresses.
func SocketPath(address string) (path string, ok bool) {
	first, _, _ := strings.Cut(strings.TrimSpace(address), ";")
	transportName, params, found := strings.Cut(first, ":")
	if !found || transportName != "unix" {
		return "", false
	}
	for _, kv := range strings.Split(params, ",") {
		key, value, _ := strings.Cut(kv, "=")
		if key == "path" && value != "" {
			return value, true
		}
	}
	return "", false
}

// CheckBusSocket verifies the bus socket exists and is writable by the
// current user.
func CheckBusSocket(cfg *config.Config) Result {
	const name = "Bus socket"
	address := BusAddress(cfg)
	if address == "" {
		return Result{Name: name, Detail: fmt.Sprintf("no address for %s bus", cfg.Bus.Type)}
	}
	path, ok := SocketPath(address)
	if !ok {
		return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("%s (not a filesystem socket, skipped)", address)}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.Mode()&os.ModeSocket == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a socket)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBusConnect dials the configured bus and hangs up.
func CheckBusConnect(ctx context.Context, cfg *config.Config) Result {
	const name = "Bus connection"
	type dialResult struct {
		conn *transport.DBusConn
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		conn, err := transport.Dial(cfg.Bus.Type, cfg.Bus.Address, logging.NewNop())
		done <- dialResult{conn, err}
	}()

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	select {
	case res := <-done:
		if res.err != nil {
			return Result{Name: name, Detail: res.err.Error()}
		}
		_ = res.conn.Close()
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s bus reachable", cfg.Bus.Type)}
	case <-ctx.Done():
		go func() {
			if res := <-done; res.conn != nil {
				_ = res.conn.Close()
			}
		}()
		return Result{Name: name, Detail: "connect timed out"}
	}
}

// CheckModemSlots validates every configured modem object path.
func CheckModemSlots(cfg *config.Config) []Result {
	results := make([]Result, 0, len(cfg.Slots))
	for i, slot := range cfg.Slots {
		name := fmt.Sprintf("Slot %d", i)
		switch {
		case slot.ModemPath == "":
			results = append(results, Result{Name: name, Passed: true, Optional: true, Detail: "no modem configured"})
		case !dbus.ObjectPath(slot.ModemPath).IsValid():
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%q is not a valid object path", slot.ModemPath)})
		default:
			results = append(results, Result{Name: name, Passed: true, Detail: slot.ModemPath})
		}
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}
