package preflight

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"telephony/internal/config"
	"telephony/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestSocketPath(t *testing.T) {
	tests := []struct {
		address string
		want    string
		ok      bool
	}{
		{"unix:path=/run/dbus/system_bus_socket", "/run/dbus/system_bus_socket", true},
		{"unix:guid=abc,path=/tmp/bus", "/tmp/bus", true},
		{"unix:path=/tmp/a;tcp:host=localhost,port=1", "/tmp/a", true},
		{"unix:abstract=/tmp/dbus-XYZ", "", false},
		{"tcp:host=localhost,port=4000", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, ok := SocketPath(tt.address)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("SocketPath(%q) = %q, %v", tt.address, got, ok)
			}
		})
	}
}

func TestCheckBusSocket(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	socket := filepath.Join(testsupport.BaseDir(cfg), "bus.sock")

	if res := CheckBusSocket(cfg); res.Passed {
		t.Fatalf("expected failure before socket exists, got %+v", res)
	}

	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	if res := CheckBusSocket(cfg); !res.Passed {
		t.Fatalf("expected pass, got %+v", res)
	}

	cfg.Bus.Address = "tcp:host=localhost,port=4000"
	if res := CheckBusSocket(cfg); !res.Passed || !res.Optional {
		t.Fatalf("expected skipped non-unix address, got %+v", res)
	}
}

func TestCheckBusSocketRejectsRegularFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "bus.sock")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if res := CheckBusSocket(cfg); res.Passed {
		t.Fatalf("expected failure for regular file, got %+v", res)
	}
}

func TestCheckModemSlots(t *testing.T) {
	cfg := config.Default()
	cfg.Slots = []config.Slot{{ModemPath: "/ril_0"}, {ModemPath: ""}, {ModemPath: "ril_2"}}
	results := CheckModemSlots(&cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Passed {
		t.Fatalf("slot 0: %+v", results[0])
	}
	if !results[1].Passed || !results[1].Optional {
		t.Fatalf("slot 1: %+v", results[1])
	}
	if results[2].Passed {
		t.Fatalf("slot 2: %+v", results[2])
	}
	if !Failed(results) {
		t.Fatal("expected Failed to report the invalid slot")
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	results := CheckBinaries([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary", Optional: true},
		{Name: "Empty"},
	})
	if !results[0].Passed || results[0].Detail != present {
		t.Fatalf("expected present binary, got %+v", results[0])
	}
	if results[1].Passed || !results[1].Optional {
		t.Fatalf("expected optional missing binary, got %+v", results[1])
	}
	if results[2].Passed || results[2].Detail == "" {
		t.Fatalf("expected unconfigured command failure, got %+v", results[2])
	}
	if !Failed(results) {
		t.Fatal("expected Failed for the empty requirement")
	}
	if Failed(results[:2]) {
		t.Fatal("optional failures must not fail the run")
	}
}
