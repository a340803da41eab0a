package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"telephony/internal/logs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestLast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telephony.log")
	writeFile(t, path, "a\nb\nc\npartial")

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"fewer than available", 2, []string{"b", "c"}},
		{"more than available", 10, []string{"a", "b", "c"}},
		{"none", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := logs.Last(path, tt.n)
			if err != nil {
				t.Fatalf("Last: %v", err)
			}
			if len(page.Lines) != len(tt.want) {
				t.Fatalf("lines = %#v, want %#v", page.Lines, tt.want)
			}
			for i := range tt.want {
				if page.Lines[i] != tt.want[i] {
					t.Fatalf("lines = %#v, want %#v", page.Lines, tt.want)
				}
			}
		})
	}

	page, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if page.Offset != int64(len("a\nb\nc\n")) {
		t.Fatalf("offset = %d, want end of last complete line", page.Offset)
	}
}

func TestMissingFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.log")
	page, err := logs.Last(path, 5)
	if err != nil || len(page.Lines) != 0 || page.Offset != 0 {
		t.Fatalf("Last on missing file = %+v, %v", page, err)
	}
	page, err = logs.From(path, 10)
	if err != nil || len(page.Lines) != 0 {
		t.Fatalf("From on missing file = %+v, %v", page, err)
	}
}

func TestFromRestartsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telephony.log")
	writeFile(t, path, "fresh\n")

	page, err := logs.From(path, 500)
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if len(page.Lines) != 1 || page.Lines[0] != "fresh" {
		t.Fatalf("unexpected lines %#v", page.Lines)
	}
}

func TestFollowStreamsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telephony.log")
	writeFile(t, path, "old\n")
	start, err := logs.Last(path, 0)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, start.Offset, 10*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	appendFile(t, path, "new one\nnew two\n")
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("follow delivered %d lines", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if got[0] != "new one" || got[1] != "new two" {
		t.Fatalf("unexpected lines %#v", got)
	}
}
