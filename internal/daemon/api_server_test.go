package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"telephony/internal/api"
	"telephony/internal/config"
)

type statusSourceStub struct {
	status    api.DaemonStatus
	events    api.EventsResponse
	err       error
	lastAfter int64
	lastLimit int
}

func (s *statusSourceStub) StatusPayload(context.Context) (api.DaemonStatus, error) {
	return s.status, s.err
}

func (s *statusSourceStub) EventsPayload(_ context.Context, after int64, limit int) (api.EventsResponse, error) {
	s.lastAfter, s.lastLimit = after, limit
	return s.events, s.err
}

func newTestAPIServer(t *testing.T, token string, source statusSource) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.API.Bind = "127.0.0.1:0"
	cfg.API.Token = token
	srv, err := newAPIServer(&cfg, source, nil)
	if err != nil || srv == nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	return srv.server.Handler
}

func TestAPIServerStatus(t *testing.T) {
	stub := &statusSourceStub{status: api.DaemonStatus{Running: true, PID: 42, Slots: []api.SlotStatus{{Slot: 0, ModemPath: "/ril_0", Available: true}}}}
	handler := newTestAPIServer(t, "", stub)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Running || resp.PID != 42 || len(resp.Slots) != 1 {
		t.Fatalf("unexpected status %+v", resp)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerEvents(t *testing.T) {
	stub := &statusSourceStub{events: api.EventsResponse{Events: []api.Event{{ID: 8, Event: "nitz"}}, Next: 8}}
	handler := newTestAPIServer(t, "", stub)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events?after=5&limit=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if stub.lastAfter != 5 || stub.lastLimit != 2 {
		t.Fatalf("query not forwarded: after=%d limit=%d", stub.lastAfter, stub.lastLimit)
	}
	var resp api.EventsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Next != 8 || len(resp.Events) != 1 {
		t.Fatalf("unexpected events %+v", resp)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events?after=x", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cursor, got %d", w.Code)
	}

	stub.err = errors.New("journal disabled")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestAPIServerAuth(t *testing.T) {
	handler := newTestAPIServer(t, "secret", &statusSourceStub{})
	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestNewAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := config.Default()
	srv, err := newAPIServer(&cfg, &statusSourceStub{}, nil)
	if err != nil || srv != nil {
		t.Fatalf("expected disabled server, got %v %v", srv, err)
	}
}
