package hub

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"termshare/internal/registry"
	"termshare/internal/types"
)

func newTestHub(t *testing.T) (*Hub, *registry.Registry) {
	t.Helper()
	reg, err := registry.NewAt(t.TempDir())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return New(reg, nil), reg
}

// siblingServer starts a fake session ticket endpoint and registers it.
func siblingServer(t *testing.T, reg *registry.Registry, handler http.HandlerFunc) int {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	reg.Write(types.SessionRecord{
		ID:        "sibling",
		Token:     "sibling-token",
		Name:      "sibling",
		Port:      port,
		Machine:   "testhost",
		PID:       4321,
		CreatedAt: time.Now(),
	})
	return port
}

func TestProxyTicketSuccess(t *testing.T) {
	h, reg := newTestHub(t)

	var gotAuth string
	port := siblingServer(t, reg, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ticket":"t-123","expires":1}`))
	})

	resp, err := h.ProxyTicket(port)
	if err != nil {
		t.Fatalf("ProxyTicket: %v", err)
	}
	if resp.Ticket != "t-123" || resp.Port != port {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer sibling-token" {
		t.Fatalf("sibling should be called with its own token, got %q", gotAuth)
	}
}

func TestProxyTicketUnknownPort(t *testing.T) {
	h, _ := newTestHub(t)
	if _, err := h.ProxyTicket(19999); err != ErrUnknownSession {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestProxyTicketNon200IsUnreachable(t *testing.T) {
	h, reg := newTestHub(t)
	port := siblingServer(t, reg, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := h.ProxyTicket(port); err != ErrUnreachable {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestProxyTicketDeadPortIsUnreachable(t *testing.T) {
	h, reg := newTestHub(t)

	// Grab a port and release it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	reg.Write(types.SessionRecord{ID: "dead", Token: "x", Port: port, CreatedAt: time.Now()})

	if _, err := h.ProxyTicket(port); err != ErrUnreachable {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestSessionsOmitCredentials(t *testing.T) {
	h, reg := newTestHub(t)
	reg.Write(types.SessionRecord{
		ID: "aaa", Token: "secret-token", Name: "work", Port: 7001, CreatedAt: time.Now(),
	})

	sessions := h.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Name != "work" || !sessions[0].Local {
		t.Fatalf("unexpected session info: %+v", sessions[0])
	}
}

func TestDeleteRecord(t *testing.T) {
	h, reg := newTestHub(t)
	reg.Write(types.SessionRecord{ID: "zzz", Port: 7009, CreatedAt: time.Now()})

	if !h.Delete("zzz") {
		t.Fatal("Delete should remove an existing record")
	}
	if h.Delete("zzz") {
		t.Fatal("Delete of a missing record should report false")
	}
}
