package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"termshare/internal/auth"
	"termshare/internal/bridge"
	"termshare/internal/constants"
	"termshare/internal/hub"
	"termshare/internal/registry"
	"termshare/internal/relay"
	"termshare/internal/security"
	"termshare/internal/types"
)

type testEnv struct {
	srv   *httptest.Server
	token string
	reg   *registry.Registry
}

func newTestEnv(t *testing.T, isHub bool) *testEnv {
	t.Helper()

	token := auth.NewSessionToken()
	tickets := auth.NewMemoryTicketStore(token)
	t.Cleanup(tickets.Close)

	reg, err := registry.NewAt(t.TempDir())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	s := New(Config{
		Token:   token,
		Tickets: tickets,
		Limiter: security.NewRateLimiter(),
		Hub:     hub.New(reg, nil),
		IsHub:   isHub,
	})

	ts := httptest.NewServer(s.httpSrv.Handler)
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, token: token.Value(), reg: reg}
}

func (e *testEnv) request(t *testing.T, method, path, token, forwardedFor string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTicketRequiresSessionToken(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodPost, constants.EndpointTicket, "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: got %d, want 401", resp.StatusCode)
	}

	resp = env.request(t, http.MethodPost, constants.EndpointTicket, "wrong-token", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: got %d, want 401", resp.StatusCode)
	}
}

func TestTicketIssued(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodPost, constants.EndpointTicket, env.token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}

	var tr types.TicketResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tr.Ticket == "" {
		t.Fatal("empty ticket id")
	}
	if exp := time.Unix(tr.Expires, 0); time.Until(exp) <= 0 {
		t.Fatalf("ticket already expired: %v", exp)
	}
}

func TestTicketTokenViaQueryParam(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodPost, constants.EndpointTicket+"?token="+env.token, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
}

func TestTicketMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodGet, constants.EndpointTicket, env.token, "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("got %d, want 405", resp.StatusCode)
	}
}

func TestSessionsList(t *testing.T) {
	env := newTestEnv(t, false)

	rec := types.SessionRecord{
		ID:        "2b1c3d4e-5f60-4182-93a4-b5c6d7e8f901",
		Token:     "must-not-leak",
		Name:      "build",
		Port:      7700,
		Machine:   "dev-box",
		PID:       4242,
		CreatedAt: time.Now(),
	}
	if err := env.reg.Write(rec); err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	resp := env.request(t, http.MethodGet, constants.EndpointSessions, env.token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}

	var list types.SessionListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].Name != "build" {
		t.Fatalf("unexpected list: %+v", list.Sessions)
	}
}

func TestSessionsListEmptyIsArray(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodGet, constants.EndpointSessions, env.token, "")
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `"sessions":[]`) {
		t.Fatalf("empty list should serialize as [], got %s", body)
	}
}

func TestDeleteSessionInvalidID(t *testing.T) {
	env := newTestEnv(t, false)

	for _, id := range []string{"not-a-uuid", "1234", "2b1c3d4e-5f60-4182-93a4"} {
		resp := env.request(t, http.MethodDelete, constants.EndpointSessionByID+id, env.token, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("id %q: got %d, want 400", id, resp.StatusCode)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t, false)

	id := "2b1c3d4e-5f60-4182-93a4-b5c6d7e8f901"
	if err := env.reg.Write(types.SessionRecord{ID: id, Name: "doomed", Port: 7900}); err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	resp := env.request(t, http.MethodDelete, constants.EndpointSessionByID+id, env.token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	var dr types.DeleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !dr.Deleted {
		t.Fatal("expected deleted=true")
	}
	if _, ok := env.reg.FindByPort(7900); ok {
		t.Fatal("record should be gone from the registry")
	}
}

func TestGeneralRateLimit(t *testing.T) {
	env := newTestEnv(t, false)

	var ok, limited int
	for i := 0; i < constants.GeneralRateLimit+5; i++ {
		resp := env.request(t, http.MethodGet, constants.EndpointSessions, env.token, "203.0.113.7")
		switch resp.StatusCode {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			limited++
		default:
			t.Fatalf("request %d: unexpected status %d", i, resp.StatusCode)
		}
	}
	if ok != constants.GeneralRateLimit || limited != 5 {
		t.Fatalf("got %d ok / %d limited, want %d / 5", ok, limited, constants.GeneralRateLimit)
	}
}

func TestTicketRateLimitIsStricter(t *testing.T) {
	env := newTestEnv(t, false)

	var limited int
	for i := 0; i < constants.TicketRateLimit+3; i++ {
		resp := env.request(t, http.MethodPost, constants.EndpointTicket, env.token, "203.0.113.8")
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 3 {
		t.Fatalf("got %d throttled ticket mints, want 3", limited)
	}

	// The ticket budget being spent must not block general API calls.
	resp := env.request(t, http.MethodGet, constants.EndpointSessions, env.token, "203.0.113.8")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("general call after ticket throttle: got %d, want 200", resp.StatusCode)
	}
}

func TestProxyTicketNotFoundOutsideHub(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodPost, constants.EndpointProxyTicket+"7681", env.token, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got %d, want 404", resp.StatusCode)
	}
}

func TestProxyTicketInvalidPort(t *testing.T) {
	env := newTestEnv(t, true)

	for _, p := range []string{"0", "70000", "abc", "-1"} {
		resp := env.request(t, http.MethodPost, constants.EndpointProxyTicket+p, env.token, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("port %q: got %d, want 400", p, resp.StatusCode)
		}
	}
}

func TestProxyTicketUnknownSession(t *testing.T) {
	env := newTestEnv(t, true)

	resp := env.request(t, http.MethodPost, constants.EndpointProxyTicket+"7681", env.token, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got %d, want 404", resp.StatusCode)
	}
}

func TestWebSocketEndpointAbsentInHub(t *testing.T) {
	env := newTestEnv(t, true)

	resp := env.request(t, http.MethodGet, constants.EndpointWebSocket, "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got %d, want 404", resp.StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodGet, "/", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}

	want := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	}
	for h, v := range want {
		if got := resp.Header.Get(h); got != v {
			t.Errorf("%s = %q, want %q", h, got, v)
		}
	}
	if csp := resp.Header.Get("Content-Security-Policy"); csp == "" {
		t.Error("missing Content-Security-Policy")
	}
}

func TestStaticServesViewer(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodGet, "/", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q, want text/html", ct)
	}
}

func TestStaticRejectsTraversal(t *testing.T) {
	env := newTestEnv(t, false)

	for _, p := range []string{"/../go.mod", "/..%2Fgo.mod", "/static/../../etc/passwd"} {
		req, err := http.NewRequest(http.MethodGet, env.srv.URL+p, nil)
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		// Keep the raw path; the client must not clean it for us.
		req.URL.Opaque = p
		resp, err := env.srv.Client().Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", p, err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			t.Errorf("path %q should not be served", p)
		}
	}
}

func TestExpiredSessionRejectsAPI(t *testing.T) {
	token := auth.NewSessionToken()
	tickets := auth.NewMemoryTicketStore(token)
	t.Cleanup(tickets.Close)

	manager := bridge.NewConnManager(tickets, nil, -time.Second, nil)
	t.Cleanup(manager.Shutdown)

	reg, err := registry.NewAt(t.TempDir())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	s := New(Config{
		Token:   token,
		Tickets: tickets,
		Limiter: security.NewRateLimiter(),
		Manager: manager,
		Hub:     hub.New(reg, relay.NewClient()),
	})
	ts := httptest.NewServer(s.httpSrv.Handler)
	t.Cleanup(ts.Close)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+constants.EndpointTicket, nil)
	req.Header.Set("Authorization", "Bearer "+token.Value())
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("POST ticket: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401 for expired session", resp.StatusCode)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(fmt.Errorf("boom"))
	})
	rec := httptest.NewRecorder()
	RecoveryMiddleware(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rec.Code)
	}
}
