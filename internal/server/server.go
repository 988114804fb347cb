package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"termshare/internal/auth"
	"termshare/internal/bridge"
	"termshare/internal/constants"
	"termshare/internal/hub"
	"termshare/internal/security"
)

// Config wires the front door to the owned components. Bridge is nil in hub
// mode; Hub is present in both modes (any session can serve the dashboard
// list, only a hub proxies tickets).
type Config struct {
	Token        *auth.SessionToken
	Tickets      auth.TicketStore
	Limiter      *security.RateLimiter
	Audit        *security.AuditLogger
	Bridge       *bridge.Bridge
	Manager      *bridge.ConnManager
	Hub          *hub.Hub
	IsHub        bool
	AllowedHosts []string
	Host         string
	Port         string
}

type Server struct {
	cfg      Config
	httpSrv  *http.Server
	listener net.Listener
}

func New(cfg Config) *Server {
	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc(constants.EndpointSessions, s.handleSessions)
	mux.HandleFunc(constants.EndpointSessionByID, s.handleSessionByID)
	mux.HandleFunc(constants.EndpointTicket, s.handleTicket)
	mux.HandleFunc(constants.EndpointProxyTicket, s.handleProxyTicket)
	mux.HandleFunc(constants.EndpointWebSocket, s.handleWebSocket)
	mux.HandleFunc(constants.EndpointRoot, s.handleStatic)

	var handler http.Handler = mux
	handler = RecoveryMiddleware(handler)
	handler = security.SecurityHeaders(handler)

	s.httpSrv = &http.Server{
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Start binds the listener and serves in the background. The bridge listens
// on loopback only; the relay is the public face.
func (s *Server) Start() error {
	host := s.cfg.Host
	if host == "" {
		host = constants.DefaultHost
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = ln

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("🚀 termshare listening on %s", ln.Addr())
	return nil
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}
