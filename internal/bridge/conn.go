package bridge

import (
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"termshare/internal/auth"
	"termshare/internal/constants"
	"termshare/internal/security"
	"termshare/internal/types"
)

// Conn is one admitted viewer socket. Outbound messages go through a bounded
// channel drained by a single writer goroutine, so per-connection delivery
// order equals enqueue order.
type Conn struct {
	ID         string
	RemoteAddr string
	AttachedAt time.Time

	ws       *websocket.Conn
	out      chan types.ServerMessage
	closed   chan struct{}
	once     sync.Once
	alive    bool
	attached bool
}

const outboundQueue = constants.ReplayCapacity + 256

func (c *Conn) writeLoop() {
	for {
		select {
		case msg := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.terminate(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.closed:
			return
		}
	}
}

// enqueue queues a message, or reports false when the viewer is too slow to
// keep up and must be dropped.
func (c *Conn) enqueue(msg types.ServerMessage) bool {
	select {
	case c.out <- msg:
		return true
	case <-c.closed:
		return false
	default:
		return false
	}
}

func (c *Conn) terminate(code int, reason string) {
	c.once.Do(func() {
		deadline := time.Now().Add(time.Second)
		c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		c.ws.Close()
		close(c.closed)
	})
}

// ConnManager owns the set of live viewer connections: admission control,
// caps, liveness, and session TTL. Nothing else iterates or mutates the set.
type ConnManager struct {
	mu      sync.Mutex
	conns   []*Conn
	perIP   map[string]int
	expired bool

	tickets      auth.TicketStore
	allowedHosts []string
	audit        *security.AuditLogger
	sessionStart time.Time
	ttl          time.Duration
	done         chan struct{}
	stopOnce     sync.Once
}

func NewConnManager(tickets auth.TicketStore, allowedHosts []string, ttl time.Duration, audit *security.AuditLogger) *ConnManager {
	m := &ConnManager{
		perIP:        make(map[string]int),
		tickets:      tickets,
		allowedHosts: allowedHosts,
		audit:        audit,
		sessionStart: time.Now(),
		ttl:          ttl,
		done:         make(chan struct{}),
	}
	go m.heartbeatLoop()
	go m.ttlLoop()
	return m
}

// Admit runs the admission checks on a freshly upgraded socket, in order:
// global cap, per-IP cap, origin, session TTL, ticket. Each rejection closes
// the socket with a reason-specific code so clients can tell retryable from
// non-retryable rejections.
func (m *ConnManager) Admit(ws *websocket.Conn, r *http.Request) (*Conn, bool) {
	addr := security.GetClientIP(r)

	m.mu.Lock()
	if len(m.conns) >= constants.MaxConnections {
		m.mu.Unlock()
		if m.audit != nil {
			m.audit.LogConnectionLimit(addr, "global cap")
		}
		closeAndDiscard(ws, constants.CloseCapacity, "capacity")
		return nil, false
	}
	if m.perIP[addr] >= constants.MaxConnectionsPerIP {
		m.mu.Unlock()
		if m.audit != nil {
			m.audit.LogConnectionLimit(addr, "per-ip cap")
		}
		closeAndDiscard(ws, constants.ClosePerIPCap, "per-ip capacity")
		return nil, false
	}
	if !security.ValidateOrigin(r, m.allowedHosts) {
		m.mu.Unlock()
		if m.audit != nil {
			m.audit.LogAuthFailure(addr, "origin not allowed")
		}
		closeAndDiscard(ws, constants.CloseAuthFailure, "origin not allowed")
		return nil, false
	}
	if m.expired || time.Since(m.sessionStart) > m.ttl {
		m.expired = true
		m.mu.Unlock()
		closeAndDiscard(ws, constants.CloseSessionExpired, constants.MsgSessionExpired)
		return nil, false
	}
	// Reserve the slot before redeeming: redemption may touch Redis and the
	// map lock must not be held across that call.
	placeholder := &Conn{RemoteAddr: addr}
	m.conns = append(m.conns, placeholder)
	m.perIP[addr]++
	m.mu.Unlock()

	ticket := r.URL.Query().Get("ticket")
	if ticket == "" || !m.tickets.Redeem(ticket) {
		m.release(placeholder)
		if m.audit != nil {
			m.audit.LogAuthFailure(addr, "invalid or missing ticket")
		}
		closeAndDiscard(ws, constants.CloseAuthFailure, "invalid or missing ticket")
		return nil, false
	}

	c := &Conn{
		ID:         uuid.New().String(),
		RemoteAddr: addr,
		AttachedAt: time.Now(),
		ws:         ws,
		out:        make(chan types.ServerMessage, outboundQueue),
		closed:     make(chan struct{}),
		alive:      true,
	}
	ws.SetReadLimit(constants.ReadLimit)
	ws.SetPongHandler(func(string) error {
		m.mu.Lock()
		c.alive = true
		m.mu.Unlock()
		return nil
	})

	m.mu.Lock()
	for i, conn := range m.conns {
		if conn == placeholder {
			m.conns[i] = c
			break
		}
	}
	m.mu.Unlock()

	go c.writeLoop()
	log.Printf("🔌 Viewer connected: %s (%s)", c.ID, addr)
	return c, true
}

func closeAndDiscard(ws *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	ws.Close()
}

func (m *ConnManager) release(placeholder *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, conn := range m.conns {
		if conn == placeholder {
			m.conns = append(m.conns[:i], m.conns[i+1:]...)
			if m.perIP[placeholder.RemoteAddr] > 1 {
				m.perIP[placeholder.RemoteAddr]--
			} else {
				delete(m.perIP, placeholder.RemoteAddr)
			}
			return
		}
	}
}

// AllowHostOf adds the host of a freshly provisioned relay URL to the Origin
// allow list.
func (m *ConnManager) AllowHostOf(rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return
	}
	m.mu.Lock()
	m.allowedHosts = append(m.allowedHosts, u.Hostname())
	m.mu.Unlock()
}

// Remove terminates a connection and frees its slot.
func (m *ConnManager) Remove(c *Conn, code int, reason string) {
	c.terminate(code, reason)
	m.release(c)
}

// Snapshot returns the attached connections in admission order.
func (m *ConnManager) Snapshot() []*Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		if c.attached {
			out = append(out, c)
		}
	}
	return out
}

func (m *ConnManager) markAttached(c *Conn) {
	m.mu.Lock()
	c.attached = true
	m.mu.Unlock()
}

// Count returns the number of reserved and open connections.
func (m *ConnManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Expired reports whether the session TTL has elapsed. Once true, all
// admissions and API calls fail until process restart.
func (m *ConnManager) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.expired && time.Since(m.sessionStart) > m.ttl {
		m.expired = true
	}
	return m.expired
}

// heartbeatLoop pings every open socket each interval. A socket that did not
// answer the previous ping is terminated before the next ping goes out, so
// dead peers are detected within one interval.
func (m *ConnManager) heartbeatLoop() {
	ticker := time.NewTicker(constants.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.heartbeat()
		case <-m.done:
			return
		}
	}
}

// heartbeat is one liveness pass: terminate peers that missed the previous
// ping, then ping everyone left.
func (m *ConnManager) heartbeat() {
	m.mu.Lock()
	conns := make([]*Conn, len(m.conns))
	copy(conns, m.conns)
	var stale []*Conn
	for _, c := range conns {
		if c.ws == nil {
			continue
		}
		if !c.alive {
			stale = append(stale, c)
			continue
		}
		c.alive = false
	}
	m.mu.Unlock()

	for _, c := range stale {
		log.Printf("💔 Viewer missed heartbeat, terminating: %s", c.ID)
		m.Remove(c, websocket.CloseGoingAway, "heartbeat timeout")
	}

	for _, c := range m.Snapshot() {
		deadline := time.Now().Add(constants.WriteTimeout)
		c.ws.WriteControl(websocket.PingMessage, nil, deadline)
	}
}

// ttlLoop expires the session once its TTL elapses and closes every viewer.
func (m *ConnManager) ttlLoop() {
	ticker := time.NewTicker(constants.TTLSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweepTTL()
		case <-m.done:
			return
		}
	}
}

func (m *ConnManager) sweepTTL() {
	m.mu.Lock()
	if m.expired || time.Since(m.sessionStart) <= m.ttl {
		m.mu.Unlock()
		return
	}
	m.expired = true
	m.mu.Unlock()

	log.Printf("⏰ Session TTL exceeded, closing all viewers")
	m.CloseAll(constants.CloseSessionExpired, constants.MsgSessionExpired)
}

// CloseAll terminates every connection with the given close code.
func (m *ConnManager) CloseAll(code int, reason string) {
	m.mu.Lock()
	conns := make([]*Conn, len(m.conns))
	copy(conns, m.conns)
	m.conns = nil
	m.perIP = make(map[string]int)
	m.mu.Unlock()

	for _, c := range conns {
		if c.ws != nil {
			c.terminate(code, reason)
		}
	}
}

// Shutdown stops the background loops and closes every connection. Safe to
// call more than once: both the signal path and process exit reach it.
func (m *ConnManager) Shutdown() {
	m.stopOnce.Do(func() { close(m.done) })
	m.CloseAll(websocket.CloseGoingAway, "server shutting down")
}
