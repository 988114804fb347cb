package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"termshare/internal/constants"
)

// ErrAuth is returned when ticket issuance is attempted without the exact
// current session token.
var ErrAuth = errors.New("invalid session token")

// Ticket is a short-lived, single-use credential for WebSocket admission.
type Ticket struct {
	ID        string
	ExpiresAt time.Time
}

// TicketStore manages tickets. Redeem must be a single atomic
// check-and-delete so two concurrent admissions can never both succeed on
// one ticket.
type TicketStore interface {
	// Issue mints a ticket expiring one TTL out. It fails with ErrAuth
	// unless sessionToken is the current process token.
	Issue(sessionToken string) (Ticket, error)
	// Redeem burns a ticket. The entry is deleted even when redemption
	// fails past the existence check, preventing replay.
	Redeem(ticketID string) bool
	Close()
}

// MemoryTicketStore is the default in-process backend: a mutex-guarded map
// with a periodic sweep bounding store size under ticket abandonment.
type MemoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string]time.Time
	token   *SessionToken
	done    chan struct{}
	now     func() time.Time
}

func NewMemoryTicketStore(token *SessionToken) *MemoryTicketStore {
	st := &MemoryTicketStore{
		tickets: make(map[string]time.Time),
		token:   token,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go st.sweepLoop()
	return st
}

func newTicketID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate ticket: " + err.Error())
	}
	return hex.EncodeToString(b)
}

func (st *MemoryTicketStore) Issue(sessionToken string) (Ticket, error) {
	if !st.token.Verify(sessionToken) {
		return Ticket{}, ErrAuth
	}

	t := Ticket{
		ID:        newTicketID(),
		ExpiresAt: st.now().Add(constants.TicketTTL),
	}

	st.mu.Lock()
	st.tickets[t.ID] = t.ExpiresAt
	st.mu.Unlock()

	return t, nil
}

func (st *MemoryTicketStore) Redeem(ticketID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	expiresAt, ok := st.tickets[ticketID]
	if !ok {
		return false
	}
	delete(st.tickets, ticketID)

	return st.now().Before(expiresAt)
}

func (st *MemoryTicketStore) sweepLoop() {
	ticker := time.NewTicker(constants.TicketSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.sweep()
		case <-st.done:
			return
		}
	}
}

func (st *MemoryTicketStore) sweep() {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	for id, expiresAt := range st.tickets {
		if now.After(expiresAt) {
			delete(st.tickets, id)
		}
	}
}

func (st *MemoryTicketStore) Close() {
	close(st.done)
}
