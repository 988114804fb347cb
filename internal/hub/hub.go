// Package hub implements discovery and ticket proxying for a bridge run
// without a terminal command. A hub never holds sibling credentials beyond
// reading {port, token} from the local registry, and only ever hands the
// browser a short-lived ticket.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"termshare/internal/constants"
	"termshare/internal/registry"
	"termshare/internal/relay"
	"termshare/internal/types"
)

var (
	// ErrUnknownSession: the target port does not resolve to a local record.
	ErrUnknownSession = errors.New("unknown session")
	// ErrUnreachable: the sibling did not answer or answered non-200. The
	// underlying cause is deliberately not surfaced to the browser.
	ErrUnreachable = errors.New("session unreachable")
)

type Hub struct {
	registry *registry.Registry
	relay    *relay.Client
	client   *http.Client
}

func New(reg *registry.Registry, rc *relay.Client) *Hub {
	return &Hub{
		registry: reg,
		relay:    rc,
		client:   &http.Client{Timeout: constants.ProxyTimeout},
	}
}

// Sessions merges local registry records with the relay endpoint list. The
// relay provides online/offline status and labels but no credentials; a
// failed relay query degrades to offline status rather than an error.
func (h *Hub) Sessions() []types.SessionInfo {
	records := h.registry.List()

	online := make(map[string]bool)
	if h.relay != nil && h.relay.Available() {
		endpoints, err := h.relay.List()
		if err != nil {
			log.Printf("⚠️  Relay discovery failed: %v", err)
		}
		for _, ep := range endpoints {
			online[ep.ID] = ep.Online
		}
	}

	sessions := make([]types.SessionInfo, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, types.SessionInfo{
			Name:      rec.Name,
			TunnelID:  rec.TunnelID,
			TunnelURL: rec.TunnelURL,
			Port:      rec.Port,
			IsHub:     rec.IsHub,
			Machine:   rec.Machine,
			Online:    online[rec.TunnelID],
			Local:     true,
			CreatedAt: rec.CreatedAt,
		})
	}
	return sessions
}

// Delete removes a registry record by id (stale records from crashed
// sessions are the expected target). It reports whether a record existed.
func (h *Hub) Delete(id string) bool {
	return h.registry.Remove(id)
}

// ProxyTicket asks a sibling session for a ticket on the browser's behalf.
// The sibling's long-lived token stays on this machine; only the resulting
// single-use ticket travels back. The registry is consulted before the
// outbound call so no lock is held across it.
func (h *Hub) ProxyTicket(port int) (types.ProxyTicketResponse, error) {
	rec, ok := h.registry.FindByPort(port)
	if !ok {
		return types.ProxyTicketResponse{}, ErrUnknownSession
	}

	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, constants.EndpointTicket)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return types.ProxyTicketResponse{}, ErrUnreachable
	}
	req.Header.Set("Authorization", "Bearer "+rec.Token)

	resp, err := h.client.Do(req)
	if err != nil {
		log.Printf("⚠️  Ticket proxy to port %d failed: %v", port, err)
		return types.ProxyTicketResponse{}, ErrUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️  Ticket proxy to port %d returned %d", port, resp.StatusCode)
		return types.ProxyTicketResponse{}, ErrUnreachable
	}

	var ticket types.TicketResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return types.ProxyTicketResponse{}, ErrUnreachable
	}

	return types.ProxyTicketResponse{Ticket: ticket.Ticket, Port: port}, nil
}
