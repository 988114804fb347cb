package types

import "time"

// SessionRecord is the on-disk discovery record one bridge process writes for
// itself and a hub reads to find its siblings. One JSON file per session in
// an owner-only directory; the token never leaves the local machine.
type SessionRecord struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Name      string    `json:"name"`
	TunnelID  string    `json:"tunnel_id,omitempty"`
	TunnelURL string    `json:"tunnel_url,omitempty"`
	Port      int       `json:"port"`
	IsHub     bool      `json:"is_hub,omitempty"`
	Machine   string    `json:"machine"`
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionInfo is the credential-free view of a session served to dashboards.
type SessionInfo struct {
	Name      string    `json:"name"`
	TunnelID  string    `json:"tunnel_id,omitempty"`
	TunnelURL string    `json:"tunnel_url,omitempty"`
	Port      int       `json:"port"`
	IsHub     bool      `json:"is_hub,omitempty"`
	Machine   string    `json:"machine"`
	Online    bool      `json:"online"`
	Local     bool      `json:"local"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionListResponse is returned by GET /api/sessions.
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// DeleteResponse is returned by DELETE /api/sessions/:id.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}
