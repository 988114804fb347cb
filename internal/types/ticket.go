package types

// TicketResponse is returned by POST /api/auth/ticket.
type TicketResponse struct {
	Ticket  string `json:"ticket"`
	Expires int64  `json:"expires"`
}

// ProxyTicketResponse is returned by POST /api/proxy/ticket/:port on a hub.
type ProxyTicketResponse struct {
	Ticket string `json:"ticket"`
	Port   int    `json:"port"`
}
