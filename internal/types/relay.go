package types

// RelayEndpoint describes one publicly reachable endpoint as reported by the
// relay CLI. It carries labels and status but never credentials.
type RelayEndpoint struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Label  string `json:"label,omitempty"`
	Online bool   `json:"online"`
}
