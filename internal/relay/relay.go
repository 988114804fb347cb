// Package relay wraps the external tunnel-provisioning CLI. The bridge never
// implements NAT traversal itself: it shells out to the relay tool, reads
// its JSON output, and tears the endpoint down on shutdown. A missing or
// unauthenticated CLI is not fatal; the bridge degrades to local-only mode.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"termshare/internal/constants"
	"termshare/internal/types"
	"termshare/internal/utils"
)

type Client struct {
	binary string
}

func NewClient() *Client {
	return &Client{binary: utils.GetEnv("TERMSHARE_RELAY_BIN", "termshare-relay")}
}

// Available reports whether the relay CLI is on PATH.
func (c *Client) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// RemediationText is printed when the relay CLI is missing or rejects us.
func (c *Client) RemediationText() string {
	return fmt.Sprintf("Relay tool %q not found or not authenticated.\n"+
		"  Install it and run `%s login`, then restart termshare.\n"+
		"  Continuing in local-only mode (http://localhost).", c.binary, c.binary)
}

func (c *Client) run(args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.RelayTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.binary, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("relay %s: %w", args[0], err)
	}
	return out, nil
}

// Provision asks the relay for a public HTTPS endpoint mapped to port.
func (c *Client) Provision(port int, label string) (*types.RelayEndpoint, error) {
	out, err := c.run("create", "--port", strconv.Itoa(port), "--label", label, "--json")
	if err != nil {
		return nil, err
	}

	var ep types.RelayEndpoint
	if err := json.Unmarshal(out, &ep); err != nil {
		return nil, fmt.Errorf("relay create: bad output: %w", err)
	}
	if ep.URL == "" {
		return nil, fmt.Errorf("relay create: no url in output")
	}
	ep.Online = true
	return &ep, nil
}

// List returns the active relay endpoints: online/offline status and labels,
// never credentials.
func (c *Client) List() ([]types.RelayEndpoint, error) {
	out, err := c.run("list", "--json")
	if err != nil {
		return nil, err
	}

	var eps []types.RelayEndpoint
	if err := json.Unmarshal(out, &eps); err != nil {
		return nil, fmt.Errorf("relay list: bad output: %w", err)
	}
	return eps, nil
}

// Teardown removes an endpoint. Best-effort: failures are ignored because
// the relay reaps dead endpoints on its own.
func (c *Client) Teardown(id string) {
	if id == "" {
		return
	}
	c.run("delete", id)
}
