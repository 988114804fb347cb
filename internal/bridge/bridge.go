// Package bridge fans one terminal process out to remote viewers and routes
// their input back. The bridge is the only owner of the terminal handle; the
// connection manager is the only owner of the viewer set.
package bridge

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"math"
	"sync"

	"termshare/internal/constants"
	"termshare/internal/security"
	"termshare/internal/terminal"
	"termshare/internal/types"
)

type Bridge struct {
	mu     sync.Mutex
	proc   *terminal.Process
	exited bool

	Manager *ConnManager
	replay  *ReplayBuffer
	audit   *security.AuditLogger
	local   io.Writer
	onExit  func(code int)
}

// New wires a bridge. replayEnabled controls the history buffer; local is
// the owning terminal's display (usually stdout). onExit fires once after
// the child process ends and the viewers have been notified.
func New(manager *ConnManager, audit *security.AuditLogger, local io.Writer, replayEnabled bool, onExit func(code int)) *Bridge {
	b := &Bridge{
		Manager: manager,
		audit:   audit,
		local:   local,
		onExit:  onExit,
	}
	if replayEnabled {
		b.replay = NewReplayBuffer(constants.ReplayCapacity)
	}
	return b
}

// SetProcess hands the bridge its terminal process handle.
func (b *Bridge) SetProcess(p *terminal.Process) {
	b.mu.Lock()
	b.proc = p
	b.mu.Unlock()
}

// HandleOutput is the terminal's data callback: local display first, then
// the replay buffer, then every attached viewer in admission order. The
// bridge lock serializes appends with attach, so a joining viewer sees
// history and live output without gaps or duplicates.
func (b *Bridge) HandleOutput(data []byte) {
	if b.local != nil {
		b.local.Write(data)
	}

	b.mu.Lock()
	if b.replay != nil {
		b.replay.Append(string(data))
	}
	msg := types.ServerMessage{
		Type: types.MsgOutput,
		Data: base64.StdEncoding.EncodeToString(data),
	}
	var slow []*Conn
	for _, c := range b.Manager.Snapshot() {
		if !c.enqueue(msg) {
			slow = append(slow, c)
		}
	}
	b.mu.Unlock()

	for _, c := range slow {
		log.Printf("🐢 Viewer too slow, dropping: %s", c.ID)
		b.Manager.Remove(c, constants.CloseCapacity, "slow consumer")
	}
}

// Attach delivers buffered history to a newly admitted viewer, then marks it
// live. History entries are redacted at delivery time (best-effort pattern
// hygiene, not a confidentiality guarantee); live output is the raw terminal
// stream. The replay-done sentinel always precedes the first live event on
// this connection.
func (b *Bridge) Attach(c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.replay != nil {
		for _, entry := range b.replay.Snapshot() {
			c.enqueue(types.ServerMessage{
				Type: types.MsgOutput,
				Data: base64.StdEncoding.EncodeToString([]byte(security.Redact(entry))),
			})
		}
		c.enqueue(types.ServerMessage{Type: types.MsgReplayDone})
	}
	b.Manager.markAttached(c)
}

// HandleMessage routes one raw inbound frame. Frames that do not parse as a
// structured message are never forwarded to the terminal; they are audited
// and dropped.
func (b *Bridge) HandleMessage(c *Conn, raw []byte) {
	var msg types.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		if b.audit != nil {
			b.audit.LogRejected(c.RemoteAddr, truncate(string(raw), 256))
		}
		return
	}

	switch msg.Type {
	case types.MsgInput:
		b.mu.Lock()
		proc, exited := b.proc, b.exited
		b.mu.Unlock()
		if exited || proc == nil {
			return
		}
		if b.audit != nil {
			b.audit.LogInput(c.RemoteAddr, msg.Data)
		}
		proc.Write([]byte(msg.Data))

	case types.MsgResize:
		cols, ok1 := finiteDim(msg.Cols)
		rows, ok2 := finiteDim(msg.Rows)
		if !ok1 || !ok2 {
			if b.audit != nil {
				b.audit.LogRejected(c.RemoteAddr, "resize with non-finite dimensions")
			}
			return
		}
		b.mu.Lock()
		proc, exited := b.proc, b.exited
		b.mu.Unlock()
		if exited || proc == nil {
			return
		}
		proc.Resize(cols, rows)

	default:
		// Unknown message types are ignored without error.
	}
}

// finiteDim parses a resize dimension and rejects anything that is not a
// finite positive number.
func finiteDim(n json.Number) (uint16, bool) {
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 1 {
		return 0, false
	}
	if f > math.MaxUint16 {
		f = math.MaxUint16
	}
	return uint16(f), true
}

// HandleExit runs when the terminal process ends: input stops, viewers get
// a session-ended notice, and the exit is handed to the host process.
func (b *Bridge) HandleExit(code int) {
	b.mu.Lock()
	b.exited = true
	b.mu.Unlock()

	for _, c := range b.Manager.Snapshot() {
		c.enqueue(types.ServerMessage{Type: types.MsgSessionEnded})
	}
	b.Manager.Shutdown()

	if b.onExit != nil {
		b.onExit(code)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
