package terminal

import (
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"termshare/internal/constants"
)

// Process is the exclusive owner of one command attached to a pseudo
// terminal. No other component touches the PTY handle directly; the bridge
// talks to it through Write and Resize and receives data/exit events.
type Process struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu     sync.Mutex
	closed bool
}

// Start spawns command under a PTY with a filtered environment. onData is
// invoked from a single goroutine for every chunk the process emits, so
// chunk order equals emission order. onExit fires once, after the last
// onData, with the child's exit code.
func Start(command []string, cols, rows uint16, onData func([]byte), onExit func(code int)) (*Process, error) {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Env = FilterEnviron(os.Environ())

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, err
	}

	p := &Process{cmd: cmd, ptmx: ptmx}

	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				onData(chunk)
			}
			if err != nil {
				break
			}
		}

		code := constants.AbnormalExit
		if err := cmd.Wait(); err == nil {
			code = 0
		} else if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() >= 0 {
			code = exitErr.ExitCode()
		}
		onExit(code)
	}()

	return p, nil
}

// Write sends input to the process. It implements io.Writer so local stdin
// can be copied straight in.
func (p *Process) Write(b []byte) (int, error) {
	return p.ptmx.Write(b)
}

// Resize changes the PTY dimensions, clamped to sane bounds.
func (p *Process) Resize(cols, rows uint16) error {
	cols = clamp(cols, constants.MinCols, constants.MaxCols)
	rows = clamp(rows, constants.MinRows, constants.MaxRows)
	return pty.Setsize(p.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

func clamp(v uint16, lo, hi int) uint16 {
	if int(v) < lo {
		return uint16(lo)
	}
	if int(v) > hi {
		return uint16(hi)
	}
	return v
}

// Close tears the PTY down and kills the child if still running.
func (p *Process) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.ptmx.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
}
