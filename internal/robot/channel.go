package robot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/atelier-fab/claymore/internal/monitoring"
	"github.com/atelier-fab/claymore/internal/script"
	"github.com/atelier-fab/claymore/internal/telemetry"
)

// Connectivity errors. Callers distinguish "could not connect" from
// "connected but send failed" with errors.Is; retry policy is theirs.
var (
	ErrConnect = errors.New("cannot connect to controller")
	ErrSend    = errors.New("program send failed")
)

const (
	// DefaultDialTimeout bounds command-channel connection attempts.
	DefaultDialTimeout = 2 * time.Second

	// feedbackTimeout bounds each best-effort feedback read. The feedback
	// stream is a snapshot service, not request/response; a timed-out read
	// yields no frame and must never block the command path.
	feedbackTimeout = 100 * time.Millisecond
)

// CommandChannel pushes assembled programs to the controller command
// port. A connection is dialled, used and closed within the scope of a
// single send; it is never held open across units.
type CommandChannel struct {
	addr        string
	dialTimeout time.Duration

	// dial is swapped in tests.
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// NewCommandChannel returns a channel targeting addr (host:port).
func NewCommandChannel(addr string) *CommandChannel {
	return &CommandChannel{
		addr:        addr,
		dialTimeout: DefaultDialTimeout,
		dial:        net.DialTimeout,
	}
}

// Send pushes one program over a fresh connection. Programs over the
// controller buffer cap are rejected before any connection is made. The
// connection is always closed, whatever the outcome.
func (c *CommandChannel) Send(ctx context.Context, p script.Program) error {
	if p.Size() > script.MaxProgramSize {
		return fmt.Errorf("program %s is %d bytes (cap %d): %w",
			p.Name, p.Size(), script.MaxProgramSize, script.ErrProgramTooLarge)
	}

	conn, err := c.dial("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnect, c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	if _, err := conn.Write(p.Bytes()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSend, c.addr, err)
	}

	monitoring.Logf("sent program %s (%d bytes) to %s", p.Name, p.Size(), c.addr)
	return nil
}

// FeedbackChannel reads state snapshots from the controller feedback
// port. Each poll opens a short-lived connection with a sub-second
// deadline and reads a single fixed-size chunk.
type FeedbackChannel struct {
	addr    string
	timeout time.Duration

	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// NewFeedbackChannel returns a feedback reader for addr (host:port).
func NewFeedbackChannel(addr string) *FeedbackChannel {
	return &FeedbackChannel{
		addr:    addr,
		timeout: feedbackTimeout,
		dial:    net.DialTimeout,
	}
}

// Read performs one best-effort poll and returns the raw frame buffer.
// Timeouts and failed reads surface as errors that the telemetry layer
// treats as "no frame available".
func (c *FeedbackChannel) Read(ctx context.Context) ([]byte, error) {
	conn, err := c.dial("tcp", c.addr, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("feedback connect %s: %w", c.addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	buf := make([]byte, telemetry.ReadSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("feedback read %s: %w", c.addr, err)
	}
	return buf[:n], nil
}
