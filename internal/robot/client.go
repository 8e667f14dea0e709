package robot

import (
	"context"
	"time"

	"github.com/atelier-fab/claymore/internal/script"
	"github.com/atelier-fab/claymore/internal/timeutil"
)

// Future is the pending result of an issued program. The orchestrator
// issues pick and place back-to-back and blocks only at the point the
// cycle time is needed, which is what lets the two operations overlap.
type Future struct {
	done chan struct{}
	dur  time.Duration
	err  error
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve completes the future. Resolving twice panics; a future is
// resolved exactly once by its issuer.
func (f *Future) Resolve(dur time.Duration, err error) {
	f.dur = dur
	f.err = err
	close(f.done)
}

// Wait blocks until the future resolves or the context is cancelled and
// returns the operation duration.
func (f *Future) Wait(ctx context.Context) (time.Duration, error) {
	select {
	case <-f.done:
		return f.dur, f.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Client is the controller capability the orchestrator depends on: send a
// program, get a future for its completion and duration.
type Client interface {
	Execute(ctx context.Context, p script.Program) *Future
}

// SocketClient implements Client over the raw command channel. The future
// resolves when the controller has accepted the full program, carrying the
// elapsed transfer time; completion of the physical motion is tracked by
// the telemetry monitor, not the command path.
type SocketClient struct {
	channel *CommandChannel
	clock   timeutil.Clock
}

// NewSocketClient wraps a command channel. A nil clock selects the real
// clock.
func NewSocketClient(channel *CommandChannel, clock timeutil.Clock) *SocketClient {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SocketClient{channel: channel, clock: clock}
}

// Execute sends the program asynchronously and returns its future.
func (c *SocketClient) Execute(ctx context.Context, p script.Program) *Future {
	f := NewFuture()
	start := c.clock.Now()
	go func() {
		err := c.channel.Send(ctx, p)
		f.Resolve(c.clock.Since(start), err)
	}()
	return f
}
