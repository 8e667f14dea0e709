package telemetry

import (
	"context"
	"time"

	"github.com/atelier-fab/claymore/internal/monitoring"
)

// ReadFunc performs one best-effort feedback read. Implementations use a
// sub-second deadline per read; a timeout or connection failure returns an
// error and the poll is skipped.
type ReadFunc func(ctx context.Context) ([]byte, error)

// Recorder persists decoded frames. Recording failures degrade monitoring
// only; they never stop the poll loop.
type Recorder interface {
	RecordFrame(f Frame) error
}

// Monitor drains the controller feedback port on a fixed interval,
// independent of the command path. Decoded frames are published on a
// non-blocking channel holding the latest snapshot.
type Monitor struct {
	read     ReadFunc
	interval time.Duration
	recorder Recorder
	frames   chan Frame

	polled  int
	decoded int
}

// NewMonitor builds a Monitor polling read at the given interval. The
// recorder may be nil.
func NewMonitor(read ReadFunc, interval time.Duration, recorder Recorder) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		read:     read,
		interval: interval,
		recorder: recorder,
		frames:   make(chan Frame, 1),
	}
}

// Frames returns the channel carrying the most recent decoded frame.
func (m *Monitor) Frames() <-chan Frame {
	return m.frames
}

// Run polls until the context is cancelled. Read and decode failures are
// logged and skipped; telemetry is a best-effort snapshot stream and must
// never block or abort the fabrication run.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("telemetry monitor stopping: polled %d, decoded %d", m.polled, m.decoded)
			return ctx.Err()
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	m.polled++

	buf, err := m.read(ctx)
	if err != nil {
		// No frame available this interval.
		monitoring.Logf("telemetry read failed: %v", err)
		return
	}

	frame, err := Decode(buf)
	if err != nil {
		monitoring.Logf("telemetry decode failed: %v", err)
		return
	}
	m.decoded++

	// Replace the buffered frame so readers always see the latest.
	select {
	case m.frames <- frame:
	default:
		select {
		case <-m.frames:
		default:
		}
		select {
		case m.frames <- frame:
		default:
		}
	}

	if m.recorder != nil {
		if err := m.recorder.RecordFrame(frame); err != nil {
			monitoring.Logf("telemetry record failed: %v", err)
		}
	}
}
