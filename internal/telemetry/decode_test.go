package telemetry

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoundTrip(t *testing.T) {
	want := Frame{
		TargetJoints:   [6]float64{-50.31, -91.74, 74.55, -76.12, -92.86, 52.34},
		ActualJoints:   [6]float64{-50.30, -91.70, 74.50, -76.10, -92.80, 52.30},
		Forces:         [6]float64{1.5, -2.25, 9.81, 0.001, -0.5, 3},
		Pose:           [6]float64{0.4, 0.2, 0.1, 0, 3.14, 0},
		ControllerTime: 1234.5678,
	}

	got, err := Decode(Encode(want))
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		assert.InDelta(t, want.TargetJoints[i], got.TargetJoints[i], 1e-9, "target joint %d", i)
		assert.InDelta(t, want.ActualJoints[i], got.ActualJoints[i], 1e-9, "actual joint %d", i)
		assert.Equal(t, want.Forces[i], got.Forces[i], "force %d", i)
		assert.Equal(t, want.Pose[i], got.Pose[i], "pose %d", i)
	}
	assert.Equal(t, want.ControllerTime, got.ControllerTime)
}

func TestDecodeKnownBitPatterns(t *testing.T) {
	buf := make([]byte, ReadSize)

	// First target joint: pi/2 radians at byte 12 must decode to 90 degrees.
	binary.BigEndian.PutUint64(buf[12:20], math.Float64bits(math.Pi/2))
	// Third force component at byte 540+16, passed through unconverted.
	binary.BigEndian.PutUint64(buf[556:564], math.Float64bits(-42.5))
	// Controller clock at byte 740.
	binary.BigEndian.PutUint64(buf[740:748], math.Float64bits(99.25))

	got, err := Decode(buf)
	require.NoError(t, err)

	assert.InDelta(t, 90.0, got.TargetJoints[0], 1e-9)
	assert.Equal(t, -42.5, got.Forces[2])
	assert.Equal(t, 99.25, got.ControllerTime)
}

func TestDecodeShortBuffer(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"partial", 512},
		{"one byte short of clock", 747},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(make([]byte, tt.size))
			assert.Error(t, err)
		})
	}
}

func TestDecodeExactMinimum(t *testing.T) {
	_, err := Decode(make([]byte, 748))
	assert.NoError(t, err)
}

func TestMonitorPublishesLatestFrame(t *testing.T) {
	frames := []Frame{
		{ControllerTime: 1},
		{ControllerTime: 2},
	}
	var i int
	read := func(ctx context.Context) ([]byte, error) {
		if i >= len(frames) {
			return nil, errors.New("no data")
		}
		buf := Encode(frames[i])
		i++
		return buf, nil
	}

	m := NewMonitor(read, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()

	// Both polls happen; the channel keeps only the latest snapshot.
	deadline := time.After(2 * time.Second)
	var last Frame
	for last.ControllerTime != 2 {
		select {
		case last = <-m.Frames():
		case <-deadline:
			t.Fatal("timed out waiting for frames")
		}
	}

	cancel()
	<-done
}

type captureRecorder struct {
	frames []Frame
}

func (r *captureRecorder) RecordFrame(f Frame) error {
	r.frames = append(r.frames, f)
	return nil
}

func TestMonitorRecordsFrames(t *testing.T) {
	read := func(ctx context.Context) ([]byte, error) {
		return Encode(Frame{ControllerTime: 7}), nil
	}
	rec := &captureRecorder{}
	m := NewMonitor(read, 5*time.Millisecond, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = m.Run(ctx)

	require.NotEmpty(t, rec.frames)
	assert.Equal(t, 7.0, rec.frames[0].ControllerTime)
}

func TestMonitorSkipsFailedReads(t *testing.T) {
	read := func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("read timeout")
	}
	rec := &captureRecorder{}
	m := NewMonitor(read, 5*time.Millisecond, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := m.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, rec.frames)
}
