package fab

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/atelier-fab/claymore/internal/geom"
	"github.com/atelier-fab/claymore/internal/monitoring"
)

// PickStation allocates pick frames by rotating through a fixed set of
// station positions. The pick height is compressed by a fraction of the
// unit height so the tool presses into the material when gripping.
type PickStation struct {
	frames         []geom.Frame
	compressAtPick float64
	counter        int
}

// NewPickStation builds a station over the given frames. compressAtPick
// is the fraction of the unit height pressed at pick (0 picks at the full
// unit top).
func NewPickStation(frames []geom.Frame, compressAtPick float64) *PickStation {
	return &PickStation{frames: frames, compressAtPick: compressAtPick}
}

// Next returns the pick frame for a unit of the given height and advances
// the rotation.
func (s *PickStation) Next(height float64) geom.Frame {
	idx := s.counter % len(s.frames)
	s.counter++

	base := s.frames[idx]
	pickHeight := height * (1 - s.compressAtPick)
	frame := base.Translated(r3.Scale(pickHeight, base.Normal()))

	monitoring.Logf("pick station: counter %d, frame index %d", s.counter, idx)
	return frame
}

// GridFrames lays out count pick positions on a rectangular grid of the
// given column count and spacing, anchored at origin. Used for picking
// directly off a prepared grid instead of a station.
func GridFrames(origin geom.Frame, columns int, spacing float64, count int) []geom.Frame {
	if columns < 1 {
		columns = 1
	}

	frames := make([]geom.Frame, 0, count)
	for i := 0; i < count; i++ {
		row := i / columns
		col := i % columns
		offset := r3.Add(
			r3.Scale(float64(col)*spacing, origin.XAxis),
			r3.Scale(float64(row)*spacing, origin.YAxis),
		)
		frames = append(frames, origin.Translated(offset))
	}
	return frames
}
