// Package fab drives resumable pick-and-place production runs: it owns
// the unit queue, the persisted run ledger and the orchestration loop
// that issues motion programs against the robot controller.
package fab

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelier-fab/claymore/internal/geom"
	"github.com/atelier-fab/claymore/internal/motion"
)

// UnitState tracks a unit through one fabrication cycle.
type UnitState int

const (
	StatePending UnitState = iota
	StatePickIssued
	StatePlaceIssued
	StatePlaced
)

func (s UnitState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StatePickIssued:
		return "pick-issued"
	case StatePlaceIssued:
		return "place-issued"
	case StatePlaced:
		return "placed"
	default:
		return "unknown"
	}
}

// Unit is one discrete piece of material ("bullet") moved from a pick
// location to a place location in a single cycle. PlacedAt and CycleTime
// are written exactly once per run, by the orchestrator, after the place
// future resolves; they serialise as epoch seconds / seconds so the
// persisted ledger stays language-neutral.
type Unit struct {
	ID        string           `json:"id"`
	Pick      geom.Frame       `json:"pick_location"`
	Place     geom.Frame       `json:"place_location"`
	Height    float64          `json:"height"`
	PlacedAt  *float64         `json:"placed_at"`  // epoch seconds, null until placed
	CycleTime *float64         `json:"cycle_time"` // seconds, null until placed
	Push      *motion.PushSpec `json:"push,omitempty"`

	// State is per-run bookkeeping, never persisted.
	State UnitState `json:"-"`
}

// NewUnit constructs a unit with a fresh identity.
func NewUnit(pick, place geom.Frame, height float64) *Unit {
	return &Unit{
		ID:     uuid.NewString(),
		Pick:   pick,
		Place:  place,
		Height: height,
	}
}

// Placed reports whether the unit completed a cycle in this or a prior
// run.
func (u *Unit) Placed() bool {
	return u.PlacedAt != nil
}

// MarkPlaced records the completion timestamp and cycle time.
func (u *Unit) MarkPlaced(at time.Time, cycle time.Duration) {
	ts := float64(at.UnixNano()) / float64(time.Second)
	secs := cycle.Seconds()
	u.PlacedAt = &ts
	u.CycleTime = &secs
	u.State = StatePlaced
}

// ClearPlacement resets completion bookkeeping before a unit is placed
// (again). Used when a resume policy schedules an already-placed unit.
func (u *Unit) ClearPlacement() {
	u.PlacedAt = nil
	u.CycleTime = nil
	u.State = StatePending
}
