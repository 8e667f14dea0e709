package motion

import (
	"fmt"
	"math"
	"time"

	"github.com/atelier-fab/claymore/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Process motion defaults. Linear moves stop fully at their targets; only
// push moves blend, so repeated presses chain without decelerating to zero.
const (
	DefaultProcessSpeed    = 0.6   // m/s
	DefaultProcessAccel    = 0.8   // m/s^2
	DefaultSafeSpeed       = 0.8   // rad/s, joint-space travel
	DefaultPushBlendRadius = 0.002 // m
	DefaultActuatorChannel = 4
	DefaultDwell           = 500 * time.Millisecond
)

// PushSpec configures the angular push pattern emitted after material is
// deposited. Axis is the rotation axis for the cumulative steps.
type PushSpec struct {
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	Count     int     `json:"count" yaml:"count"`
	Offset    float64 `json:"offset" yaml:"offset"`         // retraction distance, m
	AngleStep float64 `json:"angle_step" yaml:"angle_step"` // degrees per press
	Axis      r3.Vec  `json:"axis" yaml:"axis"`
}

// ExpandPushSpecs resolves a per-run push configuration list against the
// unit count. A single entry broadcasts to every unit; a list matching the
// unit count is used as-is. Any other length is a configuration error,
// reported before any command generation.
func ExpandPushSpecs(specs []PushSpec, units int) ([]PushSpec, error) {
	switch len(specs) {
	case 1:
		out := make([]PushSpec, units)
		for i := range out {
			out[i] = specs[0]
		}
		return out, nil
	case units:
		out := make([]PushSpec, units)
		copy(out, specs)
		return out, nil
	default:
		return nil, fmt.Errorf("push config list length %d does not match unit count %d (or 1)", len(specs), units)
	}
}

// Builder composes command sequences for the fabrication choreographies.
// A Builder is immutable after construction and safe for reuse across
// units; every call returns a fresh slice.
type Builder struct {
	ProcessSpeed    float64
	ProcessAccel    float64
	SafeSpeed       float64
	PushBlendRadius float64
	ActuatorChannel int
}

// NewBuilder returns a Builder with the default process profile.
func NewBuilder() *Builder {
	return &Builder{
		ProcessSpeed:    DefaultProcessSpeed,
		ProcessAccel:    DefaultProcessAccel,
		SafeSpeed:       DefaultSafeSpeed,
		PushBlendRadius: DefaultPushBlendRadius,
		ActuatorChannel: DefaultActuatorChannel,
	}
}

// moveL is a linear move at process speed with a full stop at the target.
func (b *Builder) moveL(f geom.Frame) Command {
	return b.moveLBlend(f, 0)
}

func (b *Builder) moveLBlend(f geom.Frame, blend float64) Command {
	return MoveLinear{Frame: f, Speed: b.ProcessSpeed, Accel: b.ProcessAccel, BlendRadius: blend}
}

// PickingSequence emits the approach/retreat choreography for picking up
// one unit: entry offset, target frame, an optional in-place rotation when
// rotationDegrees is positive, then the exit offset. No actuator IO.
func (b *Builder) PickingSequence(frame geom.Frame, entryExitOffset, rotationDegrees float64, vertical bool) []Command {
	entry, exit := geom.OffsetPlanes(frame, entryExitOffset, vertical)

	cmds := []Command{
		b.moveL(entry),
		b.moveL(frame),
	}
	if rotationDegrees > 0 {
		rotated := geom.Rotated(frame, rotationDegrees, frame.Normal(), frame.Origin)
		cmds = append(cmds, b.moveL(rotated))
	}
	return append(cmds, b.moveL(exit))
}

// ShootingSequence emits the place choreography: approach, contact,
// actuator on, settle, the push pattern when enabled, retreat, actuator
// off. The actuator transitions are always paired; no emitted sequence
// turns the actuator on without turning it off after the exit move.
func (b *Builder) ShootingSequence(frame geom.Frame, entryExitOffset float64, push PushSpec, vertical bool, dwell time.Duration) []Command {
	entry, exit := geom.OffsetPlanes(frame, entryExitOffset, vertical)

	cmds := []Command{
		b.moveL(entry),
		b.moveL(frame),
		SetDigitalOut{Channel: b.ActuatorChannel, State: true},
		Sleep{Duration: dwell},
	}

	if push.Enabled {
		cmds = append(cmds, b.PushSequence(frame, push, vertical)...)
	}

	cmds = append(cmds,
		b.moveL(exit),
		SetDigitalOut{Channel: b.ActuatorChannel, State: false},
	)
	return cmds
}

// PushSequence emits the angular push pattern: a single plane retracted
// opposite the contact direction, then one blended linear move per step at
// cumulative angles i*AngleStep about the base frame origin. The blend
// radius keeps consecutive presses chained without a full stop.
func (b *Builder) PushSequence(frame geom.Frame, push PushSpec, vertical bool) []Command {
	direction := frame.Normal()
	if vertical {
		direction = geom.WorldDown
	}

	retracted := frame.Translated(r3.Scale(-push.Offset, direction))

	cmds := make([]Command, 0, push.Count)
	for i := 1; i <= push.Count; i++ {
		rotated := geom.Rotated(retracted, float64(i)*push.AngleStep, push.Axis, frame.Origin)
		cmds = append(cmds, b.moveLBlend(rotated, b.PushBlendRadius))
	}
	return cmds
}

// SafeTravelSequence emits one joint-space move per waypoint frame, in
// input order or reversed, at the safe travel profile. Safe travel never
// runs at process speed.
func (b *Builder) SafeTravelSequence(frames []geom.Frame, reverse bool) []Command {
	cmds := make([]Command, 0, len(frames))
	if reverse {
		for i := len(frames) - 1; i >= 0; i-- {
			cmds = append(cmds, MoveJointFrame{Frame: frames[i], Speed: b.SafeSpeed, Accel: b.ProcessAccel})
		}
		return cmds
	}
	for _, f := range frames {
		cmds = append(cmds, MoveJointFrame{Frame: f, Speed: b.SafeSpeed, Accel: b.ProcessAccel})
	}
	return cmds
}

// Preamble emits the run preamble: tool frame setup, actuator forced off,
// and a joint move to the initial safe configuration.
func (b *Builder) Preamble(toolHeight, toolRotationDegrees float64, safeJoints [6]float64) []Command {
	return []Command{
		SetToolFrame{
			Offset:   r3.Vec{Z: toolHeight},
			Rotation: [3]float64{0, 0, toolRotationDegrees * math.Pi / 180},
		},
		SetDigitalOut{Channel: b.ActuatorChannel, State: false},
		MoveJoint{Joints: safeJoints, Speed: b.SafeSpeed, Accel: b.ProcessAccel},
	}
}

// Postlude returns the robot to the safe configuration at the end of a
// cycle or run.
func (b *Builder) Postlude(safeJoints [6]float64) []Command {
	return []Command{
		MoveJoint{Joints: safeJoints, Speed: b.SafeSpeed, Accel: b.ProcessAccel},
	}
}
