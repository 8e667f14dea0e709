// Package motion defines the intermediate command representation for robot
// motion programs and the sequence builders that compose fabrication
// choreographies from coordinate frames.
package motion

import (
	"time"

	"github.com/atelier-fab/claymore/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Command is one abstract controller instruction. The concrete variants
// below are the only implementations; rendering to the controller's
// textual form happens in the script package.
type Command interface {
	isCommand()
}

// MoveLinear moves the tool in a straight line to a frame.
type MoveLinear struct {
	Frame       geom.Frame
	Speed       float64 // m/s
	Accel       float64 // m/s^2
	BlendRadius float64 // m; zero means full stop at the target
}

// MoveJoint moves in joint space to an explicit joint configuration.
type MoveJoint struct {
	Joints [6]float64 // degrees; converted at the wire boundary
	Speed  float64    // rad/s
	Accel  float64    // rad/s^2
}

// MoveJointFrame moves in joint space to a pose target. Used for safe
// travel waypoints where the route matters less than the end pose.
type MoveJointFrame struct {
	Frame geom.Frame
	Speed float64
	Accel float64
}

// SetDigitalOut switches a controller digital output channel.
type SetDigitalOut struct {
	Channel int
	State   bool
}

// Sleep pauses program execution on the controller.
type Sleep struct {
	Duration time.Duration
}

// SetToolFrame sets the tool centre point offset and rotation.
type SetToolFrame struct {
	Offset   r3.Vec     // metres, tool flange coordinates
	Rotation [3]float64 // radians, rx ry rz
}

// LogMessage emits a text message on the controller log channel.
type LogMessage struct {
	Text string
}

func (MoveLinear) isCommand()     {}
func (MoveJoint) isCommand()      {}
func (MoveJointFrame) isCommand() {}
func (SetDigitalOut) isCommand()  {}
func (Sleep) isCommand()          {}
func (SetToolFrame) isCommand()   {}
func (LogMessage) isCommand()     {}
