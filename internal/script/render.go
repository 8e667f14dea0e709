// Package script renders motion command sequences into the controller's
// textual instruction form and assembles them into sendable programs.
package script

import (
	"fmt"
	"math"
	"strings"

	"github.com/atelier-fab/claymore/internal/motion"
)

// Render converts one command into its textual controller instruction.
// Unknown command types are a programming error and panic.
func Render(c motion.Command) string {
	switch cmd := c.(type) {
	case motion.MoveLinear:
		p := cmd.Frame.Pose()
		return fmt.Sprintf("movel(p[%s], a=%s, v=%s, r=%s)\n",
			pose(p), num(cmd.Accel), num(cmd.Speed), num(cmd.BlendRadius))
	case motion.MoveJoint:
		return fmt.Sprintf("movej([%s], a=%s, v=%s)\n",
			joints(cmd.Joints), num(cmd.Accel), num(cmd.Speed))
	case motion.MoveJointFrame:
		p := cmd.Frame.Pose()
		return fmt.Sprintf("movej(p[%s], a=%s, v=%s)\n",
			pose(p), num(cmd.Accel), num(cmd.Speed))
	case motion.SetDigitalOut:
		state := "False"
		if cmd.State {
			state = "True"
		}
		return fmt.Sprintf("set_digital_out(%d, %s)\n", cmd.Channel, state)
	case motion.Sleep:
		return fmt.Sprintf("sleep(%s)\n", num(cmd.Duration.Seconds()))
	case motion.SetToolFrame:
		return fmt.Sprintf("set_tcp(p[%s, %s, %s, %s, %s, %s])\n",
			num(cmd.Offset.X), num(cmd.Offset.Y), num(cmd.Offset.Z),
			num(cmd.Rotation[0]), num(cmd.Rotation[1]), num(cmd.Rotation[2]))
	case motion.LogMessage:
		return fmt.Sprintf("textmsg(%q)\n", cmd.Text)
	default:
		panic(fmt.Sprintf("script: unknown command type %T", c))
	}
}

func pose(p [6]float64) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = num(v)
	}
	return strings.Join(parts, ", ")
}

// joints formats a joint configuration, converting the operator-facing
// degrees to the radians the controller expects.
func joints(j [6]float64) string {
	parts := make([]string, len(j))
	for i, v := range j {
		parts[i] = num(v * math.Pi / 180)
	}
	return strings.Join(parts, ", ")
}

// num formats a float compactly with enough precision for the controller.
func num(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
