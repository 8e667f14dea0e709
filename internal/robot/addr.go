// Package robot manages the socket channels to the robot controller: the
// command channel that receives assembled programs and the feedback
// channel that broadcasts real-time state.
package robot

import (
	"fmt"
	"net"
	"strconv"
)

// Controller ports. Programs are pushed to the command port; the
// controller broadcasts state frames on the feedback port.
const (
	CommandPort  = 30002
	FeedbackPort = 30003
)

// baseSubnet and idOffset map a small robot identifier onto the cell
// network: robot 1 lives at .10, robot 2 at .11, and so on.
const (
	baseSubnet = "192.168.10."
	idOffset   = 9
)

// ControllerHost resolves the controller IP for a robot identifier. In
// simulation mode the controller runs locally.
func ControllerHost(id int, simulation bool) string {
	if simulation {
		return "127.0.0.1"
	}
	return baseSubnet + strconv.Itoa(id+idOffset)
}

// CommandAddr returns the host:port for the command channel.
func CommandAddr(id int, simulation bool) string {
	return net.JoinHostPort(ControllerHost(id, simulation), fmt.Sprint(CommandPort))
}

// FeedbackAddr returns the host:port for the feedback channel.
func FeedbackAddr(id int, simulation bool) string {
	return net.JoinHostPort(ControllerHost(id, simulation), fmt.Sprint(FeedbackPort))
}
