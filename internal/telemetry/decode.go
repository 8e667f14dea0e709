// Package telemetry decodes the controller's real-time feedback stream.
//
// The controller broadcasts fixed-layout binary state frames on its
// feedback port. Fields live at fixed byte offsets in the buffer; there is
// no framing or delimiting. Decoding is best-effort: a short read is a
// decode failure, never a crash, and monitoring degrades to "no frame".
package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Realtime interface layout constants. Offsets are byte positions of
// big-endian float64 fields within one state frame.
const (
	ReadSize = 1024 // bytes requested per feedback poll

	targetJointsOffset = 12  // [12,60) six doubles, radians
	actualJointsOffset = 252 // [252,300) six doubles, radians
	forcesOffset       = 540 // [540,588) six doubles
	poseOffset         = 588 // [588,636) six doubles
	clockOffset        = 740 // [740,748) one double, seconds

	minFrameSize = clockOffset + 8
)

// Frame is one decoded snapshot of controller state. Joint angles are in
// degrees; forces and pose are passed through unconverted. A Frame is
// immutable once decoded.
type Frame struct {
	TargetJoints   [6]float64
	ActualJoints   [6]float64
	Forces         [6]float64
	Pose           [6]float64
	ControllerTime float64
}

// Decode parses one feedback buffer into a Frame. The buffer must cover
// at least the controller clock field; anything shorter is a decode
// failure reported to the caller.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < minFrameSize {
		return Frame{}, fmt.Errorf("telemetry buffer too short: need %d bytes, have %d", minFrameSize, len(buf))
	}

	var f Frame
	for i := 0; i < 6; i++ {
		f.TargetJoints[i] = degrees(readFloat(buf, targetJointsOffset+i*8))
		f.ActualJoints[i] = degrees(readFloat(buf, actualJointsOffset+i*8))
		f.Forces[i] = readFloat(buf, forcesOffset+i*8)
		f.Pose[i] = readFloat(buf, poseOffset+i*8)
	}
	f.ControllerTime = readFloat(buf, clockOffset)

	return f, nil
}

// Encode writes a frame into a ReadSize buffer using the controller's
// field layout. Joint angles are taken in degrees and stored as radians.
// Intended for tests and the replay tooling.
func Encode(f Frame) []byte {
	buf := make([]byte, ReadSize)
	for i := 0; i < 6; i++ {
		writeFloat(buf, targetJointsOffset+i*8, radians(f.TargetJoints[i]))
		writeFloat(buf, actualJointsOffset+i*8, radians(f.ActualJoints[i]))
		writeFloat(buf, forcesOffset+i*8, f.Forces[i])
		writeFloat(buf, poseOffset+i*8, f.Pose[i])
	}
	writeFloat(buf, clockOffset, f.ControllerTime)
	return buf
}

func readFloat(buf []byte, offset int) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(buf[offset : offset+8]))
}

func writeFloat(buf []byte, offset int, v float64) {
	binary.BigEndian.PutUint64(buf[offset:offset+8], math.Float64bits(v))
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
func radians(deg float64) float64 { return deg * math.Pi / 180 }
