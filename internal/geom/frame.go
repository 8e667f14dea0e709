// Package geom provides the coordinate-frame primitives used to derive
// entry, exit and push targets from fabrication frames.
//
// A Frame is an origin plus an orthonormal basis. The fabrication layers
// never inspect a frame beyond its origin, axes and normal; all derived
// frames are copies and the input frame is never mutated.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WorldDown is the world-space downward direction used for vertical
// entry/exit offsets.
var WorldDown = r3.Vec{X: 0, Y: 0, Z: -1}

// Frame is a coordinate system: an origin and two in-plane axes.
// The frame normal is the cross product of the axes.
type Frame struct {
	Origin r3.Vec
	XAxis  r3.Vec
	YAxis  r3.Vec
}

// NewFrame returns a frame at origin with the given in-plane axes.
// The axes are normalised; they must not be parallel.
func NewFrame(origin, xAxis, yAxis r3.Vec) Frame {
	return Frame{
		Origin: origin,
		XAxis:  r3.Unit(xAxis),
		YAxis:  r3.Unit(yAxis),
	}
}

// WorldXY returns a frame at origin aligned with the world axes.
func WorldXY(origin r3.Vec) Frame {
	return Frame{
		Origin: origin,
		XAxis:  r3.Vec{X: 1},
		YAxis:  r3.Vec{Y: 1},
	}
}

// Normal returns the frame normal (X cross Y, unit length).
func (f Frame) Normal() r3.Vec {
	return r3.Unit(r3.Cross(f.XAxis, f.YAxis))
}

// Translated returns a copy of f moved by v.
func (f Frame) Translated(v r3.Vec) Frame {
	f.Origin = r3.Add(f.Origin, v)
	return f
}

// OffsetPlanes derives the entry and exit frames for an approach/retreat
// choreography. With vertical set, the entry frame is offset along the
// world down axis and the exit frame along the frame's own normal;
// otherwise both are offset along the normal. The base frame is unchanged.
func OffsetPlanes(base Frame, distance float64, vertical bool) (entry, exit Frame) {
	normal := base.Normal()

	entryDir := normal
	if vertical {
		entryDir = WorldDown
	}

	entry = base.Translated(r3.Scale(distance, entryDir))
	exit = base.Translated(r3.Scale(distance, normal))
	return entry, exit
}

// Rotated returns a copy of base rotated by angleDegrees about axis,
// anchored at pivot. Both the origin and the basis vectors rotate. A zero
// angle returns an unrotated copy.
func Rotated(base Frame, angleDegrees float64, axis, pivot r3.Vec) Frame {
	if angleDegrees == 0 {
		return base
	}

	rot := r3.NewRotation(angleDegrees*math.Pi/180, axis)

	return Frame{
		Origin: r3.Add(pivot, rot.Rotate(r3.Sub(base.Origin, pivot))),
		XAxis:  rot.Rotate(base.XAxis),
		YAxis:  rot.Rotate(base.YAxis),
	}
}

// Pose returns the frame as a 6-vector (position plus axis-angle
// orientation), the layout used by the controller's pose arguments.
func (f Frame) Pose() [6]float64 {
	ax, ay, az := f.axisAngle()
	return [6]float64{f.Origin.X, f.Origin.Y, f.Origin.Z, ax, ay, az}
}

// axisAngle converts the frame basis into a rotation vector. The rotation
// matrix columns are the frame axes expressed in world coordinates.
func (f Frame) axisAngle() (x, y, z float64) {
	xa := r3.Unit(f.XAxis)
	ya := r3.Unit(f.YAxis)
	za := r3.Unit(r3.Cross(xa, ya))

	// Rotation matrix R = [xa ya za] (columns).
	trace := xa.X + ya.Y + za.Z
	c := (trace - 1) / 2
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	angle := math.Acos(c)

	if angle < 1e-12 {
		return 0, 0, 0
	}

	// Off-diagonal differences give the (unnormalised) rotation axis.
	rx := ya.Z - za.Y
	ry := za.X - xa.Z
	rz := xa.Y - ya.X
	n := math.Sqrt(rx*rx + ry*ry + rz*rz)
	if n < 1e-12 {
		// 180 degree rotation: axis from diagonal terms.
		ax := math.Sqrt(math.Max(0, (xa.X+1)/2))
		ay := math.Sqrt(math.Max(0, (ya.Y+1)/2))
		az := math.Sqrt(math.Max(0, (za.Z+1)/2))
		return angle * ax, angle * ay, angle * az
	}

	return angle * rx / n, angle * ry / n, angle * rz / n
}
