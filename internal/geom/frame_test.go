package geom

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func vecNear(t *testing.T, got, want r3.Vec, label string) {
	t.Helper()
	if math.Abs(got.X-want.X) > tol || math.Abs(got.Y-want.Y) > tol || math.Abs(got.Z-want.Z) > tol {
		t.Errorf("%s = %+v, want %+v", label, got, want)
	}
}

func TestOffsetPlanesVertical(t *testing.T) {
	// Frame tilted so the normal is distinct from world Z.
	base := NewFrame(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 1}, r3.Vec{Y: 1, Z: 1})
	normal := base.Normal()

	entry, exit := OffsetPlanes(base, 0.04, true)

	vecNear(t, entry.Origin, r3.Add(base.Origin, r3.Scale(0.04, WorldDown)), "entry origin")
	vecNear(t, exit.Origin, r3.Add(base.Origin, r3.Scale(0.04, normal)), "exit origin")

	// Base frame must be untouched.
	vecNear(t, base.Origin, r3.Vec{X: 1, Y: 2, Z: 3}, "base origin")
}

func TestOffsetPlanesAlongNormal(t *testing.T) {
	base := WorldXY(r3.Vec{Z: 0.5})

	entry, exit := OffsetPlanes(base, -0.04, false)

	// World XY frame normal is +Z; both planes offset along it.
	vecNear(t, entry.Origin, r3.Vec{Z: 0.46}, "entry origin")
	vecNear(t, exit.Origin, r3.Vec{Z: 0.46}, "exit origin")
}

func TestOffsetPlanesDistance(t *testing.T) {
	for _, dist := range []float64{0.01, 0.04, 0.2} {
		base := NewFrame(r3.Vec{X: 0.3}, r3.Vec{X: 1, Y: 0.2}, r3.Vec{Y: 1})
		entry, exit := OffsetPlanes(base, dist, true)

		if d := r3.Norm(r3.Sub(entry.Origin, base.Origin)); math.Abs(d-dist) > tol {
			t.Errorf("entry offset distance = %v, want %v", d, dist)
		}
		if d := r3.Norm(r3.Sub(exit.Origin, base.Origin)); math.Abs(d-dist) > tol {
			t.Errorf("exit offset distance = %v, want %v", d, dist)
		}
	}
}

func TestRotatedZeroAngleIsCopy(t *testing.T) {
	base := WorldXY(r3.Vec{X: 1})

	got := Rotated(base, 0, r3.Vec{Z: 1}, base.Origin)

	vecNear(t, got.Origin, base.Origin, "origin")
	vecNear(t, got.XAxis, base.XAxis, "x axis")
	vecNear(t, got.YAxis, base.YAxis, "y axis")
}

func TestRotatedAboutPivot(t *testing.T) {
	base := WorldXY(r3.Vec{X: 1})
	pivot := r3.Vec{}

	got := Rotated(base, 90, r3.Vec{Z: 1}, pivot)

	// 90 degrees about world Z moves (1,0,0) to (0,1,0).
	vecNear(t, got.Origin, r3.Vec{Y: 1}, "origin")
	vecNear(t, got.XAxis, r3.Vec{Y: 1}, "x axis")
	vecNear(t, got.YAxis, r3.Vec{X: -1}, "y axis")

	// Distance to pivot is preserved.
	if d := r3.Norm(r3.Sub(got.Origin, pivot)); math.Abs(d-1) > tol {
		t.Errorf("pivot distance = %v, want 1", d)
	}

	// Input unchanged.
	vecNear(t, base.Origin, r3.Vec{X: 1}, "base origin")
}

func TestRotatedAboutOwnNormalKeepsOrigin(t *testing.T) {
	base := WorldXY(r3.Vec{X: 2, Y: 1})

	got := Rotated(base, 45, base.Normal(), base.Origin)

	vecNear(t, got.Origin, base.Origin, "origin")
	// Axes stay in plane and remain orthonormal.
	if d := r3.Dot(got.XAxis, got.YAxis); math.Abs(d) > tol {
		t.Errorf("axes not orthogonal after rotation: dot = %v", d)
	}
}

func TestRotatedRoundTrip(t *testing.T) {
	base := NewFrame(r3.Vec{X: 0.3, Y: -0.1, Z: 0.02}, r3.Vec{X: 1, Y: 0.2}, r3.Vec{X: -0.2, Y: 1})
	axis := r3.Vec{X: 0.5, Z: 1}
	pivot := r3.Vec{Y: 0.4}

	got := Rotated(Rotated(base, 30, axis, pivot), -30, axis, pivot)

	if diff := cmp.Diff(base, got, cmpopts.EquateApprox(0, tol)); diff != "" {
		t.Errorf("rotate +30/-30 should return the frame (-want +got):\n%s", diff)
	}
}

func TestPoseIdentityOrientation(t *testing.T) {
	f := WorldXY(r3.Vec{X: 0.1, Y: 0.2, Z: 0.3})

	pose := f.Pose()

	want := [6]float64{0.1, 0.2, 0.3, 0, 0, 0}
	for i := range pose {
		if math.Abs(pose[i]-want[i]) > tol {
			t.Errorf("pose[%d] = %v, want %v", i, pose[i], want[i])
		}
	}
}
