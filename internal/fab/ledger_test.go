package fab

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/atelier-fab/claymore/internal/geom"
	"github.com/atelier-fab/claymore/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func testUnits(n int) []*Unit {
	units := make([]*Unit, 0, n)
	for i := 0; i < n; i++ {
		pick := geom.WorldXY(r3.Vec{X: float64(i) * 0.1})
		place := geom.WorldXY(r3.Vec{X: float64(i) * 0.1, Y: 0.5})
		units = append(units, NewUnit(pick, place, 0.025))
	}
	return units
}

func TestLedgerSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	units := testUnits(3)
	units[1].MarkPlaced(time.Unix(1700000000, 500000000), 42*time.Second)

	l := NewLedger(units, filepath.Join(dir, "run.json"))
	if err := l.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadLedger(l.InProgressPath())
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}

	if loaded.RunID != l.RunID {
		t.Errorf("run id = %q, want %q", loaded.RunID, l.RunID)
	}
	if len(loaded.Units) != 3 {
		t.Fatalf("got %d units, want 3", len(loaded.Units))
	}
	for i, u := range loaded.Units {
		if u.ID != units[i].ID {
			t.Errorf("unit %d id = %q, want %q", i, u.ID, units[i].ID)
		}
	}

	u := loaded.Units[1]
	if !u.Placed() {
		t.Fatal("unit 1 should be placed after reload")
	}
	if u.State != StatePlaced {
		t.Errorf("unit 1 state = %v, want %v", u.State, StatePlaced)
	}
	if got, want := *u.PlacedAt, 1700000000.5; got != want {
		t.Errorf("placed_at = %v, want %v", got, want)
	}
	if got, want := *u.CycleTime, 42.0; got != want {
		t.Errorf("cycle_time = %v, want %v", got, want)
	}
	if loaded.Units[0].Placed() || loaded.Units[2].Placed() {
		t.Error("untouched units must reload unplaced")
	}
}

func TestLedgerPaths(t *testing.T) {
	l := NewLedger(nil, filepath.Join("data", "run.json"))

	if got, want := l.InProgressPath(), filepath.Join("data", "IN_PROGRESS-run.json"); got != want {
		t.Errorf("InProgressPath = %q, want %q", got, want)
	}
	if got, want := l.DonePath(), filepath.Join("data", "00_done", "run.json"); got != want {
		t.Errorf("DonePath = %q, want %q", got, want)
	}

	// A path that already carries the marker keeps it, and promotion
	// strips it.
	resumed := NewLedger(nil, filepath.Join("data", "IN_PROGRESS-run.json"))
	if got, want := resumed.InProgressPath(), filepath.Join("data", "IN_PROGRESS-run.json"); got != want {
		t.Errorf("resumed InProgressPath = %q, want %q", got, want)
	}
	if got, want := resumed.DonePath(), filepath.Join("data", "00_done", "run.json"); got != want {
		t.Errorf("resumed DonePath = %q, want %q", got, want)
	}
}

func TestLedgerPromote(t *testing.T) {
	dir := t.TempDir()
	units := testUnits(2)
	l := NewLedger(units, filepath.Join(dir, "run.json"))
	if err := l.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := l.Promote(); err == nil {
		t.Fatal("Promote with unplaced units should fail")
	}

	now := time.Unix(1700000000, 0)
	for _, u := range units {
		u.MarkPlaced(now, time.Minute)
	}
	if err := l.Promote(); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	if _, err := os.Stat(l.InProgressPath()); !os.IsNotExist(err) {
		t.Errorf("in-progress file should be gone, stat err = %v", err)
	}
	done, err := LoadLedger(l.DonePath())
	if err != nil {
		t.Fatalf("load promoted ledger: %v", err)
	}
	if !done.AllPlaced() {
		t.Error("promoted ledger should be fully placed")
	}
}

func TestResumePolicies(t *testing.T) {
	units := testUnits(5)
	now := time.Unix(1700000000, 0)
	units[0].MarkPlaced(now, time.Minute)
	units[1].MarkPlaced(now, time.Minute)
	units[2].MarkPlaced(now, time.Minute)

	ids := func(work []*Unit) []string {
		out := make([]string, len(work))
		for i, u := range work {
			out[i] = u.ID
		}
		return out
	}

	tests := []struct {
		name   string
		policy ResumePolicy
		want   []string
	}{
		{"skip placed", SkipPlaced{}, []string{units[3].ID, units[4].ID}},
		{"replace all", ReplaceAll{}, ids(units)},
		{"replay last 2", ReplayLastN{N: 2}, []string{units[1].ID, units[2].ID, units[3].ID, units[4].ID}},
		{"replay last, none placed", ReplayLastN{N: 1}, nil}, // filled in below
		{"subset", ReplaySubset{IDs: []string{units[4].ID, units[1].ID}}, []string{units[1].ID, units[4].ID}},
		{"subset unknown id", ReplaySubset{IDs: []string{"no-such-unit"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := units
			if tt.name == "replay last, none placed" {
				in = testUnits(3)
				tt.want = ids(in)
			}
			got := ids(tt.policy.WorkList(in))
			if len(got) != len(tt.want) {
				t.Fatalf("work list %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("work[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPickStationRotation(t *testing.T) {
	frames := []geom.Frame{
		geom.WorldXY(r3.Vec{X: 0}),
		geom.WorldXY(r3.Vec{X: 1}),
		geom.WorldXY(r3.Vec{X: 2}),
	}
	s := NewPickStation(frames, 0.2)

	// Height 0.1 compressed by 20% lifts the pick frame 0.08 along the
	// station normal.
	for i := 0; i < 5; i++ {
		f := s.Next(0.1)
		wantX := float64(i % 3)
		if f.Origin.X != wantX {
			t.Errorf("pick %d origin.X = %v, want %v", i, f.Origin.X, wantX)
		}
		if diff := f.Origin.Z - 0.08; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("pick %d origin.Z = %v, want 0.08", i, f.Origin.Z)
		}
	}
}

func TestGridFrames(t *testing.T) {
	origin := geom.WorldXY(r3.Vec{X: 1, Y: 2})
	frames := GridFrames(origin, 2, 0.1, 5)

	want := []r3.Vec{
		{X: 1.0, Y: 2.0},
		{X: 1.1, Y: 2.0},
		{X: 1.0, Y: 2.1},
		{X: 1.1, Y: 2.1},
		{X: 1.0, Y: 2.2},
	}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, f := range frames {
		if f.Origin != want[i] {
			t.Errorf("frame %d origin = %v, want %v", i, f.Origin, want[i])
		}
	}
}
