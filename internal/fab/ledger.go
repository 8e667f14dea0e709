package fab

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Ledger file naming. A run in flight lives next to its source data under
// the in-progress prefix; a completed run is promoted into the done
// directory under its original name.
const (
	InProgressPrefix = "IN_PROGRESS-"
	DoneDir          = "00_done"
)

// Ledger is the persisted record of per-unit completion state for one
// production run. It is exclusively owned and mutated by the
// orchestrator; persistence failures must halt forward progress, never be
// swallowed.
type Ledger struct {
	RunID string  `json:"run_id"`
	Units []*Unit `json:"units"`

	path string
}

// NewLedger creates a fresh ledger over units, persisted at path (the
// fabrication data file; the in-progress marker is applied on save).
func NewLedger(units []*Unit, path string) *Ledger {
	return &Ledger{
		RunID: uuid.NewString(),
		Units: units,
		path:  path,
	}
}

// LoadLedger reads a previously persisted ledger, typically to resume an
// interrupted run.
func LoadLedger(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	if l.RunID == "" {
		l.RunID = uuid.NewString()
	}
	l.path = path

	for _, u := range l.Units {
		if u.Placed() {
			u.State = StatePlaced
		}
	}
	return &l, nil
}

// InProgressPath returns the path the ledger persists to while the run is
// live. A path already carrying the marker is kept as-is so a resumed run
// keeps writing the same file.
func (l *Ledger) InProgressPath() string {
	dir, name := filepath.Split(l.path)
	if strings.HasPrefix(name, InProgressPrefix) {
		return l.path
	}
	return filepath.Join(dir, InProgressPrefix+name)
}

// DonePath returns the promotion target inside the done directory, with
// the in-progress marker stripped.
func (l *Ledger) DonePath() string {
	dir, name := filepath.Split(l.path)
	name = strings.TrimPrefix(name, InProgressPrefix)
	return filepath.Join(dir, DoneDir, name)
}

// Save persists the full ledger to the in-progress store. The write is
// atomic (temp file + rename) so a crash mid-write leaves the previous
// ledger intact and resumable.
func (l *Ledger) Save() error {
	return l.writeTo(l.InProgressPath())
}

func (l *Ledger) writeTo(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write ledger %s: %w", path, err)
	}
	return nil
}

// AllPlaced reports whether every unit completed its cycle.
func (l *Ledger) AllPlaced() bool {
	for _, u := range l.Units {
		if !u.Placed() {
			return false
		}
	}
	return true
}

// Remaining counts units still waiting for placement.
func (l *Ledger) Remaining() int {
	n := 0
	for _, u := range l.Units {
		if !u.Placed() {
			n++
		}
	}
	return n
}

// Promote moves a fully placed ledger from the in-progress store into the
// done directory and rewrites it once more for durability. Promoting a
// ledger with unplaced units is an error.
func (l *Ledger) Promote() error {
	if !l.AllPlaced() {
		return fmt.Errorf("promote ledger: %d units not placed", l.Remaining())
	}

	done := l.DonePath()
	if err := os.MkdirAll(filepath.Dir(done), 0o755); err != nil {
		return fmt.Errorf("create done dir: %w", err)
	}
	if err := os.Rename(l.InProgressPath(), done); err != nil {
		return fmt.Errorf("promote ledger: %w", err)
	}
	return l.writeTo(done)
}
