package fab

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/atelier-fab/claymore/internal/geom"
	"github.com/atelier-fab/claymore/internal/monitoring"
	"github.com/atelier-fab/claymore/internal/motion"
	"github.com/atelier-fab/claymore/internal/robot"
	"github.com/atelier-fab/claymore/internal/script"
	"github.com/atelier-fab/claymore/internal/timeutil"
)

// PartialChunkPolicy decides what happens to a trailing chunk smaller
// than the configured chunk size. The source process silently dropped
// such units; here the behaviour is an explicit decision.
type PartialChunkPolicy int

const (
	// PartialProcess places the remaining units as a smaller chunk.
	PartialProcess PartialChunkPolicy = iota
	// PartialDefer leaves the remaining units unplaced for a later run.
	PartialDefer
)

// Params are the validated run parameters the orchestrator consumes.
// They arrive fully typed from the config layer; the orchestrator never
// performs dynamic lookups.
type Params struct {
	EntryExitOffset float64
	PickingRotation float64
	Vertical        bool
	Dwell           time.Duration

	ToolHeight   float64
	ToolRotation float64
	SafeJoints   [6]float64
	SafeTravel   []geom.Frame

	ChunkSize    int
	PartialChunk PartialChunkPolicy

	// Push is the per-run push configuration: one entry broadcasts to all
	// units, a full-length list configures each unit. Per-unit overrides
	// on the units themselves take precedence.
	Push []motion.PushSpec
}

// CycleRecorder receives completed cycles for the run database. Recording
// is observability, not correctness: failures are logged, never halt the
// run. The ledger is the durable progress store.
type CycleRecorder interface {
	RecordCycle(unitID string, sequence int, cycleTime time.Duration, placedAt time.Time) error
}

// Orchestrator runs the resumable fabrication loop. It exclusively owns
// the ledger; a single control goroutine issues asynchronous operations
// and blocks only where a result is needed.
type Orchestrator struct {
	client   robot.Client
	builder  *motion.Builder
	ledger   *Ledger
	station  *PickStation
	clock    timeutil.Clock
	params   Params
	recorder CycleRecorder

	work     []*Unit
	pushes   []motion.PushSpec
	prepared bool
}

// NewOrchestrator wires an orchestrator. Clock and recorder may be nil
// (real clock, no recording).
func NewOrchestrator(client robot.Client, ledger *Ledger, station *PickStation, params Params, clock timeutil.Clock, recorder CycleRecorder) *Orchestrator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if params.ChunkSize < 1 {
		params.ChunkSize = 1
	}
	return &Orchestrator{
		client:   client,
		builder:  motion.NewBuilder(),
		ledger:   ledger,
		station:  station,
		clock:    clock,
		params:   params,
		recorder: recorder,
	}
}

// Prepare resolves the work list through the resume policy and validates
// the push configuration against it. All configuration errors surface
// here, before any device communication.
func (o *Orchestrator) Prepare(policy ResumePolicy) error {
	work := policy.WorkList(o.ledger.Units)

	pushSpecs := o.params.Push
	if len(pushSpecs) == 0 {
		pushSpecs = []motion.PushSpec{{}}
	}
	expanded, err := motion.ExpandPushSpecs(pushSpecs, len(work))
	if err != nil {
		return fmt.Errorf("push configuration: %w", err)
	}

	for _, u := range work {
		u.ClearPlacement()
	}

	o.work = work
	o.pushes = expanded
	o.prepared = true

	monitoring.Logf("run %s: %d of %d units scheduled", o.ledger.RunID, len(work), len(o.ledger.Units))
	return nil
}

// Run processes the prepared work list chunk by chunk. Each chunk is
// fully resolved and persisted before the next begins; a persistence
// failure halts the run with the prior ledger state intact. At the end a
// fully placed ledger is promoted to the done store.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.prepared {
		return fmt.Errorf("run not prepared")
	}

	// An empty work list still reconciles: a run interrupted between its
	// final save and the ledger promotion resumes here with every unit
	// already placed, and must promote without touching the controller.
	if len(o.work) == 0 {
		return o.reconcile(0, 0)
	}

	if err := o.sendSetup(ctx); err != nil {
		return err
	}

	total := len(o.work)
	placed := 0

	for start := 0; start < total; start += o.params.ChunkSize {
		end := start + o.params.ChunkSize
		if end > total {
			end = total
		}
		chunk := o.work[start:end]

		if len(chunk) < o.params.ChunkSize && o.params.PartialChunk == PartialDefer {
			monitoring.Logf("run %s: deferring trailing partial chunk of %d units", o.ledger.RunID, len(chunk))
			break
		}

		if err := o.processChunk(ctx, chunk, start, total); err != nil {
			return err
		}
		placed += len(chunk)
	}

	if err := o.sendShutdown(ctx); err != nil {
		return err
	}

	return o.reconcile(placed, total)
}

// pendingCycle holds the in-flight futures for one unit.
type pendingCycle struct {
	unit  *Unit
	seq   int
	pick  *robot.Future
	place *robot.Future
}

// processChunk issues pick and place for every unit in the chunk
// back-to-back, then resolves all futures in issue order. The overlap is
// in bookkeeping: the controller serialises the physical motion on its
// own command queue.
func (o *Orchestrator) processChunk(ctx context.Context, chunk []*Unit, offset, total int) error {
	pending := make([]pendingCycle, 0, len(chunk))

	for i, unit := range chunk {
		seq := offset + i
		monitoring.Logf("run %s: unit %03d/%03d id %s", o.ledger.RunID, seq+1, total, unit.ID)

		pickProg, err := o.pickProgram(unit)
		if err != nil {
			return err
		}
		placeProg, err := o.placeProgram(unit, seq, o.pushes[seq])
		if err != nil {
			return err
		}

		pickFuture := o.client.Execute(ctx, pickProg)
		unit.State = StatePickIssued

		placeFuture := o.client.Execute(ctx, placeProg)
		unit.State = StatePlaceIssued

		pending = append(pending, pendingCycle{unit: unit, seq: seq, pick: pickFuture, place: placeFuture})
	}

	for _, p := range pending {
		pickDur, err := p.pick.Wait(ctx)
		if err != nil {
			return fmt.Errorf("pick for unit %s: %w", p.unit.ID, err)
		}
		placeDur, err := p.place.Wait(ctx)
		if err != nil {
			return fmt.Errorf("place for unit %s: %w", p.unit.ID, err)
		}

		cycle := pickDur + placeDur
		now := o.clock.Now()
		p.unit.MarkPlaced(now, cycle)
		monitoring.Logf("run %s: unit %s placed, cycle time %v", o.ledger.RunID, p.unit.ID, cycle)

		if o.recorder != nil {
			if err := o.recorder.RecordCycle(p.unit.ID, p.seq, cycle, now); err != nil {
				monitoring.Logf("run %s: cycle record failed: %v", o.ledger.RunID, err)
			}
		}
	}

	// Progress durability is a correctness requirement: if the ledger
	// cannot be written the run must not continue.
	if err := o.ledger.Save(); err != nil {
		return fmt.Errorf("persist progress: %w", err)
	}
	return nil
}

func (o *Orchestrator) pickProgram(unit *Unit) (script.Program, error) {
	pickFrame := o.station.Next(unit.Height)

	return script.Assemble("pick_cycle",
		o.builder.PickingSequence(pickFrame, o.params.EntryExitOffset, o.params.PickingRotation, o.params.Vertical),
		o.builder.SafeTravelSequence(o.params.SafeTravel, false),
	)
}

func (o *Orchestrator) placeProgram(unit *Unit, seq int, push motion.PushSpec) (script.Program, error) {
	if unit.Push != nil {
		push = *unit.Push
	}

	// The unit rests on top of its place location.
	top := unit.Place.Translated(r3.Scale(unit.Height, unit.Place.Normal()))

	return script.Assemble("place_cycle",
		o.builder.ShootingSequence(top, o.params.EntryExitOffset, push, o.params.Vertical, o.params.Dwell),
		[]motion.Command{motion.LogMessage{Text: fmt.Sprintf("Bullet %d placed.", seq+1)}},
		o.builder.SafeTravelSequence(o.params.SafeTravel, true),
	)
}

func (o *Orchestrator) sendSetup(ctx context.Context) error {
	prog, err := script.Assemble("run_setup",
		o.builder.Preamble(o.params.ToolHeight, o.params.ToolRotation, o.params.SafeJoints),
	)
	if err != nil {
		return err
	}
	if _, err := o.client.Execute(ctx, prog).Wait(ctx); err != nil {
		return fmt.Errorf("run setup: %w", err)
	}
	return nil
}

func (o *Orchestrator) sendShutdown(ctx context.Context) error {
	prog, err := script.Assemble("run_shutdown",
		o.builder.Postlude(o.params.SafeJoints),
	)
	if err != nil {
		return err
	}
	if _, err := o.client.Execute(ctx, prog).Wait(ctx); err != nil {
		return fmt.Errorf("run shutdown: %w", err)
	}
	return nil
}

// reconcile finalises the run: a fully placed ledger is promoted into the
// done store; otherwise the in-progress file stays for a resumed run.
func (o *Orchestrator) reconcile(placed, total int) error {
	monitoring.Logf("run %s: finished, %d/%d scheduled units placed", o.ledger.RunID, placed, total)

	if o.ledger.AllPlaced() {
		if err := o.ledger.Promote(); err != nil {
			return fmt.Errorf("finalise ledger: %w", err)
		}
		monitoring.Logf("run %s: ledger promoted to done store", o.ledger.RunID)
		return nil
	}

	monitoring.Logf("run %s: %d units still unplaced, keeping in-progress ledger", o.ledger.RunID, o.ledger.Remaining())
	return nil
}
