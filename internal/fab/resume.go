package fab

// ResumePolicy turns the full unit list of a loaded ledger into the
// ordered work list for this run. Choosing a policy is an operator
// decision made outside the orchestrator; the orchestrator only consumes
// the resulting list.
type ResumePolicy interface {
	WorkList(units []*Unit) []*Unit
}

// SkipPlaced schedules only units without a placement timestamp, in
// original order.
type SkipPlaced struct{}

func (SkipPlaced) WorkList(units []*Unit) []*Unit {
	var work []*Unit
	for _, u := range units {
		if !u.Placed() {
			work = append(work, u)
		}
	}
	return work
}

// ReplaceAll ignores prior placement flags and schedules every unit.
type ReplaceAll struct{}

func (ReplaceAll) WorkList(units []*Unit) []*Unit {
	work := make([]*Unit, len(units))
	copy(work, units)
	return work
}

// ReplayLastN schedules the last N placed units again, plus everything
// after them.
type ReplayLastN struct {
	N int
}

func (p ReplayLastN) WorkList(units []*Unit) []*Unit {
	last := -1
	for i, u := range units {
		if u.Placed() {
			last = i
		}
	}
	if last < 0 {
		return ReplaceAll{}.WorkList(units)
	}

	start := last - p.N + 1
	if start < 0 {
		start = 0
	}

	work := make([]*Unit, 0, len(units)-start)
	for _, u := range units[start:] {
		work = append(work, u)
	}
	return work
}

// ReplaySubset schedules an explicit set of units by identity, keeping
// original order. Unknown identifiers are ignored.
type ReplaySubset struct {
	IDs []string
}

func (p ReplaySubset) WorkList(units []*Unit) []*Unit {
	wanted := make(map[string]bool, len(p.IDs))
	for _, id := range p.IDs {
		wanted[id] = true
	}

	var work []*Unit
	for _, u := range units {
		if wanted[u.ID] {
			work = append(work, u)
		}
	}
	return work
}
