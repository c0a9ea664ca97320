package provider

import "fmt"

// PrepState is the explicit filter-lifecycle state: Prep after
// GetPrepContext, Building once a filter is pushed, Executed after
// ExecuteFilters, Iterating once FilterMore is called, Finished after
// FilterFinish. Illegal transitions are assertions, not runtime-type
// errors.
type PrepState int

const (
	StatePrep PrepState = iota
	StateBuilding
	StateExecuted
	StateIterating
	StateFinished
)

func (s PrepState) String() string {
	switch s {
	case StatePrep:
		return "Prep"
	case StateBuilding:
		return "Building"
	case StateExecuted:
		return "Executed"
	case StateIterating:
		return "Iterating"
	case StateFinished:
		return "Finished"
	}
	return "?"
}

// AppliedFilter records one composed filter for later translation by the
// owning provider.
type AppliedFilter struct {
	Property string
	Op       string
	Value    string
	// Text marks a free-text search filter; Property/Op/Value are unset.
	Text  string
	Exact bool
}

// Prep is the filter-execution context shared by all providers: the list
// of composed filters, the iteration flag, and the finalised sets.
// Within one Prep the state machine is strictly sequential; a Prep is
// never shared across requests.
type Prep struct {
	State   PrepState
	Iterate bool
	Filters []AppliedFilter
	Sets    []*FilterSet
}

// NewPrep creates a filter-execution context in the Prep state.
func NewPrep(iterate bool) *Prep {
	return &Prep{State: StatePrep, Iterate: iterate}
}

// Push appends a filter; legal in Prep and Building only - once Executed,
// no more filters may be added.
func (p *Prep) Push(f AppliedFilter) error {
	if p.State != StatePrep && p.State != StateBuilding {
		return fmt.Errorf("%w: Push in state %s", ErrFilterLifecycle, p.State)
	}
	p.State = StateBuilding
	p.Filters = append(p.Filters, f)
	return nil
}

// MarkExecuted transitions into Executed; legal from Prep or Building.
func (p *Prep) MarkExecuted(sets []*FilterSet) error {
	if p.State != StatePrep && p.State != StateBuilding {
		return fmt.Errorf("%w: ExecuteFilters in state %s", ErrFilterLifecycle, p.State)
	}
	p.State = StateExecuted
	p.Sets = sets
	for _, s := range sets {
		s.prep = p
	}
	return nil
}

// BeginIteration transitions into Iterating; legal from Executed or
// already Iterating.
func (p *Prep) BeginIteration() error {
	switch p.State {
	case StateExecuted, StateIterating:
		p.State = StateIterating
		return nil
	}
	return fmt.Errorf("%w: iteration in state %s", ErrFilterLifecycle, p.State)
}

// CheckProbe asserts the Executed (non-iterate) state required by
// FilterLocate and FilterCheck.
func (p *Prep) CheckProbe() error {
	if p.State != StateExecuted {
		return fmt.Errorf("%w: probe in state %s", ErrFilterLifecycle, p.State)
	}
	return nil
}

// Finish transitions into Finished from any state; releasing an already
// finished context is a no-op.
func (p *Prep) Finish() {
	p.State = StateFinished
	p.Sets = nil
}

// FilterSet is one finalised filter result. Payload is the
// provider-specific materialisation (an offset array, a SQL fragment, a
// key list); Pos is the iteration cursor, -1 before the first FilterMore.
type FilterSet struct {
	Payload interface{}
	Pos     int
	prep    *Prep
}

// NewFilterSet wraps a provider payload with a fresh cursor.
func NewFilterSet(payload interface{}) *FilterSet {
	return &FilterSet{Payload: payload, Pos: -1}
}

// Prep returns the owning filter-execution context.
func (s *FilterSet) Prep() *Prep { return s.prep }

// Advance moves the cursor forward under the lifecycle rules and reports
// whether index Pos is within size.
func (s *FilterSet) Advance(size int) (bool, error) {
	if s.prep != nil {
		if err := s.prep.BeginIteration(); err != nil {
			return false, err
		}
	}
	s.Pos++
	return s.Pos < size, nil
}
