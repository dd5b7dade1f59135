package system

import (
	"errors"
	"sort"
	"sync/atomic"
)

// ErrTurnInProgress is returned when RunTurn is re-entered before the
// current turn has finished.
var ErrTurnInProgress = errors.New("turn already in progress")

// Runner executes systems in phase order once per turn. Systems sharing a
// phase run in registration order. After every system the settle hook runs,
// which is where deferred removals are drained: no system is iterating then.
type Runner struct {
	systems    []System
	sorted     bool
	inProgress atomic.Bool
	settle     func()
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// OnSettle sets the hook invoked between systems.
func (r *Runner) OnSettle(fn func()) {
	r.settle = fn
}

// InProgress reports whether a turn is currently being processed.
func (r *Runner) InProgress() bool {
	return r.inProgress.Load()
}

// RunTurn runs every registered system for the given turn. A concurrent or
// re-entrant call while a turn is running is rejected.
func (r *Runner) RunTurn(turn int) error {
	if !r.inProgress.CompareAndSwap(false, true) {
		return ErrTurnInProgress
	}
	defer r.inProgress.Store(false)

	r.ensureSorted()
	for _, s := range r.systems {
		s.Update(turn)
		if r.settle != nil {
			r.settle()
		}
	}
	return nil
}

// RunPhase runs only the systems of one phase. Used by tests and tools.
func (r *Runner) RunPhase(phase Phase, turn int) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(turn)
			if r.settle != nil {
				r.settle()
			}
		}
	}
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
