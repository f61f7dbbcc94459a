package scheduler

import (
	"errors"
	"iter"

	"github.com/alexisbeaulieu97/scenery/internal/model"
)

var (
	// ErrUnknownScenario is returned when scheduling or ignoring a scenario
	// that was never discovered.
	ErrUnknownScenario = errors.New("unknown scenario")
	// ErrInconsistentScenario is returned when a different scenario object is
	// passed under an already known unique id.
	ErrInconsistentScenario = errors.New("inconsistent scenario")
	// ErrDuplicateScenario is returned when two discovered scenarios share an id.
	ErrDuplicateScenario = errors.New("duplicate scenario id")
)

// Scheduler is the mutable work queue the runner drains. Plugins receive it
// on startup and may reorder, remove or re-add scenarios while the run is in
// progress.
type Scheduler interface {
	// Scenarios returns every discovered scenario in discovery order.
	Scenarios() []*model.VirtualScenario
	// Scheduled returns the scenarios still pending, in the order Next will
	// yield them.
	Scheduled() []*model.VirtualScenario
	// Schedule inserts scenario or moves it to the end of the pending set.
	Schedule(scenario *model.VirtualScenario) error
	// Ignore removes scenario from the pending set.
	Ignore(scenario *model.VirtualScenario) error
	// IsPending reports whether the scenario with id is still queued.
	IsPending(id string) bool
	// Next pops the first pending scenario.
	Next() (*model.VirtualScenario, bool)
	// AggregateResults resolves every execution of one logical scenario into
	// a single result.
	AggregateResults(results []*model.ScenarioResult) (model.Result, error)
}

// Iterate yields pending scenarios one at a time. Each step asks the
// scheduler again, so changes made between steps are honoured.
func Iterate(s Scheduler) iter.Seq[*model.VirtualScenario] {
	return func(yield func(*model.VirtualScenario) bool) {
		for {
			scenario, ok := s.Next()
			if !ok {
				return
			}
			if !yield(scenario) {
				return
			}
		}
	}
}
