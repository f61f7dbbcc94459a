package scheduler

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/alexisbeaulieu97/scenery/internal/model"
)

// Option customises a Monotonic scheduler.
type Option func(*Monotonic)

// WithResolution replaces the default MajorityResolution policy.
func WithResolution(resolution Resolution) Option {
	return func(m *Monotonic) {
		if resolution != nil {
			m.resolution = resolution
		}
	}
}

// Monotonic yields scenarios in discovery order and lets plugins append to or
// remove from the pending tail while the run is in progress.
type Monotonic struct {
	scenarios  []*model.VirtualScenario
	known      map[string]*model.VirtualScenario
	resolution Resolution

	mu      sync.Mutex
	pending *list.List
	index   map[string]*list.Element
}

var _ Scheduler = (*Monotonic)(nil)

// NewMonotonic queues scenarios in the given order. Two scenarios sharing a
// unique id are rejected.
func NewMonotonic(scenarios []*model.VirtualScenario, opts ...Option) (*Monotonic, error) {
	m := &Monotonic{
		known:      make(map[string]*model.VirtualScenario, len(scenarios)),
		resolution: MajorityResolution,
		pending:    list.New(),
		index:      make(map[string]*list.Element, len(scenarios)),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, scenario := range scenarios {
		id := scenario.UniqueID()
		if _, exists := m.known[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScenario, scenario.RelPath())
		}
		m.known[id] = scenario
		m.scenarios = append(m.scenarios, scenario)
		m.index[id] = m.pending.PushBack(scenario)
	}
	return m, nil
}

// Scenarios returns every discovered scenario in discovery order.
func (m *Monotonic) Scenarios() []*model.VirtualScenario {
	return append([]*model.VirtualScenario(nil), m.scenarios...)
}

// Scheduled returns the pending scenarios in yield order.
func (m *Monotonic) Scheduled() []*model.VirtualScenario {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.VirtualScenario, 0, m.pending.Len())
	for el := m.pending.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*model.VirtualScenario))
	}
	return out
}

// Schedule appends scenario to the pending set, moving it to the end when it
// is already queued.
func (m *Monotonic) Schedule(scenario *model.VirtualScenario) error {
	id, err := m.lookup(scenario)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.index[id]; ok {
		m.pending.MoveToBack(el)
		return nil
	}
	m.index[id] = m.pending.PushBack(scenario)
	return nil
}

// Ignore drops scenario from the pending set. Ignoring a scenario that is no
// longer pending does nothing.
func (m *Monotonic) Ignore(scenario *model.VirtualScenario) error {
	id, err := m.lookup(scenario)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.index[id]; ok {
		m.pending.Remove(el)
		delete(m.index, id)
	}
	return nil
}

// IsPending reports whether the scenario with id is still queued.
func (m *Monotonic) IsPending(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[id]
	return ok
}

// Next pops the first pending scenario.
func (m *Monotonic) Next() (*model.VirtualScenario, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el := m.pending.Front()
	if el == nil {
		return nil, false
	}
	scenario := m.pending.Remove(el).(*model.VirtualScenario)
	delete(m.index, scenario.UniqueID())
	return scenario, true
}

// AggregateResults passes a single result through unchanged and wraps several
// into an AggregatedResult resolved by the configured policy.
func (m *Monotonic) AggregateResults(results []*model.ScenarioResult) (model.Result, error) {
	switch len(results) {
	case 0:
		return nil, model.ErrNoResults
	case 1:
		return results[0], nil
	}
	return model.NewAggregatedResult(m.resolution(results), results)
}

func (m *Monotonic) lookup(scenario *model.VirtualScenario) (string, error) {
	if scenario == nil {
		return "", fmt.Errorf("%w: nil scenario", ErrUnknownScenario)
	}
	id := scenario.UniqueID()
	known, ok := m.known[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownScenario, scenario.RelPath())
	}
	if known != scenario {
		return "", fmt.Errorf("%w: %s", ErrInconsistentScenario, scenario.RelPath())
	}
	return id, nil
}
