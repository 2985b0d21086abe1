package position

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry owns the State of every configured instrument. Each instrument
// has its own evaluation slot, so two evaluations of the same market never
// overlap while different markets proceed in parallel.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	slot chan struct{} // capacity 1; held for the whole evaluation

	mu    sync.RWMutex
	state State
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds an instrument. Registering the same market twice is an error.
func (r *Registry) Register(st State) error {
	if err := st.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[st.Market]; ok {
		return fmt.Errorf("position: market %s already registered", st.Market)
	}
	r.entries[st.Market] = &entry{slot: make(chan struct{}, 1), state: st}
	return nil
}

// Markets returns the registered markets, sorted.
func (r *Registry) Markets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for m := range r.entries {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns the last committed state of market. It does not wait for
// a running evaluation.
func (r *Registry) Snapshot(market string) (State, bool) {
	e, ok := r.get(market)
	if !ok {
		return State{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state, true
}

// All returns the committed state of every instrument, sorted by market.
func (r *Registry) All() []State {
	markets := r.Markets()
	out := make([]State, 0, len(markets))
	for _, m := range markets {
		if st, ok := r.Snapshot(m); ok {
			out = append(out, st)
		}
	}
	return out
}

// Acquire waits for the evaluation slot of market. The returned Lease must
// be released; until then no other Acquire for the same market succeeds.
func (r *Registry) Acquire(ctx context.Context, market string) (*Lease, error) {
	e, ok := r.get(market)
	if !ok {
		return nil, fmt.Errorf("position: unknown market %s", market)
	}
	select {
	case e.slot <- struct{}{}:
		return &Lease{market: market, e: e}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) get(market string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[market]
	return e, ok
}

// Lease is exclusive access to one instrument's State for one evaluation.
type Lease struct {
	market   string
	e        *entry
	released bool
}

// State returns a working copy of the committed state.
func (l *Lease) State() State {
	l.e.mu.RLock()
	defer l.e.mu.RUnlock()
	return l.e.state
}

// Commit replaces the committed state with st in one step.
func (l *Lease) Commit(st State) error {
	if l.released {
		return fmt.Errorf("position %s: commit after release", l.market)
	}
	if st.Market != l.market {
		return fmt.Errorf("position: commit of %s through lease for %s", st.Market, l.market)
	}
	if err := st.Validate(); err != nil {
		return err
	}
	l.e.mu.Lock()
	l.e.state = st
	l.e.mu.Unlock()
	return nil
}

// Release frees the evaluation slot. Safe to call more than once.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	<-l.e.slot
}
