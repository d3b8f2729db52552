package bench

import (
	"fmt"
	"sync/atomic"

	"github.com/weiihann/addrbench/address"
	"github.com/weiihann/addrbench/counter"
)

// Generator produces one encoded address per call. Each worker owns its
// own Generator.
type Generator interface {
	GenerateString() (string, error)
}

// NewAddressGenerator is the default Generator factory.
func NewAddressGenerator() Generator {
	return address.NewGenerator()
}

// State is shared by the workers of one process: both counter tiers and
// the process-local stop flag.
type State struct {
	Local     *counter.Locked
	Aggregate counter.Aggregate

	stop atomic.Bool
}

// NewState returns a State with a fresh local counter.
func NewState(aggregate counter.Aggregate) *State {
	return &State{
		Local:     new(counter.Locked),
		Aggregate: aggregate,
	}
}

// Stop asks every worker to finish its current cycle and return.
func (s *State) Stop() { s.stop.Store(true) }

// Stopped reports whether Stop has been called.
func (s *State) Stopped() bool { return s.stop.Load() }

type worker struct {
	stats ThreadStats
	gen   Generator
}

// run loops until the stop flag is observed. A cycle that has started
// always finishes, including its three increments.
func (w *worker) run(st *State) error {
	for !st.Stopped() {
		if _, err := w.gen.GenerateString(); err != nil {
			w.stats.Failures++

			continue
		}

		w.stats.Addresses++
		st.Local.Increment()

		if err := st.Aggregate.Increment(); err != nil {
			return fmt.Errorf("thread %d: %w", w.stats.ThreadID, err)
		}
	}

	return nil
}
