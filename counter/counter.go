// Package counter provides the two counter tiers used by the benchmark:
// a process-local mutex counter and an aggregate counter that may be
// shared between OS processes.
package counter

import (
	"sync"
	"sync/atomic"
)

// Aggregate is a counter whose increments and reads are linearizable
// across every unit that shares it.
type Aggregate interface {
	Increment() error
	Read() (uint64, error)
}

// Atomic is an in-process Aggregate backed by an atomic integer.
type Atomic struct {
	n atomic.Uint64
}

var _ Aggregate = (*Atomic)(nil)

func (a *Atomic) Increment() error {
	a.n.Add(1)

	return nil
}

func (a *Atomic) Read() (uint64, error) {
	return a.n.Load(), nil
}

// Locked is the process-local counter shared by one process's workers.
type Locked struct {
	mu sync.Mutex
	n  uint64
}

func (l *Locked) Increment() {
	l.mu.Lock()
	l.n++
	l.mu.Unlock()
}

func (l *Locked) Value() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.n
}
