// Package bench runs the per-process address generation benchmark: a
// fixed pool of worker goroutines feeding two counter tiers until the
// process's own deadline passes.
package bench

// ThreadStats is the tally of one worker goroutine.
type ThreadStats struct {
	ThreadID  int    `json:"thread_id"`
	Addresses uint64 `json:"addresses"`
	Failures  uint64 `json:"failures"`
}

// Result is the outcome of one process's benchmark run. Child processes
// write it to stdout as JSON.
type Result struct {
	ProcessID       int           `json:"process_id"`
	Addresses       uint64        `json:"addresses"`
	Failures        uint64        `json:"failures"`
	ElapsedMs       int64         `json:"elapsed_ms"`
	Rate            float64       `json:"rate"`
	// PeakMemoryBytes is the process's maximum resident set size.
	PeakMemoryBytes uint64        `json:"peak_memory_bytes"`
	Threads         []ThreadStats `json:"threads"`
}
