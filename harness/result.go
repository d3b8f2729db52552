// Package harness coordinates a multi-process benchmark run: it owns the
// shared aggregate segment, launches worker units and collects their
// results.
package harness

import "github.com/weiihann/addrbench/bench"

// Summary holds the outcome of a whole run. Total is read from the
// shared segment and is authoritative; Results are per-process
// diagnostics, ordered by process ID.
type Summary struct {
	Total             uint64         `json:"total"`
	ElapsedMs         int64          `json:"elapsed_ms"`
	Rate              float64        `json:"rate"`
	Processes         int            `json:"processes"`
	ThreadsPerProcess int            `json:"threads_per_process"`
	Results           []bench.Result `json:"results"`
}

// ElapsedSeconds returns ElapsedMs in seconds.
func (s *Summary) ElapsedSeconds() float64 {
	return float64(s.ElapsedMs) / 1000
}
