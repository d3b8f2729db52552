// Package report formats benchmark summaries into result tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/weiihann/addrbench/harness"
)

// Totals is the tuple handed to downstream analysis tools.
type Totals struct {
	Count             uint64  `json:"count"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	ThreadsPerProcess int     `json:"threads_per_process"`
}

// TotalsOf extracts the analysis tuple from a summary.
func TotalsOf(s *harness.Summary) Totals {
	return Totals{
		Count:             s.Total,
		ElapsedSeconds:    s.ElapsedSeconds(),
		ThreadsPerProcess: s.ThreadsPerProcess,
	}
}

// Generate writes the final report: the aggregate figures followed by
// per-process and per-thread tables.
func Generate(w io.Writer, s *harness.Summary) error {
	if s == nil || len(s.Results) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total addresses: **%d** (%d processes x %d threads)\n",
		s.Total, s.Processes, s.ThreadsPerProcess)
	fmt.Fprintf(w, "Elapsed: %s\n", formatMs(s.ElapsedMs))
	fmt.Fprintf(w, "Rate: %s addresses/s\n", formatRate(s.Rate))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Process | Addresses | Failures | Elapsed | Rate | Peak Mem | Share |")
	fmt.Fprintln(w, "|---------|-----------|----------|---------|------|----------|-------|")

	for _, r := range s.Results {
		fmt.Fprintf(w, "| %d | %d | %d | %s | %s/s | %s | %s |\n",
			r.ProcessID,
			r.Addresses,
			r.Failures,
			formatMs(r.ElapsedMs),
			formatRate(r.Rate),
			formatBytes(r.PeakMemoryBytes),
			formatShare(r.Addresses, s.Total),
		)
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Process | Thread | Addresses | Failures |")
	fmt.Fprintln(w, "|---------|--------|-----------|----------|")

	for _, r := range s.Results {
		for _, t := range r.Threads {
			fmt.Fprintf(w, "| %d | %d | %d | %d |\n",
				r.ProcessID, t.ThreadID, t.Addresses, t.Failures)
		}
	}

	return nil
}

type jsonReport struct {
	*harness.Summary
	Totals Totals `json:"totals"`
}

// GenerateJSON writes the summary and its analysis tuple as JSON to w.
func GenerateJSON(w io.Writer, s *harness.Summary) error {
	if s == nil {
		return fmt.Errorf("no results to report")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jsonReport{Summary: s, Totals: TotalsOf(s)})
}

func formatShare(part, total uint64) string {
	if total == 0 {
		return "-"
	}

	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}

func formatRate(rate float64) string {
	switch {
	case rate >= 1e6:
		return fmt.Sprintf("%.2fM", rate/1e6)
	case rate >= 1e3:
		return fmt.Sprintf("%.2fk", rate/1e3)
	default:
		return fmt.Sprintf("%.2f", rate)
	}
}

func formatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}

	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}
