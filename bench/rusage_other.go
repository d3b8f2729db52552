//go:build !linux && !darwin

package bench

// peakRSS is not available here; the report shows "-" for zero.
func peakRSS() uint64 { return 0 }
