package bench

import "golang.org/x/sys/unix"

// peakRSS returns the process's maximum resident set size in bytes.
// Linux reports ru_maxrss in kilobytes.
func peakRSS() uint64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil || ru.Maxrss < 0 {
		return 0
	}

	return uint64(ru.Maxrss) * 1024
}
