package counter

import (
	"sync"
	"testing"
)

// hammer runs threads goroutines that each call inc perThread times and
// returns the first error.
func hammer(threads, perThread int, inc func() error) error {
	var wg sync.WaitGroup
	errs := make(chan error, threads)

	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perThread; j++ {
				if err := inc(); err != nil {
					errs <- err

					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)

	return <-errs
}

func TestAtomicNoLostUpdates(t *testing.T) {
	for _, threads := range []int{1, 8, 64} {
		var c Atomic

		if err := hammer(threads, 1000, c.Increment); err != nil {
			t.Fatalf("increment failed: %v", err)
		}

		got, err := c.Read()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if want := uint64(threads * 1000); got != want {
			t.Errorf("threads=%d: count = %d, want %d", threads, got, want)
		}
	}
}

func TestLockedNoLostUpdates(t *testing.T) {
	var c Locked

	err := hammer(64, 1000, func() error {
		c.Increment()

		return nil
	})
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	if got := c.Value(); got != 64*1000 {
		t.Errorf("count = %d, want %d", got, 64*1000)
	}
}
