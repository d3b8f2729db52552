//go:build linux || darwin

package counter

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"
)

func testSegmentName(t *testing.T) string {
	t.Helper()

	return fmt.Sprintf("addrbench-test-%d-%d", os.Getpid(), time.Now().UnixNano())
}

func createTestSegment(t *testing.T) *Shared {
	t.Helper()

	s, err := CreateShared(testSegmentName(t))
	if err != nil {
		t.Fatalf("CreateShared failed: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
		s.Unlink()
	})

	return s
}

func TestCreateSharedZeroed(t *testing.T) {
	s := createTestSegment(t)

	n, err := s.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 0 {
		t.Errorf("fresh segment count = %d, want 0", n)
	}

	fi, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("stat segment: %v", err)
	}
	if fi.Size() != SegmentSize {
		t.Errorf("segment size = %d, want %d", fi.Size(), SegmentSize)
	}
}

func TestCreateSharedReplacesStale(t *testing.T) {
	s := createTestSegment(t)
	for i := 0; i < 5; i++ {
		if err := s.Increment(); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	again, err := CreateShared(s.Name())
	if err != nil {
		t.Fatalf("second CreateShared failed: %v", err)
	}
	defer again.Close()

	n, err := again.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 0 {
		t.Errorf("recreated segment count = %d, want 0", n)
	}
}

func TestSegmentNames(t *testing.T) {
	for _, name := range []string{"", "/", "a/b", "..", "."} {
		if _, err := CreateShared(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("CreateShared(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestAttachMissing(t *testing.T) {
	_, err := AttachShared(testSegmentName(t))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("AttachShared error = %v, want ErrNotExist", err)
	}
}

func TestAttachRejectsForeignFile(t *testing.T) {
	name := testSegmentName(t)
	path, err := segmentPath(name)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, make([]byte, SegmentSize), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	defer os.Remove(path)

	if _, err := AttachShared(name); !errors.Is(err, ErrInvalidSegment) {
		t.Errorf("AttachShared error = %v, want ErrInvalidSegment", err)
	}
}

func TestSharedAttachmentsNoLostUpdates(t *testing.T) {
	s := createTestSegment(t)

	const units, threads, perThread = 4, 16, 200

	var wg sync.WaitGroup
	errs := make([]error, units)

	for u := 0; u < units; u++ {
		a, err := AttachShared(s.Name())
		if err != nil {
			t.Fatalf("AttachShared failed: %v", err)
		}
		defer a.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[u] = hammer(threads, perThread, a.Increment)
		}()
	}
	wg.Wait()

	for u, err := range errs {
		if err != nil {
			t.Fatalf("unit %d: %v", u, err)
		}
	}

	n, err := s.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if want := uint64(units * threads * perThread); n != want {
		t.Errorf("count = %d, want %d", n, want)
	}
}

func TestUnlinkKeepsMappingValid(t *testing.T) {
	s, err := CreateShared(testSegmentName(t))
	if err != nil {
		t.Fatalf("CreateShared failed: %v", err)
	}
	defer s.Close()

	if err := s.Unlink(); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	if err := s.Increment(); err != nil {
		t.Fatalf("Increment after unlink failed: %v", err)
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("segment still present after unlink: %v", err)
	}
}

const (
	helperSegmentEnv = "ADDRBENCH_HELPER_SEGMENT"
	helperThreads    = 8
	helperPerThread  = 500
)

// TestHelperIncrement runs only inside child processes started by
// TestSharedAcrossProcesses.
func TestHelperIncrement(t *testing.T) {
	name := os.Getenv(helperSegmentEnv)
	if name == "" {
		t.Skip("helper process only")
	}

	s, err := AttachShared(name)
	if err != nil {
		t.Fatalf("AttachShared failed: %v", err)
	}
	defer s.Close()

	if err := hammer(helperThreads, helperPerThread, s.Increment); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
}

func TestSharedAcrossProcesses(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns processes")
	}

	s := createTestSegment(t)

	const procs = 4

	cmds := make([]*exec.Cmd, procs)
	for i := range cmds {
		cmd := exec.Command(os.Args[0], "-test.run=^TestHelperIncrement$", "-test.count=1")
		cmd.Env = append(os.Environ(), helperSegmentEnv+"="+s.Name())
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			t.Fatalf("start helper %d: %v", i, err)
		}
		cmds[i] = cmd
	}

	for i, cmd := range cmds {
		if err := cmd.Wait(); err != nil {
			t.Fatalf("helper %d failed: %v", i, err)
		}
	}

	n, err := s.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if want := uint64(procs * helperThreads * helperPerThread); n != want {
		t.Errorf("count = %d, want %d", n, want)
	}
}
