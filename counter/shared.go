//go:build linux || darwin

package counter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Segment layout: the counter, then a magic tag written last by the
// creator so attachers can reject foreign or half-initialised files.
const (
	SegmentSize = 16

	counterOffset = 0
	magicOffset   = 8
)

var segmentMagic = binary.LittleEndian.Uint64([]byte("ADDRBNCH"))

var (
	ErrInvalidName    = errors.New("invalid segment name")
	ErrInvalidSegment = errors.New("invalid shared segment")
)

// Shared is an Aggregate stored in a named shared-memory segment.
// Exclusion between processes uses flock(2) on the segment file, which
// the kernel releases if the holder dies. Goroutines of one process
// additionally serialise on mu, since flock is held per open file.
type Shared struct {
	name string
	path string
	file *os.File
	data []byte

	mu sync.Mutex
}

var _ Aggregate = (*Shared)(nil)

// SegmentDir is where segments live: /dev/shm when it exists (what
// shm_open uses on Linux), the temp dir otherwise.
func SegmentDir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}

	return os.TempDir()
}

func segmentPath(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.ContainsRune(name, '/') || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return filepath.Join(SegmentDir(), name), nil
}

// CreateShared creates, sizes, maps, and zero-initialises the named
// segment. A stale segment with the same name is removed first. On
// failure nothing is left behind.
func CreateShared(name string) (*Shared, error) {
	path, err := segmentPath(name)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale segment %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create segment %s: %w", path, err)
	}

	fail := func(err error) (*Shared, error) {
		f.Close()
		os.Remove(path)

		return nil, err
	}

	if err := unix.Ftruncate(int(f.Fd()), SegmentSize); err != nil {
		return fail(fmt.Errorf("size segment %s: %w", path, err))
	}

	s, err := mapSegment(name, path, f)
	if err != nil {
		return fail(err)
	}

	atomic.StoreUint64(s.counter(), 0)
	atomic.StoreUint64(s.magic(), segmentMagic)

	return s, nil
}

// AttachShared maps an existing segment created by CreateShared.
func AttachShared(name string) (*Shared, error) {
	path, err := segmentPath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("stat segment %s: %w", path, err)
	}

	if fi.Size() < SegmentSize {
		f.Close()

		return nil, fmt.Errorf("%w: %s is %d bytes", ErrInvalidSegment, path, fi.Size())
	}

	s, err := mapSegment(name, path, f)
	if err != nil {
		f.Close()

		return nil, err
	}

	if atomic.LoadUint64(s.magic()) != segmentMagic {
		s.Close()

		return nil, fmt.Errorf("%w: %s has no header", ErrInvalidSegment, path)
	}

	return s, nil
}

func mapSegment(name, path string, f *os.File) (*Shared, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, SegmentSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map segment %s: %w", path, err)
	}

	return &Shared{name: name, path: path, file: f, data: data}, nil
}

// Name returns the segment name used to attach to it.
func (s *Shared) Name() string { return s.name }

// Path returns the backing file path.
func (s *Shared) Path() string { return s.path }

// mmap returns page-aligned memory, so both words are 8-byte aligned.
func (s *Shared) counter() *uint64 {
	return (*uint64)(unsafe.Pointer(&s.data[counterOffset]))
}

func (s *Shared) magic() *uint64 {
	return (*uint64)(unsafe.Pointer(&s.data[magicOffset]))
}

func (s *Shared) lock() error {
	s.mu.Lock()

	for {
		err := unix.Flock(int(s.file.Fd()), unix.LOCK_EX)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EINTR) {
			s.mu.Unlock()

			return fmt.Errorf("lock segment %s: %w", s.path, err)
		}
	}
}

func (s *Shared) unlock() error {
	defer s.mu.Unlock()

	if err := unix.Flock(int(s.file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("unlock segment %s: %w", s.path, err)
	}

	return nil
}

func (s *Shared) Increment() error {
	if err := s.lock(); err != nil {
		return err
	}

	p := s.counter()
	atomic.StoreUint64(p, atomic.LoadUint64(p)+1)

	return s.unlock()
}

func (s *Shared) Read() (uint64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}

	n := atomic.LoadUint64(s.counter())

	return n, s.unlock()
}

// Close unmaps the segment and closes the file. The segment itself
// persists until Unlink.
func (s *Shared) Close() error {
	var errs []error

	if s.data != nil {
		if err := unix.Munmap(s.data); err != nil {
			errs = append(errs, fmt.Errorf("unmap segment %s: %w", s.path, err))
		}
		s.data = nil
	}

	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, fmt.Errorf("close segment %s: %w", s.path, err))
	}

	return errors.Join(errs...)
}

// Unlink removes the segment name. Attached mappings stay valid.
func (s *Shared) Unlink() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unlink segment %s: %w", s.path, err)
	}

	return nil
}
