//go:build !linux && !darwin

package counter

import (
	"errors"
	"fmt"
	"runtime"
)

const SegmentSize = 16

var (
	ErrInvalidName    = errors.New("invalid segment name")
	ErrInvalidSegment = errors.New("invalid shared segment")
)

// Shared is unavailable on this platform.
type Shared struct{}

var _ Aggregate = (*Shared)(nil)

func unsupported() error {
	return fmt.Errorf("shared segments on %s: %w", runtime.GOOS, errors.ErrUnsupported)
}

func SegmentDir() string { return "" }

func CreateShared(string) (*Shared, error) { return nil, unsupported() }

func AttachShared(string) (*Shared, error) { return nil, unsupported() }

func (*Shared) Name() string          { return "" }
func (*Shared) Path() string          { return "" }
func (*Shared) Increment() error      { return unsupported() }
func (*Shared) Read() (uint64, error) { return 0, unsupported() }
func (*Shared) Close() error          { return nil }
func (*Shared) Unlink() error         { return nil }
