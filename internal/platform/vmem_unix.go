//go:build linux || darwin

package platform

import (
	"errors"

	"golang.org/x/sys/unix"
)

// VirtualMemory is an anonymous, page-aligned mapping used as the
// backing store for a heap.Semispace. Grounded on
// original_source/src/vm/virtual_memory_posix.cc, re-expressed with
// golang.org/x/sys/unix.
type VirtualMemory struct {
	data []byte
}

// AllocateVirtualMemory maps size bytes of zeroed, read-write, anonymous
// memory. size is rounded up to the page size by the kernel; callers
// that need exact sizing (the heap does) must pass an already
// page-aligned size.
func AllocateVirtualMemory(size int) (*VirtualMemory, error) {
	if size <= 0 {
		return nil, errors.New("platform: size must be positive")
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &VirtualMemory{data: data}, nil
}

// Bytes returns the mapped region as a byte slice. The slice length
// never changes for the mapping's lifetime.
func (v *VirtualMemory) Bytes() []byte { return v.data }

// Protect changes the mapping's protection, the counterpart of
// Semispace::NoAccess()/ReadWrite() in the source. The heap does not
// call it.
func (v *VirtualMemory) Protect(p Protection) error {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if p == ProtNone {
		prot = unix.PROT_NONE
	}
	return unix.Mprotect(v.data, prot)
}

// Free unmaps the region. The VirtualMemory must not be used afterward.
func (v *VirtualMemory) Free() error {
	if v.data == nil {
		return nil
	}
	err := unix.Munmap(v.data)
	v.data = nil
	return err
}

// MonotonicNanos returns a monotonically increasing nanosecond
// timestamp from CLOCK_MONOTONIC, matching spec.md §5's "clock is the
// platform's monotonic clock; it never goes backwards and is not
// affected by wall-clock adjustments."
func MonotonicNanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return ts.Nano()
}
