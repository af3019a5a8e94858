//go:build windows

package platform

import (
	"errors"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// VirtualMemory mirrors the unix implementation using VirtualAlloc,
// matching original_source/src/vm/virtual_memory_win.cc.
type VirtualMemory struct {
	addr uintptr
	size int
}

// AllocateVirtualMemory reserves and commits size bytes of read-write
// memory via VirtualAlloc.
func AllocateVirtualMemory(size int) (*VirtualMemory, error) {
	if size <= 0 {
		return nil, errors.New("platform: size must be positive")
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return &VirtualMemory{addr: addr, size: size}, nil
}

// Bytes exposes the mapped region as a slice. Safe because the mapping
// is committed and fixed for the VirtualMemory's lifetime.
func (v *VirtualMemory) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v.addr)), v.size)
}

// Protect changes page protection via VirtualProtect.
func (v *VirtualMemory) Protect(p Protection) error {
	prot := uint32(windows.PAGE_READWRITE)
	if p == ProtNone {
		prot = windows.PAGE_NOACCESS
	}
	var old uint32
	return windows.VirtualProtect(v.addr, uintptr(v.size), prot, &old)
}

// Free releases the mapping via VirtualFree.
func (v *VirtualMemory) Free() error {
	if v.addr == 0 {
		return nil
	}
	err := windows.VirtualFree(v.addr, 0, windows.MEM_RELEASE)
	v.addr = 0
	return err
}

// monotonicBase anchors MonotonicNanos to the monotonic clock reading
// that time.Now records.
var monotonicBase = time.Now()

// MonotonicNanos returns nanoseconds elapsed since package
// initialisation, measured on the monotonic clock via time.Since; the
// IOCP-specific reactor backend otherwise has no platform clock
// dependency of its own to exercise.
func MonotonicNanos() int64 {
	return int64(time.Since(monotonicBase))
}
