// Package platform is the facade the heap uses for virtual memory and
// entropy, alongside monotonic time and fatal termination, so those
// platform-specific build-tagged files stay small and isolated. The
// reactor's pollers do not go through it: they call the unix/windows
// syscall packages directly.
package platform

import (
	"fmt"
	"os"

	"github.com/nimbusvm/nimbusvm/internal/vmlog"
)

// Protection describes the memory protection to apply to a mapped
// region via VirtualMemory.Protect. Only read-write and no-access are
// modeled; the heap does not call Protect.
type Protection int

const (
	ProtReadWrite Protection = iota
	ProtNone
)

// Print writes a line to stderr. Grounded on the source's os.h Print
// contract (a thin wrapper so the VM never calls fmt/log directly from
// heap/reactor code, keeping platform concerns in one place).
func Print(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Abort logs a fatal error with its origin and terminates the process
// immediately, mirroring the C++ source's ASSERT/FATAL macros and
// spec.md §7's "print file/line and message, abort the process" for
// Fatal errors. It never returns.
func Abort(file string, line int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	vmlog.Error(vmlog.CategoryHeap, "fatal error", nil, map[string]any{
		"file":    file,
		"line":    line,
		"message": msg,
	})
	fmt.Fprintf(os.Stderr, "FATAL: %s:%d: %s\n", file, line, msg)
	os.Exit(134) // SIGABRT-equivalent exit status, matching abort(3).
}
