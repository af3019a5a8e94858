package heap

import "fmt"

// FatalError reports an unrecoverable heap condition: semispace growth
// exceeding MaxSemispaceSize, or a handle scope depth overflow. The
// source treats both as FATAL(); this package returns them instead so
// callers (internal/isolate) can decide how to react, per spec.md §7's
// policy that only truly unrecoverable conditions abort the process.
type FatalError struct {
	Op  string
	Msg string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("heap: %s: %s", e.Op, e.Msg)
}

func fatalf(op, format string, args ...any) *FatalError {
	return &FatalError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// BecomeError reports a rejected become: request, e.g. a length
// mismatch between the two reference arrays or a reference that isn't
// a heap object. See spec.md §4.1.7.
type BecomeError struct {
	Msg string
}

func (e *BecomeError) Error() string { return "heap: become: " + e.Msg }
