//go:build windows

package reactor

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// ProcessHandles are the four handle ids StartProcess returns, per
// spec.md §4.2.6.
type ProcessHandles struct {
	Process uint32
	Stdin   uint32
	Stdout  uint32
	Stderr  uint32
}

type pipeEnds struct {
	parent windows.Handle
	child  windows.Handle
}

func newOverlappedPipe() (pipeEnds, error) {
	var r, w windows.Handle
	sa := &windows.SecurityAttributes{
		Length:             uint32(24), // sizeof(SECURITY_ATTRIBUTES) on amd64; no custom DACL needed
		InheritHandle:      1,
	}
	if err := windows.CreatePipe(&r, &w, sa, 0); err != nil {
		return pipeEnds{}, err
	}
	return pipeEnds{parent: r, child: w}, nil
}

// StartProcess spawns a child with its stdin/stdout/stderr bound to
// three anonymous pipes, registers the process handle and the three
// parent pipe ends in the handle table, and associates all four with
// the reactor's IOCP. Both ends of every pipe are created inheritable
// and CreateProcess is called with handle inheritance on and no
// explicit handle list, so the child inherits every inheritable handle
// of this process, the parent pipe ends included. No wait is
// registered on the child's exit, so no completion is posted when it
// exits.
func (r *Reactor) StartProcess(path string, args []string) (ProcessHandles, error) {
	p, ok := r.poller.(*iocpPoller)
	if !ok {
		return ProcessHandles{}, ErrUnsupportedOperation
	}

	stdin, err := newOverlappedPipe()
	if err != nil {
		return ProcessHandles{}, &SignalError{Op: "CreatePipe(stdin)", Err: err}
	}
	// The child reads its stdin, so it takes the pipe's read end.
	stdin.parent, stdin.child = stdin.child, stdin.parent
	stdout, err := newOverlappedPipe()
	if err != nil {
		return ProcessHandles{}, &SignalError{Op: "CreatePipe(stdout)", Err: err}
	}
	stderr, err := newOverlappedPipe()
	if err != nil {
		return ProcessHandles{}, &SignalError{Op: "CreatePipe(stderr)", Err: err}
	}

	cmdLine := syscall.EscapeArg(path)
	for _, a := range args {
		cmdLine += " " + syscall.EscapeArg(a)
	}

	si := &windows.StartupInfo{
		StdInput:  stdin.child,
		StdOutput: stdout.child,
		StdErr:    stderr.child,
		Flags:     windows.STARTF_USESTDHANDLES,
	}
	var pi windows.ProcessInformation
	cmdLineUTF16, err := windows.UTF16PtrFromString(cmdLine)
	if err != nil {
		return ProcessHandles{}, err
	}
	if err := windows.CreateProcess(nil, cmdLineUTF16, nil, nil, true, 0, nil, nil, si, &pi); err != nil {
		return ProcessHandles{}, &SignalError{Op: "CreateProcess", Err: err}
	}
	_ = windows.CloseHandle(stdin.child)
	_ = windows.CloseHandle(stdout.child)
	_ = windows.CloseHandle(stderr.child)
	_ = windows.CloseHandle(pi.Thread)

	procID := r.handles.Insert(&processHandle{proc: pi.Process})
	stdinID := r.handles.Insert(&pipeHandle{h: stdin.parent})
	stdoutID := r.handles.Insert(&pipeHandle{h: stdout.parent})
	stderrID := r.handles.Insert(&pipeHandle{h: stderr.parent})

	for _, reg := range []struct {
		id uint32
		h  windows.Handle
	}{{stdinID, stdin.parent}, {stdoutID, stdout.parent}, {stderrID, stderr.parent}} {
		if _, err := windows.CreateIoCompletionPort(reg.h, p.iocp, uintptr(reg.id), 0); err != nil {
			return ProcessHandles{}, &SignalError{Op: "CreateIoCompletionPort(pipe)", Err: err}
		}
	}
	if _, err := windows.CreateIoCompletionPort(pi.Process, p.iocp, uintptr(procID), 0); err != nil {
		return ProcessHandles{}, &SignalError{Op: "CreateIoCompletionPort(process)", Err: err}
	}

	return ProcessHandles{Process: procID, Stdin: stdinID, Stdout: stdoutID, Stderr: stderrID}, nil
}

type processHandle struct{ proc windows.Handle }
type pipeHandle struct{ h windows.Handle }

// Read and Write operate through the handle table, per spec.md §4.2.1's
// Windows-only extension list.
func (r *Reactor) Read(handleID uint32, buf []byte) (int, error) {
	v, ok := r.handles.Get(handleID)
	if !ok {
		return 0, ErrHandleNotFound
	}
	ph, ok := v.(*pipeHandle)
	if !ok {
		return 0, ErrUnsupportedOperation
	}
	var n uint32
	err := windows.ReadFile(ph.h, buf, &n, nil)
	return int(n), err
}

func (r *Reactor) Write(handleID uint32, buf []byte) (int, error) {
	v, ok := r.handles.Get(handleID)
	if !ok {
		return 0, ErrHandleNotFound
	}
	ph, ok := v.(*pipeHandle)
	if !ok {
		return 0, ErrUnsupportedOperation
	}
	var n uint32
	err := windows.WriteFile(ph.h, buf, &n, nil)
	return int(n), err
}

func (r *Reactor) Close(handleID uint32) error {
	v, ok := r.handles.Get(handleID)
	if !ok {
		return ErrHandleNotFound
	}
	r.handles.Delete(handleID)
	switch h := v.(type) {
	case *pipeHandle:
		return windows.CloseHandle(h.h)
	case *processHandle:
		return windows.CloseHandle(h.proc)
	default:
		return ErrUnsupportedOperation
	}
}
