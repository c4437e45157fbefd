// Package syscall implements the kernel's trap-based system-call path:
// a user task hands over a Frame naming which service it wants and the
// service's arguments, a short-lived kernel task runs the handler, and
// the caller is suspended on that task exactly like any other join.
//
// The real ABI packs arguments into registers and has the trap shim
// dereference user-stack pointers to find buffers and strings; this
// simulation has no separate user address space to read through a
// pointer, so Frame.Args carries the caller's actual Go values (file
// handles, byte slices, names) directly. That is a disclosed ABI
// simplification — the dispatch-and-suspend model the spec describes
// is unchanged, only the register-to-value encoding is skipped.
package syscall

import "github.com/vrcore/rtkernel/internal/kern"

// The fixed, closed table of services user code may invoke by number.
const (
	CallOpen  = 0
	CallClose = 1
	CallRead  = 2
	CallWrite = 3
)

// NumArgs mirrors the eight argument registers the real trap shim reserves.
const NumArgs = 8

// Frame is the caller-supplied call number, argument vector and result
// slot — the simulated stand-in for the register window plus reserved
// result word the trap ABI pushes onto the user stack.
type Frame struct {
	Call    int
	Args    [NumArgs]any
	Result  int32
	Service *kern.Task // the task spawned to service this call, set by Invoke
}
