package kern

import (
	"github.com/vrcore/rtkernel/internal/kheap"
	"github.com/vrcore/rtkernel/internal/klist"
)

// Process holds everything a loaded ELF image owns beyond its initial
// task: the single heap slab containing every PT_LOAD segment, the
// slab-relative GOT base position-independent code uses to reach its
// globals, the computed entry address (with the Thumb bit already set),
// and the process's thread list.
type Process struct {
	name    string
	pid     uint16
	slab    *kheap.Block
	gotBase int
	entry   int
	threads *klist.List[*Task]
}

func (p *Process) Name() string  { return p.name }
func (p *Process) PID() uint16   { return p.pid }
func (p *Process) GOTBase() int  { return p.gotBase }
func (p *Process) Entry() int    { return p.entry }
func (p *Process) Slab() []byte  { return p.slab.Bytes }

// CreateProcess registers a loaded image's slab as a process and spawns
// its single initial task. entry is a Go stand-in for "the first
// instruction, executed with the recorded GOT base": this simulation does
// not interpret ARM machine code, so the caller supplies the behavior a
// real process's entry point would exhibit, typically reading its
// relocated globals out of slab via the recorded GOT base exactly as the
// loaded code would.
func (k *Kernel) CreateProcess(name string, slab *kheap.Block, gotBase, entryOffset int, priority int, entry TaskFunc) (*Process, *Task, error) {
	tok := k.cs.Enter()
	pid := k.assignPID()
	p := &Process{
		name:    name,
		pid:     pid,
		slab:    slab,
		gotBase: gotBase,
		entry:   entryOffset | 1, // Thumb bit
		threads: klist.New[*Task](),
	}
	k.cs.Exit(tok)

	t, err := k.createOwned(name, entry, priority, 0, nil, EntryProcess, p)
	if err != nil {
		return nil, nil, WrapError("create_process", InsufficientHeap, err)
	}
	tok = k.cs.Enter()
	p.threads.PushBack(t)
	k.cs.Exit(tok)
	return p, t, nil
}

// DeleteProcess tears down every thread still belonging to p and frees
// its slab, unwinding in the reverse order the threads were created —
// mirroring the source's rule that a partially failed multi-step
// operation releases every acquired resource in reverse.
func (k *Kernel) DeleteProcess(caller *Task, p *Process) {
	var threads []*Task
	tok := k.cs.Enter()
	p.threads.Each(func(c *klist.Cell[*Task]) { threads = append(threads, c.Value) })
	k.cs.Exit(tok)

	for i := len(threads) - 1; i >= 0; i-- {
		_ = k.Delete(caller, threads[i])
	}
	tok = k.cs.Enter()
	k.heap.Free(p.slab)
	p.slab = nil
	k.cs.Exit(tok)
}
