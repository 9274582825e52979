// Package process models a single scheduled process: its program, its
// variable table, its loop stack and its progress counters.
package process

import (
	"time"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/inst"
)

// statusFlag is a bitmask, read with isSet and written with set. There is
// no clear, so a flag stays set once set.
type statusFlag uint8

const (
	StatusFinished statusFlag = 1 << iota
	StatusViolated
)

type status statusFlag

func (s status) isSet(b statusFlag) bool { return uint8(s)&uint8(b) != 0 }

func (s *status) set(b statusFlag) { *s = status(uint8(*s) | uint8(b)) }

// MaxVariables is the cardinality cap on a process's variable table;
// excess DECLAREs are silently ignored.
const MaxVariables = 32

// MaxLoopDepth bounds the loop stack. Kept as a fixed array rather than a
// slice so the depth invariant is a compile-time bound: a FOR that would
// exceed it is refused by the interpreter before ever reaching the stack.
const MaxLoopDepth = 3

// LoopFrame is one level of an active FOR. Start and End delimit the
// spliced body (inclusive); Remaining counts iterations still owed after
// the current (already-inlined) one.
type LoopFrame struct {
	Start     int
	End       int
	Remaining uint32
	Indent    int
}

// Process owns everything the interpreter and scheduler need to run and
// report on one synthetic program.
type Process struct {
	PID     uint64
	Name    string
	Created time.Time

	MemSize uint32 // address-space byte size, power of two in [64, 65536]

	Program []inst.Instruction // mutable: FOR splices its body inline

	Vars map[string]uint16

	loopStack [MaxLoopDepth]LoopFrame
	loopDepth int

	CurrentLine   int
	ExecutedLines uint64
	TotalLine     uint64

	PendingSleep uint8

	AssignedCore int // -1 when not running

	st status

	Output []string // line-buffered log, flushed to <name>.txt on core release
}

// New constructs a fresh process ready for admission. totalLine is the
// logical size of program (see inst.LogicalSize), computed by the caller
// since the batch generator and screen -s both already have it to hand.
func New(pid uint64, name string, memSize uint32, program []inst.Instruction, totalLine uint64, created time.Time) *Process {
	return &Process{
		PID:          pid,
		Name:         name,
		Created:      created,
		MemSize:      memSize,
		Program:      program,
		Vars:         make(map[string]uint16),
		CurrentLine:  0,
		TotalLine:    totalLine,
		AssignedCore: -1,
	}
}

// Finished reports whether the process has terminated, either by running
// off the end of its program or by a memory-access violation. Once set it
// never clears.
func (p *Process) Finished() bool { return p.st.isSet(StatusFinished) }

// Violated reports whether termination was due to a memory-access
// violation, as opposed to normal completion.
func (p *Process) Violated() bool { return p.st.isSet(StatusViolated) }

// Finish marks the process as finished. Calling it more than once, or
// after a violation, is a no-op for the flags already set.
func (p *Process) Finish() { p.st.set(StatusFinished) }

// Violate marks the process as finished due to a memory-access violation.
func (p *Process) Violate() { p.st.set(StatusFinished | StatusViolated) }

// GetVar returns a variable's value, defaulting to zero when absent (the
// interpreter treats a missing variable as zero, never an error).
func (p *Process) GetVar(name string) uint16 { return p.Vars[name] }

// SetVar inserts or updates a variable, silently refusing insertion past
// MaxVariables. Updating an existing variable is always allowed.
func (p *Process) SetVar(name string, val uint16) {
	if _, exists := p.Vars[name]; !exists && len(p.Vars) >= MaxVariables {
		return
	}
	p.Vars[name] = val
}

// LoopDepth returns the number of currently active loop frames.
func (p *Process) LoopDepth() int { return p.loopDepth }

// TopLoop returns the innermost active loop frame and true, or a zero
// frame and false if the loop stack is empty.
func (p *Process) TopLoop() (LoopFrame, bool) {
	if p.loopDepth == 0 {
		return LoopFrame{}, false
	}
	return p.loopStack[p.loopDepth-1], true
}

// PushLoop installs a new innermost loop frame. The caller (interp.Step)
// must have already verified LoopDepth() < MaxLoopDepth.
func (p *Process) PushLoop(f LoopFrame) {
	p.loopStack[p.loopDepth] = f
	p.loopDepth++
}

// PopLoop discards the innermost loop frame.
func (p *Process) PopLoop() {
	if p.loopDepth > 0 {
		p.loopDepth--
	}
}

// SetTopLoop overwrites the innermost loop frame in place, used when
// decrementing Remaining or jumping CurrentLine back to Start.
func (p *Process) SetTopLoop(f LoopFrame) {
	if p.loopDepth > 0 {
		p.loopStack[p.loopDepth-1] = f
	}
}

// AdjustOuterLoopEnds adds delta to the End of every active frame whose
// End is at or past insertAt, compensating for a FOR splice that grew the
// program inside an already-active outer loop. The interpreter calls it
// before pushing the new frame, so every active frame is an outer one.
func (p *Process) AdjustOuterLoopEnds(insertAt, delta int) {
	for i := 0; i < p.loopDepth; i++ {
		if p.loopStack[i].End >= insertAt {
			p.loopStack[i].End += delta
		}
	}
}

// Log appends a line to the process's output buffer. Flushing to
// <name>.txt happens on core release (see internal/scheduler).
func (p *Process) Log(line string) {
	p.Output = append(p.Output, line)
}
