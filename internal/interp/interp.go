// Package interp executes one instruction of a process per tick,
// mirroring the teacher's wait-counter gated Cycle() step but dispatching
// on the process instruction language instead of 6502 opcodes.
package interp

import (
	"fmt"
	"time"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/inst"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/memory"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/process"
)

// Outcome reports what happened to the slice after one Step call.
type Outcome int

const (
	// Continue means the slice should keep running (more ticks allowed).
	Continue Outcome = iota
	// SliceEnded means a SLEEP (or a pending-sleep tick) ended this
	// dispatch's slice; the caller (scheduler) decides what's next. The
	// quantum boundary is enforced by the scheduler's tick limit, not here.
	SliceEnded
	// Violated means a memory-access violation ended the process.
	Violated
	// Finished means the program ran off its end.
	Finished
)

// ShellEcho is called for PRINT output belonging to the currently
// attached process, per spec.md §4.E ("also flushed to the shell").
// The scheduler supplies an implementation backed by its stdout mutex.
type ShellEcho func(pid uint64, line string)

// Context bundles everything Step needs beyond the process itself.
type Context struct {
	CoreID        int
	DelaysPerExec int // ms between ticks
	Mem           memory.Manager // nil when memory management is disabled
	AttachedPID   func() uint64  // current shell-attached pid, or 0
	Echo          ShellEcho
}

// Step executes exactly one instruction (or one SLEEP decrement) of p,
// advancing its counters and loop stack per spec.md §4.E. It returns the
// Outcome so the scheduler's worker loop knows whether to keep dispatching
// within the current slice.
func Step(p *process.Process, ctx Context) Outcome {
	if p.PendingSleep > 0 {
		sleepTick(ctx.DelaysPerExec)
		p.PendingSleep--
		if p.PendingSleep == 0 {
			p.CurrentLine++
			runLoopAccounting(p)
		}
		return SliceEnded
	}

	if p.CurrentLine >= len(p.Program) {
		p.Finish()
		return Finished
	}

	in := p.Program[p.CurrentLine]

	switch in.Op {
	case inst.OpPrint:
		execPrint(p, in, ctx)
	case inst.OpDeclare:
		p.SetVar(in.VarName, clamp16(int(in.InitVal)))
	case inst.OpAdd:
		execArith(p, in, true)
	case inst.OpSubtract:
		execArith(p, in, false)
	case inst.OpSleep:
		return execSleep(p, in, ctx)
	case inst.OpFor:
		execFor(p, in)
	case inst.OpRead:
		if !execRead(p, in, ctx) {
			return Violated
		}
	case inst.OpWrite:
		if !execWrite(p, in, ctx) {
			return Violated
		}
	}

	p.CurrentLine++
	p.ExecutedLines++
	if p.ExecutedLines > p.TotalLine {
		p.TotalLine = p.ExecutedLines
	}
	runLoopAccounting(p)

	if p.CurrentLine >= len(p.Program) {
		p.Finish()
		return Finished
	}
	return Continue
}

func sleepTick(ms int) {
	if ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
}

func clamp16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

func resolve(p *process.Process, op inst.Operand) uint16 {
	if op.IsVariable {
		return p.GetVar(op.Name)
	}
	return op.Literal
}

func execPrint(p *process.Process, in inst.Instruction, ctx Context) {
	msg := in.Prefix
	if in.HasArg {
		msg += fmt.Sprintf("+%s: %d", in.ArgName, p.GetVar(in.ArgName))
	}
	line := fmt.Sprintf("(%s) Core:%d \"%s\"", time.Now().Format("01/02/2006 03:04:05PM"), ctx.CoreID, msg)
	p.Log(line)

	if ctx.AttachedPID != nil && ctx.Echo != nil && ctx.AttachedPID() == p.PID {
		ctx.Echo(p.PID, msg)
	}
}

func execArith(p *process.Process, in inst.Instruction, isAdd bool) {
	a := int(resolve(p, in.LHS))
	b := int(resolve(p, in.RHS))
	var result int
	if isAdd {
		result = a + b
	} else {
		result = a - b
		if result < 0 {
			result = 0
		}
	}
	p.SetVar(in.Dest, clamp16(result))
}

func execSleep(p *process.Process, in inst.Instruction, ctx Context) Outcome {
	sleepTick(ctx.DelaysPerExec)
	p.PendingSleep = in.Ticks
	if p.PendingSleep > 0 {
		p.PendingSleep--
	}
	p.CurrentLine++
	p.ExecutedLines++
	if p.ExecutedLines > p.TotalLine {
		p.TotalLine = p.ExecutedLines
	}
	runLoopAccounting(p)
	return SliceEnded
}

// execFor splices the FOR's body into the program immediately after the
// current line, adjusts outer loop ends, and pushes a new frame. The
// first iteration executes inline: Step advances CurrentLine onto the
// first spliced body instruction, which runs on the next tick; see
// spec.md §4.E.
func execFor(p *process.Process, in inst.Instruction) {
	if p.LoopDepth() >= process.MaxLoopDepth || len(in.Body) == 0 || in.Reps == 0 {
		return // refused: too deep, empty body, or zero repetitions
	}

	insertAt := p.CurrentLine + 1
	bodySize := len(in.Body)

	grown := make([]inst.Instruction, 0, len(p.Program)+bodySize)
	grown = append(grown, p.Program[:insertAt]...)
	grown = append(grown, in.Body...)
	grown = append(grown, p.Program[insertAt:]...)
	p.Program = grown

	p.AdjustOuterLoopEnds(insertAt, bodySize)

	p.PushLoop(process.LoopFrame{
		Start:     insertAt,
		End:       insertAt + bodySize - 1,
		Remaining: in.Reps - 1,
		Indent:    p.LoopDepth() + 1,
	})
}

func execRead(p *process.Process, in inst.Instruction, ctx Context) bool {
	if ctx.Mem == nil {
		p.SetVar(in.Dest, 0)
		return true
	}
	v, ok := ctx.Mem.Access(p.Name, p.PID, in.Address, false, 0)
	if !ok {
		violate(p, ctx, in.Address)
		return false
	}
	p.SetVar(in.Dest, v)
	return true
}

func execWrite(p *process.Process, in inst.Instruction, ctx Context) bool {
	val := resolve(p, in.Value)
	if ctx.Mem == nil {
		return true
	}
	_, ok := ctx.Mem.Access(p.Name, p.PID, in.Address, true, val)
	if !ok {
		violate(p, ctx, in.Address)
		return false
	}
	return true
}

func violate(p *process.Process, ctx Context, addr uint32) {
	p.Violate()
	msg := fmt.Sprintf("Process %s shut down due to memory access violation error that occurred at %s, 0x%X invalid.",
		p.Name, time.Now().Format("15:04:05.000"), addr)
	p.Log(msg)
	if ctx.AttachedPID != nil && ctx.Echo != nil && ctx.AttachedPID() == p.PID {
		ctx.Echo(p.PID, msg)
	}
}

// runLoopAccounting pops or rewinds the innermost loop frame once
// CurrentLine runs past its End, per spec.md §4.E's final paragraph.
func runLoopAccounting(p *process.Process) {
	for {
		top, ok := p.TopLoop()
		if !ok || p.CurrentLine <= top.End {
			return
		}
		if top.Remaining > 0 {
			top.Remaining--
			p.SetTopLoop(top)
			p.CurrentLine = top.Start
			return
		}
		p.PopLoop()
	}
}
