// Package engine is the composition root: it loads configuration, builds
// the memory manager, scheduler, and batch generator, and owns the
// shared PID counter every admission path (screen -s, the batch
// generator) draws from. Adapted from the root-level prototype that
// wired one CPU to one Memory; generalized here to wire N worker cores
// to one of two interchangeable memory managers.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/apperr"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/batch"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/config"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/inst"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/memory"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/memory/contiguous"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/memory/paged"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/process"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/scheduler"
)

const backingStorePath = "csopesy-backing-store.txt"

// Engine bundles the live scheduler, memory manager, and batch generator
// behind a single initialize/screen-s/scheduler-start surface, matching
// spec.md §6's CLI verbs one-to-one.
type Engine struct {
	Cfg config.Config
	Mem memory.Manager
	Sch *scheduler.Scheduler
	Gen *batch.Generator

	pids *batch.PIDCounter // shared with Gen so both admission paths stay unique

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an Engine from a loaded configuration. echo receives PRINT
// output belonging to whatever process is currently attached via
// screen -r; pass nil to discard it.
func New(cfg config.Config, echo func(string)) *Engine {
	e := &Engine{Cfg: cfg, pids: batch.NewPIDCounter(1)}
	e.Mem = buildMemoryManager(cfg)

	e.Sch = scheduler.New(scheduler.Config{
		NumCPU:        cfg.NumCPU,
		Policy:        schedulerPolicy(cfg.Scheduler),
		QuantumCycles: uint32(cfg.QuantumCycles),
		DelaysPerExec: cfg.DelaysPerExec,
		LogDir:        ".",
	}, e.Mem, echo)

	e.Gen = batch.New(batch.Config{
		BatchProcessFreq: uint32(cfg.BatchProcessFreq),
		DelaysPerExec:    cfg.DelaysPerExec,
		MinIns:           cfg.MinIns,
		MaxIns:           cfg.MaxIns,
		MemPerProc:       cfg.MemPerProc,
	}, e.Sch, e.pids)

	return e
}

func buildMemoryManager(cfg config.Config) memory.Manager {
	if cfg.MemoryMode == config.Contiguous {
		return contiguous.New(cfg.MaxOverallMem, cfg.MemPerFrame, ".")
	}
	return paged.New(cfg.MaxOverallMem, cfg.MemPerFrame, backingStorePath, false, paged.FIFO)
}

func schedulerPolicy(p config.Policy) scheduler.Policy {
	if p == config.RoundRobin {
		return scheduler.RoundRobin
	}
	return scheduler.FCFS
}

// Start launches the worker pool. It ignores the scheduler's error for a
// second Run before Stop; the shell's `initialize` command builds a fresh
// Engine each time, so it never starts the same one twice.
func (e *Engine) Start() {
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.Sch.Run(e.ctx)
}

// Stop tears down the batch generator and then the worker pool, in that
// order, so no in-flight slice outlives the process.
func (e *Engine) Stop() {
	e.Gen.Stop()
	e.Sch.Stop()
	if e.cancel != nil {
		e.cancel()
	}
}

// SpawnNamed admits a process named name running program, backing
// screen -s (the shell builds program with batch.RandomProgram). It never
// fails on name collision: the shell looks the name up with Sch.Get first
// and refuses screen -s for a name that already exists.
func (e *Engine) SpawnNamed(name string, program []inst.Instruction) *process.Process {
	pid := e.pids.Take()
	p := process.New(pid, name, e.Cfg.MemPerProc, program, inst.LogicalSize(program), time.Now())
	e.Sch.AddProcess(p)
	return p
}

// StartBatch enables the random process generator; a second call before
// StopBatch reports apperr.ErrDuplicateSchedulerStart, per spec.md §7.
func (e *Engine) StartBatch() error {
	return e.Gen.Start()
}

// StopBatch disables the random process generator.
func (e *Engine) StopBatch() { e.Gen.Stop() }

// VMStatReport composes the scheduler's tick counters with the memory
// manager's snapshot, as vmstat needs both.
func (e *Engine) VMStatReport() (scheduler.Counters, memory.Report) {
	return e.Sch.Counters(), e.Mem.Snapshot()
}

// Attach records pid as the process whose PRINT output should also echo
// to the shell, used by screen -r.
func (e *Engine) Attach(pid uint64) { e.Sch.SetAttached(pid) }

// Detach clears the attached pid, used when an inner screen prompt exits.
func (e *Engine) Detach() { e.Sch.SetAttached(0) }

// ProcessNotFound wraps apperr.ErrProcessNotFound with the process name.
func ProcessNotFound(name string) error {
	return fmt.Errorf("%w: %s", apperr.ErrProcessNotFound, name)
}
