// Package scheduler implements the ready-queue/worker-pool core: a pool
// of N worker goroutines consuming processes from a shared FIFO under one
// mutex and a condition variable, running either FCFS (unrun to
// completion) or round-robin (fixed quantum) slices. Grounded on the
// teacher's ticker-driven Cycle() main loop, generalized from one CPU to
// N worker goroutines, and on the enrichment pack's goroutine+done-
// channel worker lifecycle folded into an errgroup.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/apperr"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/interp"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/memory"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/process"
)

// Policy selects FCFS or round-robin dispatch.
type Policy int

const (
	FCFS Policy = iota
	RoundRobin
)

// ErrProcessNotFound is an alias kept for callers that imported it from
// this package before the shared apperr sentinels existed.
var ErrProcessNotFound = apperr.ErrProcessNotFound

// errAlreadyRunning guards against calling Run twice on the same
// Scheduler before Stop; this is a worker-pool lifecycle error distinct
// from apperr.ErrDuplicateSchedulerStart, which governs the batch
// generator (see internal/batch).
var errAlreadyRunning = fmt.Errorf("scheduler: worker pool already running")

// Config bundles the tunables loaded from the configuration file.
type Config struct {
	NumCPU        int
	Policy        Policy
	QuantumCycles uint32
	DelaysPerExec int // ms
	LogDir        string // directory <name>.txt logs are appended to
}

// Scheduler owns the ready/running/finished lists and the worker pool.
type Scheduler struct {
	cfg Config
	mem memory.Manager

	mu   sync.Mutex
	cond *sync.Cond

	ready    []*process.Process
	running  map[*process.Process]struct{}
	finished []finishedEntry

	shuttingDown bool
	started      bool

	coresInUse     int64
	idleCPUTicks   int64
	activeCPUTicks int64
	curQuantum     int64

	attachedPID atomic.Uint64

	stdoutMu sync.Mutex
	echo     func(string)

	group  *errgroup.Group
	cancel context.CancelFunc
}

type finishedEntry struct {
	Proc   *process.Process
	CoreID int
}

// New constructs a Scheduler. echo is called for PRINT output belonging
// to whatever process is currently attached via SetAttached; pass nil to
// discard it.
func New(cfg Config, mem memory.Manager, echo func(string)) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		mem:     mem,
		running: make(map[*process.Process]struct{}),
		echo:    echo,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// SetAttached records which pid's PRINT output should also echo to the
// shell; 0 means no process is attached. Modelled as the source's global
// "attached PID", owned here instead of as a package-level variable.
func (s *Scheduler) SetAttached(pid uint64) { s.attachedPID.Store(pid) }

func (s *Scheduler) attached() uint64 { return s.attachedPID.Load() }

func (s *Scheduler) shellEcho(pid uint64, line string) {
	if s.echo == nil {
		return
	}
	s.stdoutMu.Lock()
	defer s.stdoutMu.Unlock()
	s.echo(line)
}

// AddProcess admits p to the back of the ready queue under the lock and
// wakes one waiting worker.
func (s *Scheduler) AddProcess(p *process.Process) {
	s.mu.Lock()
	s.ready = append(s.ready, p)
	s.mu.Unlock()
	s.cond.Signal()
}

// Get returns a live pointer to the named process for single-threaded
// callers (e.g. the shell's own goroutine), scanning running, ready, then
// finished, in that order.
func (s *Scheduler) Get(name string) (*process.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.running {
		if p.Name == name {
			return p, nil
		}
	}
	for _, p := range s.ready {
		if p.Name == name {
			return p, nil
		}
	}
	for _, e := range s.finished {
		if e.Proc.Name == name {
			return e.Proc, nil
		}
	}
	return nil, ErrProcessNotFound
}

// ProcessView is a deep-copy-safe snapshot of one process's externally
// visible fields, safe to read without holding the scheduler lock.
type ProcessView struct {
	Name          string
	PID           uint64
	Created       time.Time
	AssignedCore  int
	CurrentLine   int
	ExecutedLines uint64
	TotalLine     uint64
	Finished      bool
	Status        string // "Waiting", "Running", or "Finished"
}

// Snapshot returns a consistent copy of the named process's fields taken
// under the lock, suitable for concurrent readers (process-smi).
func (s *Scheduler) Snapshot(name string) (ProcessView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for p := range s.running {
		if p.Name == name {
			return viewOf(p, "Running"), nil
		}
	}
	for _, p := range s.ready {
		if p.Name == name {
			return viewOf(p, "Waiting"), nil
		}
	}
	for _, e := range s.finished {
		if e.Proc.Name == name {
			return viewOf(e.Proc, "Finished"), nil
		}
	}
	return ProcessView{}, ErrProcessNotFound
}

func viewOf(p *process.Process, status string) ProcessView {
	return ProcessView{
		Name:          p.Name,
		PID:           p.PID,
		Created:       p.Created,
		AssignedCore:  p.AssignedCore,
		CurrentLine:   p.CurrentLine,
		ExecutedLines: p.ExecutedLines,
		TotalLine:     p.TotalLine,
		Finished:      p.Finished(),
		Status:        status,
	}
}

// Listing returns consistent snapshots of every waiting, running, and
// finished process, in that order within each group.
func (s *Scheduler) Listing() (waiting, running, finishedList []ProcessView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.ready {
		waiting = append(waiting, viewOf(p, "Waiting"))
	}
	for p := range s.running {
		running = append(running, viewOf(p, "Running"))
	}
	for _, e := range s.finished {
		finishedList = append(finishedList, viewOf(e.Proc, "Finished"))
	}
	return
}

// KnownNames reports every process name currently tracked, across all
// three lists, for the batch generator's collision check.
func (s *Scheduler) KnownNames() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.ready)+len(s.running)+len(s.finished))
	for _, p := range s.ready {
		out[p.Name] = struct{}{}
	}
	for p := range s.running {
		out[p.Name] = struct{}{}
	}
	for _, e := range s.finished {
		out[e.Proc.Name] = struct{}{}
	}
	return out
}

// Counters exposes the atomic utilisation/tick counters for the reporter.
type Counters struct {
	CoresInUse     int64
	NumCPU         int
	IdleCPUTicks   int64
	ActiveCPUTicks int64
}

func (s *Scheduler) Counters() Counters {
	return Counters{
		CoresInUse:     atomic.LoadInt64(&s.coresInUse),
		NumCPU:         s.cfg.NumCPU,
		IdleCPUTicks:   atomic.LoadInt64(&s.idleCPUTicks),
		ActiveCPUTicks: atomic.LoadInt64(&s.activeCPUTicks),
	}
}

// Run launches the worker pool; it returns immediately, the workers run
// in the background until Stop is called. A second Run before Stop
// returns errAlreadyRunning and changes nothing.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errAlreadyRunning
	}
	s.started = true
	s.shuttingDown = false
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	s.group = g

	for i := 1; i <= s.cfg.NumCPU; i++ {
		coreID := i
		g.Go(func() error {
			s.workerLoop(gctx, coreID)
			return nil
		})
	}
	return nil
}

// Stop sets the shutdown flag, wakes every waiting worker, and blocks
// until all workers have exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()
	s.cond.Broadcast()
	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		s.group.Wait()
	}
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func (s *Scheduler) workerLoop(ctx context.Context, coreID int) {
	for {
		s.mu.Lock()
		for len(s.ready) == 0 && !s.shuttingDown {
			atomic.AddInt64(&s.idleCPUTicks, 1)
			waitWithTimeout(s.cond, time.Duration(s.cfg.DelaysPerExec)*time.Millisecond)
			if len(s.ready) > 0 || s.shuttingDown {
				break
			}
		}
		if len(s.ready) == 0 && s.shuttingDown {
			s.mu.Unlock()
			return
		}

		p := s.ready[0]
		s.ready = s.ready[1:]

		if s.mem != nil {
			if !s.mem.EnsureResident(p.Name, p.MemSize) {
				s.ready = append(s.ready, p)
				s.mu.Unlock()
				continue
			}
		}

		p.AssignedCore = coreID
		s.running[p] = struct{}{}
		atomic.AddInt64(&s.coresInUse, 1)
		s.mu.Unlock()

		s.runSlice(ctx, p, coreID)

		s.mu.Lock()
		delete(s.running, p)
		atomic.AddInt64(&s.coresInUse, -1)
		s.flushOutput(p)

		done := p.Finished() && p.PendingSleep == 0
		if done {
			if s.mem != nil {
				s.mem.Release(p.Name)
			}
			s.finished = append(s.finished, finishedEntry{Proc: p, CoreID: coreID})
		} else {
			p.AssignedCore = -1
			s.ready = append(s.ready, p)
		}
		s.mu.Unlock()
		s.cond.Broadcast()
	}
}

// sliceLimit returns the number of ticks this dispatch is allowed: for
// FCFS, effectively unlimited; for RR, max(1, quantum_cycles).
func (s *Scheduler) sliceLimit() uint32 {
	if s.cfg.Policy == FCFS {
		return ^uint32(0)
	}
	if s.cfg.QuantumCycles < 1 {
		return 1
	}
	return s.cfg.QuantumCycles
}

func (s *Scheduler) runSlice(ctx context.Context, p *process.Process, coreID int) {
	limit := s.sliceLimit()
	ictx := interp.Context{
		CoreID:        coreID,
		DelaysPerExec: s.cfg.DelaysPerExec,
		Mem:           s.mem,
		AttachedPID:   s.attached,
		Echo:          s.shellEcho,
	}

	var ticks uint32
	for ticks < limit {
		select {
		case <-ctx.Done():
			return
		default:
		}

		outcome := interp.Step(p, ictx)
		ticks++
		atomic.AddInt64(&s.activeCPUTicks, 1)
		s.maybeSnapshot()

		switch outcome {
		case interp.Finished, interp.Violated, interp.SliceEnded:
			return
		case interp.Continue:
			// keep going until the slice limit
		}
	}
}

// maybeSnapshot advances the shared tick counter and triggers a memory
// snapshot every quantum_cycles ticks, matching spec.md §4.E's "every
// quantum_cycles ticks it also triggers a contiguous-memory snapshot
// (no-op in paged mode)". curQuantum is shared and advanced by whichever
// core's tick crosses the boundary, since the counter is a single
// system-wide cadence, not a per-core one.
func (s *Scheduler) maybeSnapshot() {
	if s.mem == nil || s.cfg.QuantumCycles == 0 {
		return
	}
	n := atomic.AddInt64(&s.curQuantum, 1)
	if uint32(n)%s.cfg.QuantumCycles == 0 {
		s.mem.Snapshot()
	}
}

// flushOutput appends p's buffered log lines to <name>.txt and clears the
// buffer. Called with s.mu held, after the process leaves running.
func (s *Scheduler) flushOutput(p *process.Process) {
	if len(p.Output) == 0 {
		return
	}
	path := fmt.Sprintf("%s/%s.txt", s.cfg.LogDir, p.Name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		p.Output = nil
		return
	}
	defer f.Close()
	for _, line := range p.Output {
		fmt.Fprintln(f, line)
	}
	p.Output = nil
}

// waitWithTimeout waits on cond for at most d, re-acquiring mu before
// returning (matching sync.Cond.Wait's contract). Used so idle workers
// can periodically re-check the shutdown flag, per spec.md §4.F step 1.
func waitWithTimeout(cond *sync.Cond, d time.Duration) {
	if d <= 0 {
		d = time.Millisecond
	}
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}
