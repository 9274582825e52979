// Package batch implements the process generator: on scheduler-start it
// synthesises random programs at a fixed interval and admits them,
// stopping cleanly on scheduler-stop. Grounded on the enrichment pack's
// ticker-driven sampling loop (ja7ad-consumption's cmd/consumption) and
// the teacher's ticker-based main loop, since the teacher itself never
// needs randomness.
package batch

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/apperr"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/inst"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/process"
)

// Admitter is the subset of scheduler.Scheduler the generator depends on,
// kept as an interface so tests don't need a live scheduler.
type Admitter interface {
	AddProcess(p *process.Process)
	KnownNames() map[string]struct{}
}

// Config bundles the batch-generation tunables.
type Config struct {
	BatchProcessFreq uint32 // interval multiplier
	DelaysPerExec    int    // ms, combines with BatchProcessFreq for the interval
	MinIns           int
	MaxIns           int
	MemPerProc       uint32
}

// PIDCounter is a mutex-guarded monotonic counter shared by every PID
// admission path (screen -s and the batch generator), so a
// scheduler-start goroutine ticking concurrently with a screen -s call
// can never hand out the same PID twice, per spec.md §8's "PIDs and
// names are unique" invariant.
type PIDCounter struct {
	mu   sync.Mutex
	next uint64
}

// NewPIDCounter constructs a counter that hands out start, start+1, ...
func NewPIDCounter(start uint64) *PIDCounter {
	return &PIDCounter{next: start}
}

// Take returns the next PID.
func (c *PIDCounter) Take() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	pid := c.next
	c.next++
	return pid
}

// TakeNamed returns the next PID along with the first name of the form
// process<pid> for which taken reports false, holding the lock across
// the whole probe-and-commit so a concurrent Take/TakeNamed can't
// observe or claim the same PID in between.
func (c *PIDCounter) TakeNamed(taken func(name string) bool) (pid uint64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	candidate := c.next
	for {
		name = fmt.Sprintf("process%d", candidate)
		if !taken(name) {
			c.next = candidate + 1
			return candidate, name
		}
		candidate++
	}
}

// Generator periodically synthesises and admits processes.
type Generator struct {
	cfg   Config
	admit Admitter
	pids  *PIDCounter // shared PID counter, owned by the caller (engine)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New constructs a Generator. pids must be shared with every other PID
// source (screen -s, etc.) so PIDs stay globally unique and
// monotonically increasing even under concurrent admission.
func New(cfg Config, admit Admitter, pids *PIDCounter) *Generator {
	return &Generator{cfg: cfg, admit: admit, pids: pids}
}

// Start launches the generator goroutine. A second Start before Stop
// returns apperr.ErrDuplicateSchedulerStart and changes nothing.
func (g *Generator) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return apperr.ErrDuplicateSchedulerStart
	}
	g.running = true
	g.stop = make(chan struct{})
	g.done = make(chan struct{})

	interval := time.Duration(g.cfg.BatchProcessFreq) * time.Duration(g.cfg.DelaysPerExec) * time.Millisecond
	if interval <= 0 {
		interval = time.Millisecond
	}

	go g.run(interval, g.stop, g.done)
	return nil
}

// Stop signals the generator goroutine and joins it. Calling Stop when
// not running is a no-op.
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	stop, done := g.stop, g.done
	g.running = false
	g.mu.Unlock()

	close(stop)
	<-done
}

func (g *Generator) run(interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *Generator) tick() {
	known := g.admit.KnownNames()
	pid, name := g.pids.TakeNamed(func(n string) bool {
		_, taken := known[n]
		return taken
	})
	program := g.synthesize()

	p := process.New(pid, name, g.cfg.MemPerProc, program, inst.LogicalSize(program), time.Now())
	g.admit.AddProcess(p)
}

// synthesize builds a random program: a leaf mix of PRINT/DECLARE/ADD/
// SUBTRACT/SLEEP with occasional nested FOR up to depth 3.
func (g *Generator) synthesize() []inst.Instruction {
	return RandomProgram(g.cfg.MinIns, g.cfg.MaxIns)
}

// RandomProgram builds a random program sized within [minIns, maxIns],
// the same synthesis the generator uses on each tick. Exported so
// screen -s can construct a process's program the same way spec.md §4.B
// says both admission paths do ("constructed by the batch generator or
// by screen -s").
func RandomProgram(minIns, maxIns int) []inst.Instruction {
	count := minIns
	if maxIns > minIns {
		count += rand.Intn(maxIns-minIns+1)
	}
	return synthesizeBody(count, 0)
}

func synthesizeBody(count, depth int) []inst.Instruction {
	body := make([]inst.Instruction, 0, count)
	for i := 0; i < count; i++ {
		body = append(body, randomLeaf(depth))
	}
	return body
}

func randomLeaf(depth int) inst.Instruction {
	choices := 5
	if depth < process.MaxLoopDepth {
		choices = 6 // allow FOR until depth is exhausted
	}
	switch rand.Intn(choices) {
	case 0:
		return inst.Print("value: ", "x")
	case 1:
		return inst.Declare(randomVarName(), uint16(rand.Intn(100)))
	case 2:
		return inst.Add(randomVarName(), inst.Var("x"), inst.Lit(rand.Intn(10)))
	case 3:
		return inst.Subtract(randomVarName(), inst.Var("x"), inst.Lit(rand.Intn(10)))
	case 4:
		return inst.Sleep(uint8(rand.Intn(5)))
	default:
		bodySize := 1 + rand.Intn(3)
		return inst.For(synthesizeBody(bodySize, depth+1), uint32(1+rand.Intn(3)))
	}
}

func randomVarName() string {
	letters := "abcdefghijklmnopqrstuvwxyz"
	return string(letters[rand.Intn(len(letters))])
}
