package batch

import (
	"sync"
	"testing"
	"time"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/process"
)

type fakeAdmitter struct {
	mu    sync.Mutex
	procs []*process.Process
}

func (f *fakeAdmitter) AddProcess(p *process.Process) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs = append(f.procs, p)
}

func (f *fakeAdmitter) KnownNames() map[string]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{}, len(f.procs))
	for _, p := range f.procs {
		out[p.Name] = struct{}{}
	}
	return out
}

func (f *fakeAdmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.procs)
}

func TestGeneratorAdmitsDistinctNames(t *testing.T) {
	admitter := &fakeAdmitter{}
	pids := NewPIDCounter(1)
	cfg := Config{BatchProcessFreq: 1, DelaysPerExec: 5, MinIns: 1, MaxIns: 3, MemPerProc: 64}
	g := New(cfg, admitter, pids)

	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer g.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for admitter.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if admitter.count() < 3 {
		t.Fatalf("expected at least 3 admitted processes, got %d", admitter.count())
	}

	seen := make(map[string]bool)
	var lastPID uint64
	for _, p := range admitter.procs {
		if seen[p.Name] {
			t.Fatalf("duplicate process name %s", p.Name)
		}
		seen[p.Name] = true
		if p.PID <= lastPID {
			t.Fatalf("PIDs must be monotonically increasing, got %d after %d", p.PID, lastPID)
		}
		lastPID = p.PID
	}
}

func TestDuplicateStartRejected(t *testing.T) {
	admitter := &fakeAdmitter{}
	pids := NewPIDCounter(1)
	cfg := Config{BatchProcessFreq: 1, DelaysPerExec: 1000, MinIns: 1, MaxIns: 1, MemPerProc: 64}
	g := New(cfg, admitter, pids)

	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer g.Stop()

	if err := g.Start(); err == nil {
		t.Fatal("expected second Start to fail")
	}
}
