package process

import (
	"testing"
	"time"
)

func newTestProcess() *Process {
	return New(1, "process01", 128, nil, 0, time.Now())
}

func TestVariableCapIgnoresExcess(t *testing.T) {
	p := newTestProcess()
	for i := 0; i < MaxVariables+5; i++ {
		p.SetVar(string(rune('a'+i%26))+string(rune(i)), uint16(i))
	}
	if len(p.Vars) != MaxVariables {
		t.Errorf("len(Vars) = %d, want %d", len(p.Vars), MaxVariables)
	}
}

func TestVariableUpdateAllowedPastCap(t *testing.T) {
	p := newTestProcess()
	for i := 0; i < MaxVariables; i++ {
		p.SetVar(string(rune('a'+i)), uint16(i))
	}
	p.SetVar("a", 999)
	if got := p.GetVar("a"); got != 999 {
		t.Errorf("GetVar(a) = %d, want 999", got)
	}
}

func TestMissingVariableDefaultsZero(t *testing.T) {
	p := newTestProcess()
	if got := p.GetVar("nope"); got != 0 {
		t.Errorf("GetVar(nope) = %d, want 0", got)
	}
}

func TestFinishIsSticky(t *testing.T) {
	p := newTestProcess()
	p.Finish()
	if !p.Finished() {
		t.Fatal("expected Finished() after Finish()")
	}
	// finishing again, or violating after, must not clear it
	p.Violate()
	if !p.Finished() {
		t.Fatal("Finished() must remain set")
	}
	if !p.Violated() {
		t.Fatal("expected Violated() after Violate()")
	}
}

func TestLoopStackPushPop(t *testing.T) {
	p := newTestProcess()
	if p.LoopDepth() != 0 {
		t.Fatalf("fresh process should have loop depth 0, got %d", p.LoopDepth())
	}
	p.PushLoop(LoopFrame{Start: 1, End: 3, Remaining: 2})
	if p.LoopDepth() != 1 {
		t.Fatalf("loop depth = %d, want 1", p.LoopDepth())
	}
	top, ok := p.TopLoop()
	if !ok || top.Remaining != 2 {
		t.Fatalf("TopLoop = %+v, ok=%v", top, ok)
	}
	p.PopLoop()
	if p.LoopDepth() != 0 {
		t.Fatalf("loop depth after pop = %d, want 0", p.LoopDepth())
	}
}

func TestAdjustOuterLoopEnds(t *testing.T) {
	p := newTestProcess()
	p.PushLoop(LoopFrame{Start: 0, End: 5})
	p.AdjustOuterLoopEnds(2, 3)
	top, _ := p.TopLoop()
	if top.End != 8 {
		t.Errorf("End = %d, want 8", top.End)
	}
}
