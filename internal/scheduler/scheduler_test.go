package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/inst"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/process"
)

func newProc(pid uint64, name string, program []inst.Instruction) *process.Process {
	return process.New(pid, name, 128, program, inst.LogicalSize(program), time.Now())
}

func TestFCFSOrderingSingleWorker(t *testing.T) {
	cfg := Config{NumCPU: 1, Policy: FCFS, DelaysPerExec: 0, LogDir: t.TempDir()}
	s := New(cfg, nil, nil)

	p1 := newProc(1, "process1", []inst.Instruction{inst.Declare("x", 1)})
	p2 := newProc(2, "process2", []inst.Instruction{inst.Declare("x", 2)})
	s.AddProcess(p1)
	s.AddProcess(p2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Run(ctx))

	require.Eventually(t, func() bool {
		_, _, fin := s.Listing()
		return len(fin) == 2
	}, 2*time.Second, 5*time.Millisecond)

	_, _, fin := s.Listing()
	require.Equal(t, "process1", fin[0].Name)
	require.Equal(t, "process2", fin[1].Name)

	s.Stop()
}

func TestRoundRobinQuantumBound(t *testing.T) {
	cfg := Config{NumCPU: 1, Policy: RoundRobin, QuantumCycles: 2, DelaysPerExec: 0, LogDir: t.TempDir()}
	s := New(cfg, nil, nil)

	program := []inst.Instruction{
		inst.Declare("a", 1),
		inst.Declare("b", 2),
		inst.Declare("c", 3),
		inst.Declare("d", 4),
	}
	p := newProc(1, "process1", program)
	s.AddProcess(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Run(ctx))

	require.Eventually(t, func() bool {
		_, _, fin := s.Listing()
		return len(fin) == 1
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	require.Equal(t, uint64(4), p.ExecutedLines)
}

func TestDuplicateRunRejected(t *testing.T) {
	cfg := Config{NumCPU: 1, Policy: FCFS, DelaysPerExec: 0, LogDir: t.TempDir()}
	s := New(cfg, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Run(ctx))
	require.Error(t, s.Run(ctx))
	s.Stop()
}

func TestSnapshotNotFound(t *testing.T) {
	cfg := Config{NumCPU: 1, Policy: FCFS, DelaysPerExec: 0, LogDir: t.TempDir()}
	s := New(cfg, nil, nil)
	_, err := s.Snapshot("ghost")
	require.ErrorIs(t, err, ErrProcessNotFound)
}
