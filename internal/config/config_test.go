package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/apperr"
)

const validDoc = `
# sample configuration
num-cpu=4
scheduler=rr
quantum-cycles=5
batch-process-freq=1
min-ins=1000
max-ins=2000
delays-per-exec=0
max-overall-mem=16384
mem-per-frame=16
mem-per-proc=4096
`

func TestParseValidDocument(t *testing.T) {
	cfg, err := Parse(strings.NewReader(validDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.NumCPU != 4 {
		t.Errorf("NumCPU = %d, want 4", cfg.NumCPU)
	}
	if cfg.Scheduler != RoundRobin {
		t.Errorf("Scheduler = %q, want rr", cfg.Scheduler)
	}
	if cfg.DelaysPerExec != 1 {
		t.Errorf("DelaysPerExec = %d, want 1 (one added on load)", cfg.DelaysPerExec)
	}
	if cfg.MaxOverallMem != 16384 || cfg.MemPerFrame != 16 || cfg.MemPerProc != 4096 {
		t.Errorf("memory fields = %+v", cfg)
	}
}

func TestParseIgnoresCommentsAndBlankLines(t *testing.T) {
	doc := "\n# comment\n\nnum-cpu 2\nscheduler fcfs\nquantum-cycles 1\nbatch-process-freq 1\n" +
		"min-ins 1\nmax-ins 1\ndelays-per-exec 0\nmax-overall-mem 64\nmem-per-frame 64\nmem-per-proc 64\n"
	cfg, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.NumCPU != 2 || cfg.Scheduler != FCFS {
		t.Errorf("got %+v", cfg)
	}
}

func TestParseRejectsBadSchedulerName(t *testing.T) {
	doc := strings.Replace(validDoc, "scheduler=rr", "scheduler=round-robin", 1)
	_, err := Parse(strings.NewReader(doc))
	if !errors.Is(err, apperr.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestParseRejectsNonPowerOfTwoFrame(t *testing.T) {
	doc := strings.Replace(validDoc, "mem-per-frame=16", "mem-per-frame=17", 1)
	_, err := Parse(strings.NewReader(doc))
	if !errors.Is(err, apperr.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestParseRejectsMemPerProcOutOfRange(t *testing.T) {
	doc := strings.Replace(validDoc, "mem-per-proc=4096", "mem-per-proc=32", 1)
	_, err := Parse(strings.NewReader(doc))
	if !errors.Is(err, apperr.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestParseRejectsMisorderedInsRange(t *testing.T) {
	doc := strings.Replace(validDoc, "min-ins=1000", "min-ins=9999", 1)
	_, err := Parse(strings.NewReader(doc))
	if !errors.Is(err, apperr.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestParseRejectsMissingMemoryKey(t *testing.T) {
	doc := strings.Replace(validDoc, "mem-per-frame=16\n", "", 1)
	_, err := Parse(strings.NewReader(doc))
	if !errors.Is(err, apperr.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestParseUnknownKeysIgnored(t *testing.T) {
	doc := validDoc + "\nsome-future-key=123\n"
	cfg, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.NumCPU != 4 {
		t.Errorf("unexpected effect from unknown key: %+v", cfg)
	}
}

func TestMemoryModeDefaultsToPaged(t *testing.T) {
	cfg, err := Parse(strings.NewReader(validDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MemoryMode != Paged {
		t.Errorf("MemoryMode = %q, want paged", cfg.MemoryMode)
	}
}

func TestMemoryModeContiguous(t *testing.T) {
	doc := validDoc + "\nmemory-mode=contiguous\n"
	cfg, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MemoryMode != Contiguous {
		t.Errorf("MemoryMode = %q, want contiguous", cfg.MemoryMode)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.txt")
	if !errors.Is(err, apperr.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}
