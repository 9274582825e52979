package shell

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	doc := `num-cpu=2
scheduler=fcfs
quantum-cycles=5
batch-process-freq=1
min-ins=1
max-ins=2
delays-per-exec=0
max-overall-mem=1024
mem-per-frame=64
mem-per-proc=64
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestCommandsBeforeInitializeReportNotInitialised(t *testing.T) {
	var out bytes.Buffer
	s := New(strings.NewReader("vmstat\n"), &out, "unused.txt")
	s.Run()
	if !strings.Contains(out.String(), "not initialised") {
		t.Errorf("expected not-initialised message, got:\n%s", out.String())
	}
}

func TestInitializeThenScreenStartAndList(t *testing.T) {
	path := writeTestConfig(t)
	var out bytes.Buffer
	input := "initialize\nscreen -s myproc\nexit\nscreen -ls\n"
	s := New(strings.NewReader(input), &out, path)
	s.Run()
	if !strings.Contains(out.String(), "scheduler initialized") {
		t.Errorf("expected initialization message, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "attached to myproc") {
		t.Errorf("expected screen attach message, got:\n%s", out.String())
	}
}

func TestNormalizeScreenFlagsRewritesLs(t *testing.T) {
	fields := []string{"screen", "-ls"}
	normalizeScreenFlags(fields)
	if fields[1] != "--ls" {
		t.Errorf("fields[1] = %q, want --ls", fields[1])
	}
}

func TestNormalizeScreenFlagsLeavesOtherCommandsAlone(t *testing.T) {
	fields := []string{"vmstat"}
	normalizeScreenFlags(fields)
	if fields[0] != "vmstat" {
		t.Errorf("fields mutated unexpectedly: %v", fields)
	}
}
