package report

import (
	"strings"
	"testing"
	"time"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/memory"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/scheduler"
)

func TestUtilisationStringFormat(t *testing.T) {
	c := scheduler.Counters{CoresInUse: 1, NumCPU: 2}
	got := UtilisationString(c)
	if !strings.Contains(got, "50.0%") {
		t.Errorf("UtilisationString = %q, want to contain 50.0%%", got)
	}
}

func TestVMStatStringIncludesCounters(t *testing.T) {
	c := scheduler.Counters{IdleCPUTicks: 5, ActiveCPUTicks: 10}
	mem := memory.Report{TotalBytes: 1024, UsedBytes: 256, PagesPagedIn: 3, PagesPagedOut: 1}
	got := VMStatString(c, mem)
	for _, want := range []string{"1024", "256", "768", "15", "3", "1"} {
		if !strings.Contains(got, want) {
			t.Errorf("VMStatString missing %q in:\n%s", want, got)
		}
	}
}

func TestListingTableFinishedProgressPinned(t *testing.T) {
	finished := []scheduler.ProcessView{
		{Name: "process1", AssignedCore: 0, ExecutedLines: 3, TotalLine: 10, Status: "Finished", Created: time.Now()},
	}
	out := string(ListingTable(nil, nil, finished))
	if !strings.Contains(out, "10 / 10") {
		t.Errorf("expected finished progress pinned to total_line, got:\n%s", out)
	}
}

func TestProcessSMIFieldsPresent(t *testing.T) {
	v := scheduler.ProcessView{Name: "process1", PID: 7, AssignedCore: -1, ExecutedLines: 2, TotalLine: 5, Status: "Waiting"}
	out := ProcessSMI(v)
	for _, want := range []string{"process1", "7", "N/A", "2 / 5", "Waiting"} {
		if !strings.Contains(out, want) {
			t.Errorf("ProcessSMI missing %q in:\n%s", want, out)
		}
	}
}
