// Package report renders utilisation, ps-style, and vmstat-style output,
// plus the csopesy-log.txt file. Table rendering is grounded on the
// enrichment pack's tablewriter usage (arctir-proctor's createTable*
// helpers); percentage/tick formatting follows ja7ad-consumption's
// accumulator style.
package report

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/memory"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/scheduler"
)

// UtilisationString computes the `100 * cores_in_use / num_cpu` line with
// one decimal place, followed by used/available core counts.
func UtilisationString(c scheduler.Counters) string {
	pct := 0.0
	if c.NumCPU > 0 {
		pct = 100 * float64(c.CoresInUse) / float64(c.NumCPU)
	}
	return fmt.Sprintf("CPU utilization: %.1f%%\nCores used: %d\nCores available: %d",
		pct, c.CoresInUse, int64(c.NumCPU)-c.CoresInUse)
}

// VMStatString renders the memory/tick/page counters block.
func VMStatString(c scheduler.Counters, mem memory.Report) string {
	total := int64(c.IdleCPUTicks + c.ActiveCPUTicks)
	return fmt.Sprintf(
		"Total memory: %d bytes\nUsed memory: %d bytes\nFree memory: %d bytes\n"+
			"Idle cpu ticks: %d\nActive cpu ticks: %d\nTotal cpu ticks: %d\n"+
			"Pages paged in: %d\nPages paged out: %d",
		mem.TotalBytes, mem.UsedBytes, mem.TotalBytes-mem.UsedBytes,
		c.IdleCPUTicks, c.ActiveCPUTicks, total,
		mem.PagesPagedIn, mem.PagesPagedOut,
	)
}

// processRow is one ps-style listing row, built from a scheduler.ProcessView.
type processRow struct {
	name, created, core, progress, status string
}

func rowOf(v scheduler.ProcessView) processRow {
	core := "N/A"
	if v.AssignedCore >= 0 {
		core = strconv.Itoa(v.AssignedCore)
	}
	return processRow{
		name:     v.Name,
		created:  v.Created.Format("01/02/2006 03:04:05PM"),
		core:     core,
		progress: fmt.Sprintf("%d / %d", v.ExecutedLines, v.TotalLine),
		status:   v.Status,
	}
}

// ListingTable renders waiting/running/finished views as one tablewriter
// table, matching the tabular style screen -ls and report-util share.
func ListingTable(waiting, running, finished []scheduler.ProcessView) []byte {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Name", "Created", "Core", "Progress", "Status"})

	for _, v := range waiting {
		r := rowOf(v)
		table.Append([]string{r.name, r.created, r.core, r.progress, r.status})
	}
	for _, v := range running {
		r := rowOf(v)
		table.Append([]string{r.name, r.created, r.core, r.progress, r.status})
	}
	for _, v := range finished {
		r := rowOf(v)
		// Finished processes pin progress at total_line per spec.
		r.progress = fmt.Sprintf("%d / %d", v.TotalLine, v.TotalLine)
		table.Append([]string{r.name, r.created, r.core, r.progress, r.status})
	}

	table.Render()
	return buf.Bytes()
}

// ProcessSMI renders the single fixed-border process card: Name, PID,
// Assigned Core, Progress, Status.
func ProcessSMI(v scheduler.ProcessView) string {
	core := "N/A"
	if v.AssignedCore >= 0 {
		core = strconv.Itoa(v.AssignedCore)
	}
	return fmt.Sprintf(
		"+------------------------------+\n"+
			"Name:           %s\n"+
			"PID:            %d\n"+
			"Assigned Core:  %s\n"+
			"Progress:       %d / %d\n"+
			"Status:         %s\n"+
			"+------------------------------+",
		v.Name, v.PID, core, v.ExecutedLines, v.TotalLine, v.Status,
	)
}

// WriteLogFile writes csopesy-log.txt in the same format as screen -ls:
// a utilisation block followed by the waiting/running/finished listing.
func WriteLogFile(path string, c scheduler.Counters, waiting, running, finished []scheduler.ProcessView) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(f, UtilisationString(c))
	fmt.Fprintln(f)
	f.Write(ListingTable(waiting, running, finished))
	return nil
}
