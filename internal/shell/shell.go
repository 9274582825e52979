// Package shell implements the REPL façade spec.md §6 describes:
// initialize, screen -s/-r/-ls, scheduler-start/-stop, report-util,
// vmstat, clear, exit, plus a debug command supplementing
// original_source/'s scattered debug prints. Grounded on
// arctir-proctor's cobra/pflag command tree, re-dispatched per input
// line instead of once per process invocation.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/nsf/termbox-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/apperr"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/batch"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/config"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/engine"
	"github.com/Subprograms/OpesyWithOppenheimer/internal/report"
)

// Shell owns the REPL's stdin loop and the lazily-built Engine.
type Shell struct {
	out io.Writer
	in  *bufio.Scanner

	eng        *engine.Engine
	configPath string
}

// New constructs a Shell reading lines from in and writing to out.
// configPath is the file `initialize` loads.
func New(in io.Reader, out io.Writer, configPath string) *Shell {
	return &Shell{out: out, in: bufio.NewScanner(in), configPath: configPath}
}

// Banner prints the CSOPESY header, sized to the real terminal width
// when stdout is a TTY, falling back to 80 columns otherwise.
func (s *Shell) Banner() {
	width := 80
	if w, _, err := term.GetSize(1); err == nil && w > 0 {
		width = w
	}
	bar := strings.Repeat("=", width)
	fmt.Fprintln(s.out, bar)
	fmt.Fprintln(s.out, "CSOPESY — multi-core process emulator")
	fmt.Fprintln(s.out, `Type "initialize" to begin, "exit" to quit.`)
	fmt.Fprintln(s.out, bar)
}

// Run reads and dispatches lines until "exit" or EOF.
func (s *Shell) Run() {
	for {
		fmt.Fprint(s.out, "root:\\> ")
		if !s.in.Scan() {
			return
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		if s.dispatch(line) {
			return
		}
	}
}

// dispatch re-enters the cobra tree for one line, returning true when
// the shell should stop (the exit command).
func (s *Shell) dispatch(line string) (stop bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	if fields[0] == "exit" {
		return true
	}

	normalizeScreenFlags(fields)

	// A fresh command tree per line, rather than one long-lived root,
	// since pflag flag values persist across Execute calls and a REPL
	// must not leak one command's flags into the next.
	root := s.buildRoot()
	root.SetArgs(fields)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(s.out, "error: %s\n", err)
	}
	return false
}

// normalizeScreenFlags rewrites the historical single-dash "-ls"
// spelling into pflag's required "--ls" long-flag form; "-s"/"-r" are
// already valid single-rune shorthands and pass through untouched.
func normalizeScreenFlags(fields []string) {
	if len(fields) == 0 || fields[0] != "screen" {
		return
	}
	for i, f := range fields[1:] {
		if f == "-ls" {
			fields[i+1] = "--ls"
		}
	}
}

func (s *Shell) requireEngine() error {
	if s.eng == nil {
		return apperr.ErrSchedulerNotInitialised
	}
	return nil
}

func (s *Shell) buildRoot() *cobra.Command {
	root := &cobra.Command{Use: "root", SilenceUsage: true, SilenceErrors: true}

	initCmd := &cobra.Command{
		Use:   "initialize",
		Short: "Load the configuration file and build the scheduler.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(s.configPath)
			if err != nil {
				fmt.Fprintf(s.out, "configuration invalid: %s\n", err)
				return nil
			}
			s.eng = engine.New(cfg, func(line string) { fmt.Fprintln(s.out, line) })
			s.eng.Start()
			fmt.Fprintln(s.out, "scheduler initialized.")
			return nil
		},
	}

	var screenStart, screenReattach string
	var screenList bool
	screenCmd := &cobra.Command{
		Use:   "screen",
		Short: "Create, reattach to, or list process screens.",
		RunE:  s.runScreen(&screenStart, &screenReattach, &screenList),
	}
	var screenFlags *pflag.FlagSet = screenCmd.Flags()
	screenFlags.StringVarP(&screenStart, "start", "s", "", "create a new process screen")
	screenFlags.StringVarP(&screenReattach, "reattach", "r", "", "reattach to an existing process screen")
	// "ls" is two runes, so it cannot be a POSIX shorthand; dispatch
	// rewrites the single-dash "-ls" spelling to "--ls" before Execute.
	screenFlags.BoolVar(&screenList, "ls", false, "print the process listing")

	schedStart := &cobra.Command{
		Use:   "scheduler-start",
		Short: "Enable the batch process generator.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireEngine(); err != nil {
				fmt.Fprintln(s.out, "scheduler not initialised; run initialize first.")
				return nil
			}
			if err := s.eng.StartBatch(); err != nil {
				fmt.Fprintln(s.out, "scheduler-start: already running, ignored.")
			}
			return nil
		},
	}

	schedStop := &cobra.Command{
		Use:   "scheduler-stop",
		Short: "Disable the batch process generator.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireEngine(); err != nil {
				fmt.Fprintln(s.out, "scheduler not initialised; run initialize first.")
				return nil
			}
			s.eng.StopBatch()
			return nil
		},
	}

	reportUtil := &cobra.Command{
		Use:   "report-util",
		Short: "Write csopesy-log.txt with the current utilisation and listing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireEngine(); err != nil {
				fmt.Fprintln(s.out, "scheduler not initialised; run initialize first.")
				return nil
			}
			waiting, running, finished := s.eng.Sch.Listing()
			if err := report.WriteLogFile("csopesy-log.txt", s.eng.Sch.Counters(), waiting, running, finished); err != nil {
				fmt.Fprintf(s.out, "report-util: %s\n", err)
				return nil
			}
			fmt.Fprintln(s.out, "report written to csopesy-log.txt")
			return nil
		},
	}

	vmstat := &cobra.Command{
		Use:   "vmstat",
		Short: "Print memory and tick counters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireEngine(); err != nil {
				fmt.Fprintln(s.out, "scheduler not initialised; run initialize first.")
				return nil
			}
			counters, mem := s.eng.VMStatReport()
			fmt.Fprintln(s.out, report.VMStatString(counters, mem))
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Clear the terminal and redraw the banner.",
		RunE: func(cmd *cobra.Command, args []string) error {
			clearScreen()
			s.Banner()
			return nil
		},
	}

	debugCmd := &cobra.Command{
		Use:   "debug <name>",
		Short: "Dump a process's full internal state for troubleshooting.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireEngine(); err != nil {
				fmt.Fprintln(s.out, "scheduler not initialised; run initialize first.")
				return nil
			}
			if len(args) == 0 {
				fmt.Fprintln(s.out, "usage: debug <name>")
				return nil
			}
			p, err := s.eng.Sch.Get(args[0])
			if err != nil {
				fmt.Fprintf(s.out, "process %s not found\n", args[0])
				return nil
			}
			fmt.Fprint(s.out, spew.Sdump(p))
			return nil
		},
	}

	root.AddCommand(initCmd, screenCmd, schedStart, schedStop, reportUtil, vmstat, clear, debugCmd)
	return root
}

func (s *Shell) runScreen(start, reattach *string, list *bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := s.requireEngine(); err != nil {
			fmt.Fprintln(s.out, "scheduler not initialised; run initialize first.")
			return nil
		}

		switch {
		case *list:
			waiting, running, finished := s.eng.Sch.Listing()
			fmt.Fprintln(s.out, report.UtilisationString(s.eng.Sch.Counters()))
			s.out.Write(report.ListingTable(waiting, running, finished))
			*list = false
			return nil

		case *start != "":
			name := *start
			*start = ""
			if _, err := s.eng.Sch.Get(name); err == nil {
				fmt.Fprintf(s.out, "process %s already exists.\n", name)
				return nil
			}
			program := batch.RandomProgram(s.eng.Cfg.MinIns, s.eng.Cfg.MaxIns)
			p := s.eng.SpawnNamed(name, program)
			s.openInnerPrompt(p.PID, name)
			return nil

		case *reattach != "":
			name := *reattach
			*reattach = ""
			p, err := s.eng.Sch.Get(name)
			if err != nil {
				fmt.Fprintf(s.out, "process %s not found.\n", name)
				return nil
			}
			s.openInnerPrompt(p.PID, name)
			return nil
		}

		fmt.Fprintln(s.out, "usage: screen -s <name> | screen -r <name> | screen -ls")
		return nil
	}
}

// openInnerPrompt attaches pid for PRINT echo, then loops accepting
// process-smi and exit until the user leaves, matching spec.md §6's
// "inner prompt accepting process-smi and exit."
func (s *Shell) openInnerPrompt(pid uint64, name string) {
	s.eng.Attach(pid)
	defer s.eng.Detach()

	fmt.Fprintf(s.out, "-- attached to %s (pid %d); process-smi | exit --\n", name, pid)
	for {
		fmt.Fprintf(s.out, "%s:\\> ", name)
		if !s.in.Scan() {
			return
		}
		switch strings.TrimSpace(s.in.Text()) {
		case "exit":
			return
		case "process-smi":
			view, err := s.eng.Sch.Snapshot(name)
			if err != nil {
				fmt.Fprintln(s.out, "process no longer tracked.")
				return
			}
			fmt.Fprintln(s.out, report.ProcessSMI(view))
		case "":
			// no-op
		default:
			fmt.Fprintln(s.out, `only "process-smi" and "exit" are accepted here.`)
		}
	}
}

// clearScreen clears via termbox (the teacher's own dependency) rather
// than shelling out to an external clear binary.
func clearScreen() {
	if err := termbox.Init(); err != nil {
		return
	}
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	termbox.Sync()
	termbox.Close()
}
