// Package config parses the flat key/value configuration file: one
// key-value pair per line, arbitrary order, unknown keys ignored. No
// third-party parser in the example pack models this shape (cobra/pflag
// are CLI flags, yaml.v3 is a different format entirely), so this one
// ambient concern is plain stdlib -- see DESIGN.md for the justification.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/apperr"
)

// Policy mirrors scheduler.Policy without importing it, keeping config
// parse-only and independent of scheduling internals.
type Policy string

const (
	FCFS       Policy = "fcfs"
	RoundRobin Policy = "rr"
)

// Config is every tunable spec.md §6's configuration table names.
type Config struct {
	NumCPU           int
	Scheduler        Policy
	QuantumCycles    int
	BatchProcessFreq int
	MinIns           int
	MaxIns           int
	DelaysPerExec    int
	MaxOverallMem    uint32
	MemPerFrame      uint32
	MemPerProc       uint32
	MemoryMode       MemoryMode
}

// MemoryMode selects which memory.Manager implementation internal/engine
// wires up: the contiguous first-fit allocator or the demand-paged
// manager. spec.md §9 treats both as a configuration-selected strategy
// behind one façade, so the config file is the natural place to pick.
type MemoryMode string

const (
	Paged      MemoryMode = "paged"
	Contiguous MemoryMode = "contiguous"
)

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", apperr.ErrConfigInvalid, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads key=value lines from r. Blank lines and lines starting
// with '#' are ignored (a convenience the original config format is
// silent on but commonly tolerated); unknown keys are ignored per
// spec.md §6.
func Parse(r io.Reader) (Config, error) {
	raw := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := splitKV(line)
		if !ok {
			continue
		}
		raw[strings.ToLower(key)] = val
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("%w: %s", apperr.ErrConfigInvalid, err)
	}

	cfg := Config{}
	var err error

	cfg.NumCPU, err = intField(raw, "num-cpu", 1, err)
	cfg.Scheduler = policyField(raw)
	cfg.QuantumCycles, err = intField(raw, "quantum-cycles", 1, err)
	cfg.BatchProcessFreq, err = intField(raw, "batch-process-freq", 1, err)
	cfg.MinIns, err = intField(raw, "min-ins", 0, err)
	cfg.MaxIns, err = intField(raw, "max-ins", 0, err)
	cfg.DelaysPerExec, err = intField(raw, "delays-per-exec", 0, err)
	cfg.DelaysPerExec++ // "one is added on load" per spec.md §6

	maxMem, e1 := uintField(raw, "max-overall-mem")
	frame, e2 := uintField(raw, "mem-per-frame")
	proc, e3 := uintField(raw, "mem-per-proc")
	cfg.MaxOverallMem, cfg.MemPerFrame, cfg.MemPerProc = maxMem, frame, proc
	cfg.MemoryMode = memoryModeField(raw)

	if err != nil || e1 != nil || e2 != nil || e3 != nil {
		return Config{}, apperr.ErrConfigInvalid
	}
	if cfg.NumCPU < 1 || cfg.QuantumCycles < 1 || cfg.BatchProcessFreq < 1 {
		return Config{}, apperr.ErrConfigInvalid
	}
	if cfg.MinIns > cfg.MaxIns {
		return Config{}, apperr.ErrConfigInvalid
	}
	if cfg.MemPerFrame == 0 || cfg.MaxOverallMem%cfg.MemPerFrame != 0 {
		return Config{}, apperr.ErrConfigInvalid
	}
	if !isPowerOfTwo(cfg.MemPerFrame) || !isPowerOfTwo(cfg.MemPerProc) {
		return Config{}, apperr.ErrConfigInvalid
	}
	if cfg.MemPerProc < 64 || cfg.MemPerProc > 65536 {
		return Config{}, apperr.ErrConfigInvalid
	}
	if cfg.Scheduler != FCFS && cfg.Scheduler != RoundRobin {
		return Config{}, apperr.ErrConfigInvalid
	}

	return cfg, nil
}

func splitKV(line string) (key, val string, ok bool) {
	idx := strings.IndexAny(line, "=")
	if idx < 0 {
		// also accept whitespace-separated "key value", as the original
		// config's informal text format allows either.
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", "", false
		}
		return fields[0], strings.Join(fields[1:], " "), true
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func intField(raw map[string]string, key string, def int, prevErr error) (int, error) {
	if prevErr != nil {
		return 0, prevErr
	}
	v, ok := raw[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.Trim(v, `"`))
	if err != nil {
		return 0, fmt.Errorf("%w: key %s: %s", apperr.ErrConfigInvalid, key, err)
	}
	return n, nil
}

func uintField(raw map[string]string, key string) (uint32, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing key %s", apperr.ErrConfigInvalid, key)
	}
	n, err := strconv.ParseUint(strings.Trim(v, `"`), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: key %s: %s", apperr.ErrConfigInvalid, key, err)
	}
	return uint32(n), nil
}

func policyField(raw map[string]string) Policy {
	v := strings.ToLower(strings.Trim(raw["scheduler"], `"`))
	switch v {
	case "rr":
		return RoundRobin
	case "fcfs":
		return FCFS
	default:
		return Policy(v)
	}
}

func memoryModeField(raw map[string]string) MemoryMode {
	switch strings.ToLower(strings.Trim(raw["memory-mode"], `"`)) {
	case "contiguous":
		return Contiguous
	default:
		return Paged
	}
}

func isPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}
