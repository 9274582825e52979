// Package memory defines the façade both memory subsystems satisfy, so
// the scheduler can treat contiguous allocation and demand paging as a
// configuration-selected strategy rather than alternative builds.
package memory

import "github.com/Subprograms/OpesyWithOppenheimer/internal/apperr"

// ErrAllocationFailed is returned by EnsureResident when no placement for
// the process currently exists; the caller (scheduler) re-queues the
// process and retries on its next pop. Non-fatal. Aliases apperr's
// sentinel so callers can errors.Is against either package.
var ErrAllocationFailed = apperr.ErrAllocationFailed

// ErrAccessViolation is returned by Access when address is outside the
// process's address space. Fatal to the process.
var ErrAccessViolation = apperr.ErrMemoryAccessViolation

// Report is the subset of memory state the reporter needs, common to
// both contiguous and paged implementations.
type Report struct {
	TotalBytes     uint64
	UsedBytes      uint64
	FragmentedKB   float64
	ResidentProcs  int
	PagesPagedIn   uint64
	PagesPagedOut  uint64
}

// Manager is implemented by both internal/memory/contiguous and
// internal/memory/paged. The scheduler and interpreter depend only on
// this interface, never on a concrete allocator.
type Manager interface {
	// EnsureResident makes room for a process of the given name and byte
	// size, returning false (wrapping ErrAllocationFailed) if no
	// placement exists right now. Paged implementations do this lazily
	// and always return true; the page fault happens on first Access.
	EnsureResident(name string, size uint32) bool

	// Access reads (isWrite=false) or writes (isWrite=true) one 16-bit
	// word at addr within the named process's address space. On write,
	// value is the word to store; on read, the returned value is what
	// was stored. ok is false (ErrAccessViolation) when addr is out of
	// range for the process.
	Access(name string, pid uint64, addr uint32, isWrite bool, value uint16) (result uint16, ok bool)

	// Release tears down residency for a finished or evicted process.
	Release(name string)

	// Snapshot returns a point-in-time Report, and for contiguous mode
	// also triggers the periodic memory_stamp_<nn>.txt file (paged mode
	// treats Snapshot as a no-op file-wise, per spec).
	Snapshot() Report
}
