// Package apperr collects the sentinel error kinds shared across the
// scheduler, memory managers, and shell, checked with errors.Is rather
// than type assertions, following the teacher's plain unwrapped-error
// style.
package apperr

import "errors"

var (
	// ErrConfigInvalid: the configuration file failed to parse or a
	// required key was out of range. Fatal at startup.
	ErrConfigInvalid = errors.New("apperr: invalid configuration")

	// ErrProcessNotFound: no process with the given name exists in any
	// of the waiting, running, or finished lists.
	ErrProcessNotFound = errors.New("apperr: process not found")

	// ErrSchedulerNotInitialised: a command that requires a running
	// scheduler was issued before initialize.
	ErrSchedulerNotInitialised = errors.New("apperr: scheduler not initialised")

	// ErrDuplicateSchedulerStart: scheduler-start was issued while the
	// batch generator is already running. Non-fatal; the shell prints
	// and ignores it.
	ErrDuplicateSchedulerStart = errors.New("apperr: scheduler already started")

	// ErrMemoryAccessViolation: a READ/WRITE addressed outside the
	// process's address space. Fatal to the process, not to the shell.
	ErrMemoryAccessViolation = errors.New("apperr: memory access violation")

	// ErrAllocationFailed: contiguous first-fit found no placement.
	// Non-fatal; the process returns to the ready queue tail.
	ErrAllocationFailed = errors.New("apperr: allocation failed")
)
