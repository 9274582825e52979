// Package contiguous implements the first-fit contiguous memory
// allocator: one ordered list of blocks on a byte address line, with
// external-fragmentation accounting and periodic snapshot files.
package contiguous

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/memory"
)

// Block is one allocated region, exclusive of end.
type Block struct {
	Start uint32
	End   uint32
	Owner string
}

// Allocator is a first-fit contiguous memory manager. It satisfies
// memory.Manager. Resident processes are backed by one shared byte array
// addressed by block.Start + process-local offset, so READ/WRITE can
// route through the same Access call paged mode uses.
type Allocator struct {
	mu sync.Mutex

	maxOverallMem uint32
	frameSize     uint32

	blocks  []Block          // ascending by Start, non-overlapping
	sizes   map[string]uint32 // owner name -> requested (unrounded) byte size
	backing []byte

	snapshotDir string
	snapshotSeq int
}

// New constructs an Allocator over [0, maxOverallMem) with the given
// frame size; block boundaries are always multiples of frameSize.
func New(maxOverallMem, frameSize uint32, snapshotDir string) *Allocator {
	return &Allocator{
		maxOverallMem: maxOverallMem,
		frameSize:     frameSize,
		snapshotDir:   snapshotDir,
		sizes:         make(map[string]uint32),
		backing:       make([]byte, maxOverallMem),
	}
}

func roundUp(n, multiple uint32) uint32 {
	if multiple == 0 {
		return n
	}
	rem := n % multiple
	if rem == 0 {
		return n
	}
	return n + (multiple - rem)
}

func alignUp(n, multiple uint32) uint32 { return roundUp(n, multiple) }

// EnsureResident performs first-fit placement, rounding size up to the
// next multiple of the frame size. Returns false when no region fits.
func (a *Allocator) EnsureResident(name string, size uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range a.blocks {
		if b.Owner == name {
			return true // already resident
		}
	}

	need := roundUp(size, a.frameSize)
	a.sizes[name] = size

	prevEnd := uint32(0)
	insertIdx := len(a.blocks)
	found := false
	var placedStart uint32

	for i, b := range a.blocks {
		gapStart := alignUp(prevEnd, a.frameSize)
		if b.Start >= gapStart && b.Start-gapStart >= need {
			placedStart = gapStart
			insertIdx = i
			found = true
			break
		}
		prevEnd = b.End
	}

	if !found {
		gapStart := alignUp(prevEnd, a.frameSize)
		if a.maxOverallMem-gapStart >= need {
			placedStart = gapStart
			insertIdx = len(a.blocks)
			found = true
		}
	}

	if !found {
		return false
	}

	nb := Block{Start: placedStart, End: placedStart + need, Owner: name}
	a.blocks = append(a.blocks, Block{})
	copy(a.blocks[insertIdx+1:], a.blocks[insertIdx:])
	a.blocks[insertIdx] = nb
	return true
}

// Release deallocates every block owned by name.
func (a *Allocator) Release(name string) { a.Deallocate(name) }

// Deallocate removes every block whose owner matches name.
func (a *Allocator) Deallocate(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.blocks[:0]
	for _, b := range a.blocks {
		if b.Owner != name {
			out = append(out, b)
		}
	}
	a.blocks = out
	delete(a.sizes, name)
}

// Access reads or writes one 16-bit word at addr within name's resident
// block. addr is process-local; it is translated to a physical offset via
// the process's block.Start. The word occupies bytes addr and addr+1, so
// addr+1 >= the process's requested size is a memory.ErrAccessViolation.
func (a *Allocator) Access(name string, pid uint64, addr uint32, isWrite bool, value uint16) (uint16, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	size, known := a.sizes[name]
	if !known || addr+1 >= size {
		return 0, false
	}

	var block *Block
	for i := range a.blocks {
		if a.blocks[i].Owner == name {
			block = &a.blocks[i]
			break
		}
	}
	if block == nil {
		return 0, false
	}

	phys := block.Start + addr
	if isWrite {
		a.backing[phys] = byte(value)
		a.backing[phys+1] = byte(value >> 8)
		return value, true
	}
	v := uint16(a.backing[phys]) | uint16(a.backing[phys+1])<<8
	return v, true
}

// fragmentationKB sums the gaps between consecutive blocks and the tail
// region up to maxOverallMem, in KB. Caller must hold a.mu.
func (a *Allocator) fragmentationKB() float64 {
	var gaps uint64
	prevEnd := uint32(0)
	for _, b := range a.blocks {
		if b.Start > prevEnd {
			gaps += uint64(b.Start - prevEnd)
		}
		prevEnd = b.End
	}
	if a.maxOverallMem > prevEnd {
		gaps += uint64(a.maxOverallMem - prevEnd)
	}
	return float64(gaps) / 1024.0
}

// Snapshot writes memory_stamp_<nn>.txt and returns a Report.
func (a *Allocator) Snapshot() memory.Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	var used uint64
	for _, b := range a.blocks {
		used += uint64(b.End - b.Start)
	}

	rep := memory.Report{
		TotalBytes:    uint64(a.maxOverallMem),
		UsedBytes:     used,
		FragmentedKB:  a.fragmentationKB(),
		ResidentProcs: len(a.blocks),
	}

	a.writeSnapshotFile(rep)
	return rep
}

func (a *Allocator) writeSnapshotFile(rep memory.Report) {
	descending := make([]Block, len(a.blocks))
	copy(descending, a.blocks)
	sort.Slice(descending, func(i, j int) bool { return descending[i].Start > descending[j].Start })

	path := fmt.Sprintf("%s/memory_stamp_%02d.txt", a.snapshotDir, a.snapshotSeq)
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "Timestamp: %s\n", time.Now().Format("01/02/2006 03:04:05PM"))
	fmt.Fprintf(f, "Number of processes in memory: %d\n", rep.ResidentProcs)
	fmt.Fprintf(f, "Total external fragmentation in KB: %.0f\n", rep.FragmentedKB)
	fmt.Fprintln(f, "----end---- = 100")

	for _, b := range descending {
		fmt.Fprintf(f, "%d\n", b.End)
		fmt.Fprintf(f, "%s\n", b.Owner)
		fmt.Fprintf(f, "%d\n\n", b.Start)
	}

	a.snapshotSeq++
}
