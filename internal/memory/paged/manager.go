// Package paged implements demand-paged virtual memory: a page table per
// process, a fixed pool of physical frames, FIFO (or second-chance) page
// replacement, and a line-delimited text file backing store for evicted
// pages. Grounded directly on the original MemoryManager's access/
// pageFault/evict/loadPage/writePage split.
package paged

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/memory"
)

// ReplacementPolicy selects the eviction strategy.
type ReplacementPolicy int

const (
	FIFO ReplacementPolicy = iota
	SecondChance
)

type pageTableEntry struct {
	present bool
	frame   int
	dirty   bool
	ref     bool
}

// frameOwner tracks which (name, page) tuple currently occupies a frame,
// so eviction can find the owning page table entry without a reverse
// scan of every process's table each time.
type frameOwner struct {
	name string
	page int
}

// Manager is the demand-paged virtual memory manager. It satisfies
// memory.Manager.
type Manager struct {
	mu sync.Mutex

	frameSize int
	numFrames int

	frames [][]uint16 // physical memory: one []uint16 per frame
	owners []frameOwner

	pageTables map[string][]pageTableEntry
	sizes      map[string]uint32 // process address-space size, for bounds checks
	lastPID    map[string]uint64 // most recently seen pid per process name, for eviction writeback tagging

	freeList []int
	ring     []int // eviction-order ring of resident frames (FIFO/second-chance)

	storePath   string
	singleTable bool
	policy      ReplacementPolicy

	pagedIn  uint64
	pagedOut uint64
}

// New constructs a Manager over maxOverallMem bytes split into frameSize-
// byte frames, backed by storePath. singleTable selects the `page:` tag
// format (spec.md §6 aside) instead of the default `pid:page:` per-
// process tagging.
func New(maxOverallMem, frameSize uint32, storePath string, singleTable bool, policy ReplacementPolicy) *Manager {
	numFrames := int(maxOverallMem / frameSize)
	wordsPerFrame := int(frameSize) / 2

	m := &Manager{
		frameSize:   int(frameSize),
		numFrames:   numFrames,
		frames:      make([][]uint16, numFrames),
		owners:      make([]frameOwner, numFrames),
		pageTables:  make(map[string][]pageTableEntry),
		sizes:       make(map[string]uint32),
		lastPID:     make(map[string]uint64),
		freeList:    make([]int, 0, numFrames),
		storePath:   storePath,
		singleTable: singleTable,
		policy:      policy,
	}
	for i := 0; i < numFrames; i++ {
		m.frames[i] = make([]uint16, wordsPerFrame)
		m.freeList = append(m.freeList, i)
	}

	f, err := os.Create(storePath)
	if err == nil {
		fmt.Fprintln(f, m.headerLine())
		f.Close()
	}
	return m
}

func (m *Manager) headerLine() string {
	words := m.frameSize / 2
	var b strings.Builder
	if m.singleTable {
		b.WriteString("page:")
	} else {
		b.WriteString("pid:page:")
	}
	for i := 0; i < words; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "w%d", i)
	}
	return b.String()
}

// EnsureResident is a no-op for paged mode: residency is established
// lazily, page by page, on first Access. It always succeeds.
func (m *Manager) EnsureResident(name string, size uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[name] = size
	if _, ok := m.pageTables[name]; !ok {
		m.pageTables[name] = nil
	}
	return true
}

// Release drops a process's page table, freeing its resident frames back
// to the free list without writeback (matching spec.md: destroyed only
// on retirement, and the backing store keeps whatever was last written).
func (m *Manager) Release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pt := m.pageTables[name]
	for _, ent := range pt {
		if !ent.present {
			continue
		}
		m.freeList = append(m.freeList, ent.frame)
		m.removeFromRing(ent.frame)
		m.owners[ent.frame] = frameOwner{}
	}
	delete(m.pageTables, name)
	delete(m.sizes, name)
}

func (m *Manager) removeFromRing(frame int) {
	for i, f := range m.ring {
		if f == frame {
			m.ring = append(m.ring[:i], m.ring[i+1:]...)
			return
		}
	}
}

// Access decodes addr into (page, wordOffset), demand-faults the page in
// if necessary, and performs the read or write.
func (m *Manager) Access(name string, pid uint64, addr uint32, isWrite bool, value uint16) (uint16, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size, known := m.sizes[name]
	if !known || addr >= size {
		return 0, false
	}
	m.lastPID[name] = pid

	page := int(addr) / m.frameSize
	offset := (int(addr) % m.frameSize) / 2

	pt := m.pageTables[name]
	if page >= len(pt) {
		grown := make([]pageTableEntry, page+1)
		copy(grown, pt)
		pt = grown
		m.pageTables[name] = pt
	}

	ent := pt[page]
	if !ent.present {
		ent = m.pageFault(name, pid, page)
		pt[page] = ent
	}

	ent.ref = true
	frame := ent.frame

	if isWrite {
		if int(value) > 0xFFFF {
			value = 0xFFFF
		}
		m.frames[frame][offset] = value
		ent.dirty = true
		pt[page] = ent
		m.writePage(name, pid, page, frame)
		return value, true
	}

	pt[page] = ent
	return m.frames[frame][offset], true
}

// pageFault loads page into a free frame (evicting if necessary) and
// returns the new page table entry. Caller holds m.mu.
func (m *Manager) pageFault(name string, pid uint64, page int) pageTableEntry {
	if len(m.freeList) == 0 {
		m.evict()
	}
	frame := m.freeList[0]
	m.freeList = m.freeList[1:]
	m.ring = append(m.ring, frame)
	m.owners[frame] = frameOwner{name: name, page: page}

	m.loadPage(name, pid, page, frame)
	m.pagedIn++

	return pageTableEntry{present: true, frame: frame, dirty: false, ref: true}
}

// evict selects a victim frame per policy, writes it back if dirty, and
// returns it to the free list. Caller holds m.mu.
func (m *Manager) evict() {
	for {
		if len(m.ring) == 0 {
			return // no resident frames; pageFault's caller will still fail gracefully
		}
		victim := m.ring[0]

		if m.policy == SecondChance {
			owner := m.owners[victim]
			pt := m.pageTables[owner.name]
			if owner.name != "" && owner.page < len(pt) && pt[owner.page].ref {
				pt[owner.page].ref = false
				m.ring = append(m.ring[1:], victim)
				continue
			}
		}

		m.ring = m.ring[1:]
		owner := m.owners[victim]
		if owner.name != "" {
			pt := m.pageTables[owner.name]
			if owner.page < len(pt) && pt[owner.page].present {
				if pt[owner.page].dirty {
					m.writePageByOwner(owner, victim)
					m.pagedOut++
				}
				pt[owner.page].present = false
				pt[owner.page].frame = -1
				pt[owner.page].dirty = false
			}
		}
		m.owners[victim] = frameOwner{}
		m.freeList = append(m.freeList, victim)
		return
	}
}

func (m *Manager) tag(pid uint64, page int) string {
	if m.singleTable {
		return fmt.Sprintf("%d:", page)
	}
	return fmt.Sprintf("%d:%d:", pid, page)
}

// loadPage scans the backing store for tag(pid,page); zero-fills the
// frame if the tag is absent. Caller holds m.mu.
func (m *Manager) loadPage(name string, pid uint64, page, frame int) {
	for i := range m.frames[frame] {
		m.frames[frame][i] = 0
	}

	f, err := os.Open(m.storePath)
	if err != nil {
		return
	}
	defer f.Close()

	tag := m.tag(pid, page)
	scanner := bufio.NewScanner(f)
	scanner.Scan() // skip header
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, tag) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, tag))
		for i, field := range fields {
			if i >= len(m.frames[frame]) {
				break
			}
			if v, err := strconv.ParseUint(field, 10, 16); err == nil {
				m.frames[frame][i] = uint16(v)
			}
		}
		return
	}
}

func (m *Manager) writePageByOwner(owner frameOwner, frame int) {
	// frameOwner records only the name and page, so the victim's pid for
	// the backing-store tag is taken from lastPID: the pid most recently
	// seen for that name by Access or writePage.
	m.writePage(owner.name, m.lastPID[owner.name], owner.page, frame)
}

func (m *Manager) writePage(name string, pid uint64, page, frame int) {
	m.lastPID[name] = pid

	path := m.storePath
	in, err := os.Open(path)
	var lines []string
	header := m.headerLine()
	if err == nil {
		scanner := bufio.NewScanner(in)
		if scanner.Scan() {
			header = scanner.Text()
		}
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		in.Close()
	}

	tag := m.tag(pid, page)
	var out strings.Builder
	var newLine strings.Builder
	newLine.WriteString(tag)
	for i, w := range m.frames[frame] {
		if i > 0 {
			newLine.WriteByte(' ')
		}
		fmt.Fprintf(&newLine, "%d", w)
	}

	replaced := false
	out.WriteString(header)
	out.WriteByte('\n')
	for _, line := range lines {
		if strings.HasPrefix(line, tag) {
			out.WriteString(newLine.String())
			out.WriteByte('\n')
			replaced = true
		} else {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}
	if !replaced {
		out.WriteString(newLine.String())
		out.WriteByte('\n')
	}

	os.WriteFile(path, []byte(out.String()), 0644)
}

// Snapshot is a no-op file-wise in paged mode (per spec.md §4.C/§4.D:
// periodic snapshots are a contiguous-mode concept); it still returns
// counters for the reporter.
func (m *Manager) Snapshot() memory.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memory.Report{
		TotalBytes:    uint64(m.numFrames * m.frameSize),
		UsedBytes:     uint64((m.numFrames - len(m.freeList)) * m.frameSize),
		ResidentProcs: len(m.pageTables),
		PagesPagedIn:  m.pagedIn,
		PagesPagedOut: m.pagedOut,
	}
}
