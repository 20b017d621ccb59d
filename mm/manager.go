package mm

import (
	"github.com/flinux-go/flinux/layout"
	"github.com/flinux-go/flinux/mm/host"
)

const defaultMaxMapEntries = 65536

// New constructs an empty Manager backed by h.
func New(cfg Config, h host.Host) *Manager {
	if cfg.MaxMapEntries <= 0 {
		cfg.MaxMapEntries = defaultMaxMapEntries
	}
	m := &Manager{h: h, entryPool: make([]mapEntry, cfg.MaxMapEntries)}
	m.initFreeList()
	return m
}

func (m *Manager) initFreeList() {
	for i := range m.entryPool[:len(m.entryPool)-1] {
		m.entryPool[i].next = &m.entryPool[i+1]
	}
	m.mapFreeList = &m.entryPool[0]
	m.mapList = nil
}

func (m *Manager) newMapEntry() *mapEntry {
	e := m.mapFreeList
	if e == nil {
		return nil
	}
	m.mapFreeList = e.next
	e.next = nil
	return e
}

func (m *Manager) freeMapEntry(e *mapEntry) {
	e.file = nil
	e.next = m.mapFreeList
	m.mapFreeList = e
}

// insertEntry inserts e into mapList, kept ordered by startPage.
func (m *Manager) insertEntry(entry *mapEntry) {
	if m.mapList == nil || m.mapList.startPage > entry.endPage {
		entry.next = m.mapList
		m.mapList = entry
		return
	}
	for e := m.mapList; e != nil; e = e.next {
		if e.next == nil || e.next.startPage > entry.endPage {
			entry.next = e.next
			e.next = entry
			return
		}
	}
}

// releaseBlockRange unmaps and closes every live block's section in
// blocks [lowBlock, highBlock), used by Reset and Shutdown.
func (m *Manager) releaseBlockRange(lowBlock, highBlock uint32) {
	for b := lowBlock; b < highBlock; b++ {
		if m.blocks[b].handle != nil {
			m.h.UnmapSection(layout.BlockAddr(b))
			m.h.CloseSection(m.blocks[b].handle)
			m.blocks[b] = blockEntry{}
		}
	}
}

// Reset releases every mapping in the general allocation window,
// leaving kernel-private regions untouched. Used between process loads
// inside the same host process.
func (m *Manager) Reset() {
	m.releaseBlockRange(layout.Block(layout.AllocationLow), layout.Block(layout.AllocationHigh))

	var pred *mapEntry
	e := m.mapList
	for e != nil {
		next := e.next
		if e.startPage >= layout.Page(layout.AllocationLow) && e.endPage < layout.Page(layout.AllocationHigh) {
			for p := e.startPage; p <= e.endPage; p++ {
				m.pageProt[p] = 0
			}
			if pred != nil {
				pred.next = next
			} else {
				m.mapList = next
			}
			m.freeMapEntry(e)
		} else {
			pred = e
		}
		e = next
	}
	m.brk = 0
}

// Shutdown releases every block this Manager holds, regardless of
// range, ahead of process teardown.
func (m *Manager) Shutdown() {
	m.releaseBlockRange(0, uint32(len(m.blocks)))
	m.mapList = nil
	m.initFreeList()
}

// Brk returns the current program break.
func (m *Manager) Brk() uintptr { return m.brk }
