package mm

import (
	"fmt"

	"github.com/flinux-go/flinux/layout"
	"github.com/flinux-go/flinux/mm/host"
)

// ForkChild returns a new Manager for a child process, seeded with a
// snapshot of this Manager's map list, per-page protection table and
// per-block ledger — the Go-native stand-in for copying mm_data
// verbatim into the child's address space at process-creation time.
// The returned Manager shares no host.Section with the parent yet;
// call Fork on the parent to establish that sharing.
func (m *Manager) ForkChild(childHost host.Host) *Manager {
	c := &Manager{h: childHost, entryPool: make([]mapEntry, len(m.entryPool)), brk: m.brk}
	c.initFreeList()
	c.pageProt = m.pageProt
	c.blocks = m.blocks
	for e := m.mapList; e != nil; e = e.next {
		ne := c.newMapEntry()
		*ne = *e
		ne.next = nil
		c.insertEntry(ne)
	}
	return c
}

// Fork establishes copy-on-write sharing between this Manager (the
// parent) and child: every live block's section is mapped into the
// child process at the same address, and the host-level write bit is
// cleared on every currently-mapped page in both processes so the next
// write on either side takes a fault that HandlePageFault resolves.
// The logical per-page protection table (pageProt) is left untouched —
// it still records the guest-visible protection, which is what
// HandlePageFault restores once it has cloned a page's block.
func (m *Manager) Fork(child *Manager) error {
	childProc := child.h.Self()
	for b := uint32(0); b < uint32(len(m.blocks)); b++ {
		if m.blocks[b].handle == nil {
			continue
		}
		if err := m.h.MapSectionInto(childProc, m.blocks[b].handle, layout.BlockAddr(b)); err != nil {
			return fmt.Errorf("mm: fork: map block %d into child: %w", b, err)
		}
	}
	for e := m.mapList; e != nil; e = e.next {
		for p := e.startPage; p <= e.endPage; p++ {
			prot := Prot(m.pageProt[p])
			addr := layout.PageAddr(p)
			if prot&ProtWrite != 0 {
				// Every section the child inherits is mapped RWX by
				// default; a writable page additionally needs its write
				// bit cleared in both processes so the next write on
				// either side faults into the copy-on-write path.
				cow := prot &^ ProtWrite
				if err := m.h.ProtectOther(childProc, addr, layout.PageSize, cow); err != nil {
					return fmt.Errorf("mm: fork: protect child page %d: %w", p, err)
				}
				if err := m.h.Protect(addr, layout.PageSize, cow); err != nil {
					return fmt.Errorf("mm: fork: protect parent page %d: %w", p, err)
				}
				continue
			}
			// Not writable: the parent's protection is already correct,
			// but the child's freshly mapped section still defaults to
			// RWX and must be brought down to the guest protection.
			if err := m.h.ProtectOther(childProc, addr, layout.PageSize, prot); err != nil {
				return fmt.Errorf("mm: fork: protect child page %d: %w", p, err)
			}
		}
	}
	return nil
}
