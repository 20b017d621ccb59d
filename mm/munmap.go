package mm

import (
	"fmt"

	"github.com/flinux-go/flinux/layout"
)

// Munmap removes every mapping overlapping [addr, addr+length), trimming
// or splitting entries that only partially overlap, releasing file
// backends whose entire mapping disappears, and unmapping and closing
// any block whose last covering page is removed. addr must be
// page-aligned; length is rounded up to whole pages.
func (m *Manager) Munmap(addr uintptr, length uint) error {
	if addr%layout.PageSize != 0 {
		return fmt.Errorf("%w: unaligned address", ErrInvalid)
	}
	length = uint(layout.AlignToPage(uintptr(length)))
	if length == 0 {
		return nil
	}
	end := addr + uintptr(length)
	if addr < layout.AddressSpaceLow || end > layout.AddressSpaceHigh || end < addr {
		return fmt.Errorf("%w: address range out of bounds", ErrInvalid)
	}

	unmapStart, unmapEnd := layout.Page(addr), layout.Page(end-1)

	var pred *mapEntry
	e := m.mapList
	for e != nil {
		if e.startPage > unmapEnd {
			break
		}
		if e.endPage < unmapStart {
			pred, e = e, e.next
			continue
		}

		startPage := max(unmapStart, e.startPage)
		endPage := min(unmapEnd, e.endPage)
		next := e.next

		switch {
		case startPage > e.startPage && endPage < e.endPage:
			// Split: e keeps the low remainder, a fresh entry takes the
			// high remainder.
			tail := m.newMapEntry()
			if tail == nil {
				return fmt.Errorf("%w: map entry arena exhausted", ErrNoMem)
			}
			tail.startPage, tail.endPage = endPage+1, e.endPage
			tail.file = e.file
			if e.file != nil {
				tail.offsetPages = e.offsetPages + (tail.startPage - e.startPage)
			}
			e.endPage = startPage - 1
			tail.next = e.next
			e.next = tail
			pred = e
			next = tail

		case startPage > e.startPage:
			// Trim the high end off.
			e.endPage = startPage - 1
			pred = e

		case endPage < e.endPage:
			// Trim the low end off.
			if e.file != nil {
				e.offsetPages += endPage + 1 - e.startPage
			}
			e.startPage = endPage + 1
			pred = e

		default:
			// Entire entry removed.
			if e.file != nil {
				e.file.Release()
			}
			if pred != nil {
				pred.next = next
			} else {
				m.mapList = next
			}
			m.freeMapEntry(e)
		}

		for p := startPage; p <= endPage; p++ {
			m.pageProt[p] = 0
			m.blocks[layout.BlockOfPage(p)].pageCount--
		}
		startBlock, endBlock := layout.BlockOfPage(startPage), layout.BlockOfPage(endPage)
		for b := startBlock; b <= endBlock; b++ {
			if m.blocks[b].pageCount == 0 && m.blocks[b].handle != nil {
				m.h.UnmapSection(layout.BlockAddr(b))
				m.h.CloseSection(m.blocks[b].handle)
				m.blocks[b] = blockEntry{}
			}
		}

		e = next
	}
	return nil
}
