package mm

import "github.com/flinux-go/flinux/layout"

// findFreePages scans the ordered map list for the first gap of at
// least count pages inside [lowAddr, highAddr), the same linear scan
// mm_find_free_pages performs over the map-entry list.
func (m *Manager) findFreePages(count uint32, lowAddr, highAddr uintptr) (uint32, bool) {
	low, high := layout.Page(lowAddr), layout.Page(highAddr)
	last := low
	for e := m.mapList; e != nil; e = e.next {
		if e.endPage < low {
			continue
		}
		if e.startPage >= high {
			break
		}
		if e.startPage > last && e.startPage-last >= count {
			return last, true
		}
		last = e.endPage + 1
	}
	if last < high && high-last >= count {
		return last, true
	}
	return 0, false
}

// FindFreePages looks for a run of lengthBytes, rounded up to whole
// pages, inside the general mmap allocation window.
func (m *Manager) FindFreePages(lengthBytes uint) (uint32, bool) {
	count := uint32(layout.AlignToPage(uintptr(lengthBytes)) / layout.PageSize)
	return m.findFreePages(count, layout.AllocationLow, layout.AllocationHigh)
}
