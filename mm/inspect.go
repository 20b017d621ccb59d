package mm

import "github.com/flinux-go/flinux/layout"

// Region describes one contiguous mapped range for introspection
// tooling; it is a read-only snapshot, not a handle into the live
// map-entry list.
type Region struct {
	Start, End uintptr // [Start, End) in guest address space.
	Prot       Prot
	Shared     bool
}

// Regions walks the map-entry list and returns one Region per entry,
// in ascending address order.
func (m *Manager) Regions() []Region {
	var regions []Region
	for e := m.mapList; e != nil; e = e.next {
		start := layout.PageAddr(e.startPage)
		end := layout.PageAddr(e.endPage + 1)
		regions = append(regions, Region{
			Start:  start,
			End:    end,
			Prot:   Prot(m.pageProt[e.startPage]),
			Shared: e.file != nil,
		})
	}
	return regions
}
