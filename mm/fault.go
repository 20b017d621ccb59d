package mm

import "github.com/flinux-go/flinux/layout"

// HandlePageFault is the copy-on-write fault handler: called when the
// host reports a write fault at addr. It reports false when addr is
// outside the address space or the page's stored protection does not
// permit writes (a genuine fault, not a COW one). Otherwise, if the
// block's section is still shared with another process, it is cloned
// into a private section mapped back at the same address; either way,
// every page in the block has its stored protection re-applied so the
// block's other live pages, which may be read-only, are not
// accidentally left writable by the clone.
func (m *Manager) HandlePageFault(addr uintptr) bool {
	if addr < layout.AddressSpaceLow || addr >= layout.AddressSpaceHigh {
		return false
	}
	page := layout.Page(addr)
	if Prot(m.pageProt[page])&ProtWrite == 0 {
		return false
	}
	block := layout.BlockOfPage(page)
	sec := m.blocks[block].handle
	if sec == nil {
		return false
	}

	count, err := m.h.HandleCount(sec)
	if err != nil {
		return false
	}
	if count > 1 {
		dup, err := m.h.DuplicateSection(sec, layout.BlockAddr(block))
		if err != nil {
			return false
		}
		if err := m.h.UnmapSection(layout.BlockAddr(block)); err != nil {
			return false
		}
		m.h.CloseSection(sec)
		if err := m.h.MapSection(dup, layout.BlockAddr(block)); err != nil {
			return false
		}
		m.blocks[block].handle = dup
	}

	first := layout.FirstPageOfBlock(block)
	for i := uint32(0); i < layout.PagesPerBlock; i++ {
		p := first + i
		if err := m.h.Protect(layout.PageAddr(p), layout.PageSize, Prot(m.pageProt[p])); err != nil {
			return false
		}
	}
	return true
}
