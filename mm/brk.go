package mm

import (
	"fmt"

	"github.com/flinux-go/flinux/layout"
)

// SetInitialBrk records where the loader placed the end of the data
// segment, before any heap mapping exists. It never lowers the break
// and performs no host action.
func (m *Manager) SetInitialBrk(addr uintptr) {
	if addr > m.brk {
		m.brk = addr
	}
}

// UpdateBrk implements the brk() syscall: the request is page-aligned,
// growth maps [old_brk, new_brk) anonymous and fixed, and a request at
// or below the current break is a no-op — shrinking the heap back
// never unmaps pages.
func (m *Manager) UpdateBrk(addr uintptr) (uintptr, error) {
	newBrk := layout.AlignToPage(addr)
	oldBrk := layout.AlignToPage(m.brk)
	if newBrk <= oldBrk {
		if addr > m.brk {
			m.brk = addr
		}
		return m.brk, nil
	}
	if _, err := m.Mmap(oldBrk, uint(newBrk-oldBrk), ProtRead|ProtWrite|ProtExec,
		MapFixed|MapAnonymous|MapPrivate, nil, 0); err != nil {
		return 0, fmt.Errorf("mm: grow brk to %#x: %w", newBrk, err)
	}
	m.brk = addr
	return m.brk, nil
}
