package mm

import (
	"fmt"

	"github.com/flinux-go/flinux/layout"
)

// Mprotect changes the protection of every page in [addr, addr+length).
// The whole range must already be covered by existing mappings with no
// gaps. A page whose current protection lacks write is never granted
// write at the host level by this call: write is masked out of the host
// protection wherever the stored protection is not currently writable,
// and the upgrade happens lazily in HandlePageFault, which re-applies
// the stored protection on the first write fault. Host Protect calls
// are issued per maximal same-protection run, never crossing a block
// boundary.
func (m *Manager) Mprotect(addr uintptr, length uint, prot Prot) error {
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
	startPage, endPage := layout.Page(addr), layout.Page(end-1)

	lastPage := startPage - 1
	for e := m.mapList; e != nil; e = e.next {
		if e.startPage > endPage {
			break
		}
		if e.endPage < startPage {
			continue
		}
		if e.startPage > lastPage+1 {
			break
		}
		lastPage = e.endPage
	}
	if lastPage < endPage {
		return fmt.Errorf("%w: range not fully mapped", ErrNoMem)
	}

	j := startPage
	for i := startPage; ; i++ {
		if i > endPage || m.pageProt[i] != m.pageProt[j] {
			apply := prot
			if Prot(m.pageProt[j])&ProtWrite == 0 {
				apply &^= ProtWrite
			}
			if err := m.protectRun(j, i-1, apply); err != nil {
				return err
			}
			j = i
		}
		if i > endPage {
			break
		}
	}

	for p := startPage; p <= endPage; p++ {
		m.pageProt[p] = byte(prot)
	}
	return nil
}

// protectRun issues one or more host Protect calls covering
// [firstPage, lastPage], splitting at every block boundary.
func (m *Manager) protectRun(firstPage, lastPage uint32, prot Prot) error {
	p := firstPage
	for p <= lastPage {
		blockEnd := layout.FirstPageOfBlock(layout.BlockOfPage(p)+1) - 1
		runEnd := min(lastPage, blockEnd)
		count := runEnd - p + 1
		if err := m.h.Protect(layout.PageAddr(p), uint(count)*layout.PageSize, prot); err != nil {
			return fmt.Errorf("%w: protect pages %d-%d: %v", ErrNoMem, p, runEnd, err)
		}
		p = runEnd + 1
	}
	return nil
}
