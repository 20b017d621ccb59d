package mm

import (
	"fmt"

	"github.com/flinux-go/flinux/layout"
)

// Mmap establishes a new mapping of length bytes, rounded up to whole
// pages. When flags has MapFixed, addr must be page-aligned and any
// existing mapping in the target range is first torn down via Munmap,
// matching Linux's MAP_FIXED semantics. Without MapFixed, addr is a
// hint and a free range is located via FindFreePages (or the heap
// window, when mapHeap is set). File-backed mappings are populated
// eagerly: the whole range is read from f at offsetPages before Mmap
// returns.
func (m *Manager) Mmap(addr uintptr, length uint, prot Prot, flags MapFlags, f FileBackend, offsetPages uint32) (uintptr, error) {
	if length == 0 {
		return 0, fmt.Errorf("%w: zero-length mapping", ErrInvalid)
	}
	length = uint(layout.AlignToPage(uintptr(length)))

	if flags&MapShared != 0 {
		return 0, fmt.Errorf("%w: MAP_SHARED is not supported", ErrInvalid)
	}

	anon := flags&MapAnonymous != 0
	if anon == (f != nil) {
		if anon {
			return 0, fmt.Errorf("%w: anonymous mapping carries a file backend", ErrInvalid)
		}
		return 0, fmt.Errorf("%w: file-backed mapping with no file backend", ErrBadFile)
	}

	if flags&MapFixed != 0 {
		if addr%layout.PageSize != 0 {
			return 0, fmt.Errorf("%w: unaligned fixed address", ErrInvalid)
		}
	} else {
		low, high := uintptr(layout.AllocationLow), uintptr(layout.AllocationHigh)
		if flags&mapHeap != 0 {
			low, high = uintptr(layout.HeapBase), uintptr(layout.AllocationLow)
		}
		count := uint32(length / layout.PageSize)
		page, ok := m.findFreePages(count, low, high)
		if !ok {
			return 0, fmt.Errorf("%w: no free pages for %d bytes", ErrNoMem, length)
		}
		addr = layout.PageAddr(page)
	}

	end := addr + uintptr(length)
	if addr < layout.AddressSpaceLow || end > layout.AddressSpaceHigh || end < addr {
		return 0, fmt.Errorf("%w: address range out of bounds", ErrInvalid)
	}

	if flags&MapFixed != 0 {
		if err := m.Munmap(addr, length); err != nil {
			return 0, err
		}
	}

	startPage, endPage := layout.Page(addr), layout.Page(end-1)
	startBlock, endBlock := layout.Block(addr), layout.Block(end-1)

	created := make([]uint32, 0, endBlock-startBlock+1)
	rollback := func() {
		for _, b := range created {
			m.h.UnmapSection(layout.BlockAddr(b))
			m.h.CloseSection(m.blocks[b].handle)
			m.blocks[b] = blockEntry{}
		}
	}
	for b := startBlock; b <= endBlock; b++ {
		if m.blocks[b].handle != nil {
			continue
		}
		sec, err := m.h.CreateSection(layout.BlockSize)
		if err != nil {
			rollback()
			return 0, fmt.Errorf("%w: create section for block %d: %v", ErrNoMem, b, err)
		}
		if err := m.h.MapSection(sec, layout.BlockAddr(b)); err != nil {
			m.h.CloseSection(sec)
			rollback()
			return 0, fmt.Errorf("%w: map section for block %d: %v", ErrNoMem, b, err)
		}
		m.blocks[b].handle = sec
		created = append(created, b)
	}

	entry := m.newMapEntry()
	if entry == nil {
		rollback()
		return 0, fmt.Errorf("%w: map entry arena exhausted", ErrNoMem)
	}
	entry.startPage, entry.endPage = startPage, endPage
	entry.file, entry.offsetPages = f, offsetPages

	if f != nil {
		// Newly created sections start out RWX, so the populating write
		// below never races the final Protect call applied further down.
		buf := make([]byte, uint(endPage-startPage+1)*layout.PageSize)
		if _, err := f.PReadAt(buf, int64(offsetPages)*layout.PageSize); err != nil {
			m.freeMapEntry(entry)
			rollback()
			return 0, fmt.Errorf("%w: populate from file: %v", ErrBadFile, err)
		}
		if err := m.h.WriteProcessMemory(m.h.Self(), addr, buf); err != nil {
			m.freeMapEntry(entry)
			rollback()
			return 0, fmt.Errorf("%w: populate mapping: %v", ErrNoMem, err)
		}
	}

	m.insertEntry(entry)
	for p := startPage; p <= endPage; p++ {
		m.pageProt[p] = byte(prot)
		m.blocks[layout.BlockOfPage(p)].pageCount++
	}
	if err := m.protectRun(startPage, endPage, prot); err != nil {
		return 0, err
	}
	return addr, nil
}
