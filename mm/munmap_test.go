package mm_test

import (
	"testing"

	"github.com/flinux-go/flinux/layout"
	"github.com/flinux-go/flinux/mm"
)

func TestMunmapSplitsEntry(t *testing.T) {
	m, h := newManager(t)
	base := uintptr(layout.AllocationLow)
	if _, err := m.Mmap(base, 3*layout.PageSize, mm.ProtRead|mm.ProtWrite, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0); err != nil {
		t.Fatalf("Mmap: %v", err)
	}
	// Punch a hole in the middle page.
	if err := m.Munmap(base+layout.PageSize, layout.PageSize); err != nil {
		t.Fatalf("Munmap: %v", err)
	}
	if _, ok := h.Prot(base); !ok {
		t.Fatalf("first page should still be mapped")
	}
	if _, ok := h.Prot(base + 2*layout.PageSize); !ok {
		t.Fatalf("third page should still be mapped")
	}

	// The freed middle page must now be available to a fresh mapping.
	addr, err := m.Mmap(base+layout.PageSize, layout.PageSize, mm.ProtRead, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0)
	if err != nil {
		t.Fatalf("re-Mmap freed hole: %v", err)
	}
	if addr != base+layout.PageSize {
		t.Fatalf("re-Mmap landed at %#x, want %#x", addr, base+layout.PageSize)
	}
}

func TestMunmapReleasesBlockWhenEmpty(t *testing.T) {
	m, h := newManager(t)
	base := uintptr(layout.AllocationLow)
	if _, err := m.Mmap(base, layout.PageSize, mm.ProtRead|mm.ProtWrite, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0); err != nil {
		t.Fatalf("Mmap: %v", err)
	}
	if err := m.Munmap(base, layout.PageSize); err != nil {
		t.Fatalf("Munmap: %v", err)
	}
	if _, ok := h.Prot(base); ok {
		t.Fatalf("block should have been unmapped from the host once empty")
	}
}

func TestMunmapRejectsUnalignedAddress(t *testing.T) {
	m, _ := newManager(t)
	if err := m.Munmap(layout.AllocationLow+1, layout.PageSize); err == nil {
		t.Fatal("expected error for unaligned address")
	}
}
