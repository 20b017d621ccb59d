package mm_test

import (
	"testing"

	"github.com/flinux-go/flinux/layout"
	"github.com/flinux-go/flinux/mm"
)

func TestMprotectChangesStoredProtection(t *testing.T) {
	m, h := newManager(t)
	base := uintptr(layout.AllocationLow)
	if _, err := m.Mmap(base, 2*layout.PageSize, mm.ProtRead|mm.ProtWrite, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0); err != nil {
		t.Fatalf("Mmap: %v", err)
	}
	if err := m.Mprotect(base, layout.PageSize, mm.ProtRead); err != nil {
		t.Fatalf("Mprotect: %v", err)
	}
	prot, ok := h.Prot(base)
	if !ok || prot != mm.ProtRead {
		t.Fatalf("host protection = %v, %v; want ProtRead, true", prot, ok)
	}
	prot, ok = h.Prot(base + layout.PageSize)
	if !ok || prot&mm.ProtWrite == 0 {
		t.Fatalf("untouched page lost its write bit: %v, %v", prot, ok)
	}
}

func TestMprotectRejectsPartiallyUnmappedRange(t *testing.T) {
	m, _ := newManager(t)
	base := uintptr(layout.AllocationLow)
	if _, err := m.Mmap(base, layout.PageSize, mm.ProtRead, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0); err != nil {
		t.Fatalf("Mmap: %v", err)
	}
	if err := m.Mprotect(base, 2*layout.PageSize, mm.ProtRead); err == nil {
		t.Fatal("expected error protecting past the end of the mapping")
	}
}
