package mm_test

import (
	"testing"

	"github.com/flinux-go/flinux/layout"
	"github.com/flinux-go/flinux/mm"
	"github.com/flinux-go/flinux/mm/host/simhost"
)

func newManager(t *testing.T) (*mm.Manager, *simhost.Host) {
	t.Helper()
	h := simhost.New()
	return mm.New(mm.Config{}, h), h
}

func TestMmapAnonymousFixed(t *testing.T) {
	m, h := newManager(t)
	addr := uintptr(layout.AllocationLow)
	got, err := m.Mmap(addr, 0x2000, mm.ProtRead|mm.ProtWrite, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0)
	if err != nil {
		t.Fatalf("Mmap: %v", err)
	}
	if got != addr {
		t.Fatalf("Mmap returned %#x, want %#x", got, addr)
	}
	prot, ok := h.Prot(addr)
	if !ok || prot != mm.ProtRead|mm.ProtWrite {
		t.Fatalf("host protection = %v, %v; want RW, true", prot, ok)
	}
}

func TestMmapHintPlacesInAllocationWindow(t *testing.T) {
	m, _ := newManager(t)
	addr, err := m.Mmap(0, 0x1000, mm.ProtRead|mm.ProtWrite, mm.MapAnonymous|mm.MapPrivate, nil, 0)
	if err != nil {
		t.Fatalf("Mmap: %v", err)
	}
	if addr < layout.AllocationLow || addr >= layout.AllocationHigh {
		t.Fatalf("Mmap placed mapping at %#x, outside allocation window", addr)
	}
}

func TestMmapRejectsSharedAndMismatchedFile(t *testing.T) {
	m, _ := newManager(t)
	if _, err := m.Mmap(layout.AllocationLow, 0x1000, mm.ProtRead, mm.MapShared|mm.MapAnonymous, nil, 0); err == nil {
		t.Fatal("expected error for MAP_SHARED")
	}
	if _, err := m.Mmap(layout.AllocationLow, 0x1000, mm.ProtRead, mm.MapPrivate, nil, 0); err == nil {
		t.Fatal("expected error for neither anonymous nor file-backed")
	}
}

func TestMmapSharesSectionAcrossOneBlock(t *testing.T) {
	m, h := newManager(t)
	base := uintptr(layout.AllocationLow)
	if _, err := m.Mmap(base, 0x1000, mm.ProtRead|mm.ProtWrite, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0); err != nil {
		t.Fatalf("first Mmap: %v", err)
	}
	if !h.Write(base, []byte("hello")) {
		t.Fatal("seeding first mapping failed")
	}
	if _, err := m.Mmap(base+0x1000, 0x1000, mm.ProtRead, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0); err != nil {
		t.Fatalf("second Mmap: %v", err)
	}
	// Both mappings fall in the same 64KiB block; the second call must
	// not have replaced the block's section (no clobbering the first
	// mapping's contents).
	if got, ok := h.Read(base, 5); !ok || string(got) != "hello" {
		t.Fatalf("first mapping = %q, %v after second Mmap; want \"hello\", true", got, ok)
	}
	if _, ok := m.FindFreePages(0x1000); !ok {
		t.Fatalf("allocation window exhausted unexpectedly")
	}
}
