package main

import (
	"github.com/flinux-go/flinux/emu/memory"
	"github.com/flinux-go/flinux/layout"
)

// guestHost adapts a flat emu/memory.Memory region into the narrow
// code-reading boundary dbt.Translator needs. Loading and relocating an
// actual guest binary is out of scope here; this backs the console's
// translator with a scratch region at HeapBase so "dump blocks"/"dump
// cache" and the mmap/munmap/mprotect/brk commands have something real
// to drive against.
type guestHost struct {
	mem *memory.Memory
}

func (h *guestHost) ReadByte(addr uintptr) (byte, error) {
	return h.mem.ReadByte(addr)
}

func (h *guestHost) SyscallHandler() uintptr {
	return layout.DBTDataBase
}

func (h *guestHost) TLSSlotToOffset(slot int) int {
	return slot * 4
}

// guestMemory builds the placeholder guest-code Host the console's
// Translator reads through, a scratch region spanning the window
// between HeapBase and AllocationLow.
func guestMemory() *guestHost {
	return &guestHost{mem: memory.New(layout.HeapBase, layout.AllocationLow-layout.HeapBase)}
}
