// Package mm is the guest-facing memory manager: it maps Linux's
// page-granular mmap/munmap/mprotect/brk semantics onto a host that only
// offers 64KiB allocation granularity and no native copy-on-write. A
// Manager owns one process's map-entry list, per-page protection table
// and per-block section ledger, and drives the host through mm/host.
package mm

import (
	"github.com/flinux-go/flinux/layout"
	"github.com/flinux-go/flinux/mm/host"
)

// Prot is the guest-visible {read, write, exec} protection bit-set.
type Prot = host.Prot

const (
	ProtRead  = host.ProtRead
	ProtWrite = host.ProtWrite
	ProtExec  = host.ProtExec
)

// MapFlags mirrors the mmap() flag word, trimmed to what this manager
// actually distinguishes.
type MapFlags uint32

const (
	MapFixed MapFlags = 1 << iota
	MapShared
	MapAnonymous
	MapPrivate
	// mapHeap steers the free-page search into the heap window instead
	// of the general allocation window. No caller in this repository
	// sets it: brk growth maps at a fixed address instead.
	mapHeap
)

// FileBackend is the VFS boundary a file-backed mapping reads through.
// Mappings are populated eagerly at mmap time; there is no demand-paged
// read-on-fault path.
type FileBackend interface {
	PReadAt(buf []byte, offsetBytes int64) (int, error)
	Release()
}

// mapEntry is one contiguous, uniformly-backed range of guest pages.
// The zero value is the free-list terminator.
type mapEntry struct {
	startPage, endPage uint32
	file               FileBackend
	offsetPages        uint32
	next               *mapEntry
}

// blockEntry tracks one 64KiB host allocation unit: its section handle,
// if any live page has been mapped into it, and how many of its 16
// guest pages are currently covered by some map entry.
type blockEntry struct {
	handle    host.Section
	pageCount uint16
}

// Config tunes the fixed-capacity resources a Manager allocates once at
// construction.
type Config struct {
	// MaxMapEntries bounds the map-entry arena; exhausting it fails
	// mmap/munmap with ErrNoMem rather than growing. Defaults to 65536.
	MaxMapEntries int
}

// Manager is one process's memory-management state.
type Manager struct {
	h host.Host

	mapList     *mapEntry
	mapFreeList *mapEntry
	entryPool   []mapEntry

	pageProt [layout.PageCount]byte
	blocks   [layout.BlockCount]blockEntry

	brk uintptr
}
