// Package host names the NT primitives that the memory manager treats as
// an external collaborator: section objects, virtual protection and
// process handles. The concrete syscalls live behind build tags; this
// package only fixes the contract so mm/ can be written, tested and
// reasoned about without ever importing "syscall" or "golang.org/x/sys"
// directly.
package host

import "errors"

// Prot is the Linux protection bit-set {read, write, exec}; mm is the
// single source of truth for it, host only derives the equivalent NT
// protection constant from it.
type Prot uint8

const (
	ProtRead Prot = 1 << iota
	ProtWrite
	ProtExec
)

// Section is an opaque host section (memory-section/file-mapping object)
// handle. Equality must be meaningful: the zero value (nil) means "no
// section".
type Section any

// ErrNoHandle is returned by operations against the zero Section value.
var ErrNoHandle = errors.New("host: no section handle")

// ProcessHandle identifies a process a section can be mapped into. The
// current process is always available via Host.Self.
type ProcessHandle interface {
	// Current reports whether this handle refers to the calling process.
	Current() bool
}

// Host is the boundary the memory manager calls into for everything
// native-OS-specific: creating and mapping 64KiB section objects,
// duplicating them into a child process, deriving and applying host
// page protection, and reserving fixed virtual address ranges.
type Host interface {
	// Self is the ProcessHandle for the calling process.
	Self() ProcessHandle

	// ReserveRegion commits size bytes of plain memory with protection
	// prot at the fixed virtual address addr.
	ReserveRegion(addr uintptr, size uint, prot Prot) error
	// ReleaseRegion releases a region obtained through ReserveRegion.
	ReleaseRegion(addr uintptr) error

	// CreateSection allocates a new BlockSize section with RWX
	// permissions, ready to be mapped by MapSection.
	CreateSection(size uint) (Section, error)
	// MapSection maps s at addr in the calling process.
	MapSection(s Section, addr uintptr) error
	// MapSectionInto maps s at addr inside proc (used by fork).
	MapSectionInto(proc ProcessHandle, s Section, addr uintptr) error
	// UnmapSection removes the view at addr in the calling process.
	UnmapSection(addr uintptr) error
	// CloseSection releases a section handle.
	CloseSection(s Section) error
	// DuplicateSection clones the BlockSize contents currently mapped
	// at addr into a freshly created section. Used by the fork-fault
	// clone-on-write path when a block's section is shared.
	DuplicateSection(s Section, addr uintptr) (Section, error)
	// HandleCount reports how many open handles reference s; 1 means
	// the caller is the sole owner.
	HandleCount(s Section) (int, error)

	// Protect applies prot to [addr, addr+length) in the calling process.
	// A single call never crosses a BlockSize boundary.
	Protect(addr uintptr, length uint, prot Prot) error
	// ProtectOther is Protect against a different process (used by fork).
	ProtectOther(proc ProcessHandle, addr uintptr, length uint, prot Prot) error

	// WriteProcessMemory copies data into proc at addr (used by Mmap to
	// populate a file-backed mapping).
	WriteProcessMemory(proc ProcessHandle, addr uintptr, data []byte) error
}
