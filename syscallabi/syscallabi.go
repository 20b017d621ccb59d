// Package syscallabi shims the Linux i386 memory-management syscalls
// onto mm.Manager: it decodes the historic register/struct-argument
// conventions, translates PROT_*/MAP_* bit values to mm's own types,
// and converts a returned error into the negative-errno convention the
// guest's libc expects back in eax.
package syscallabi

import (
	"errors"

	"github.com/flinux-go/flinux/layout"
	"github.com/flinux-go/flinux/mm"
)

// Linux PROT_* bit values, as seen on the wire from guest code.
const (
	linuxProtRead  = 0x1
	linuxProtWrite = 0x2
	linuxProtExec  = 0x4
)

// Linux MAP_* bit values.
const (
	linuxMapShared    = 0x01
	linuxMapPrivate   = 0x02
	linuxMapFixed     = 0x10
	linuxMapAnonymous = 0x20
)

// Negative errno values this package returns.
const (
	EINVAL int32 = -22
	ENOMEM int32 = -12
	EBADF  int32 = -9
)

// FileResolver maps a guest file descriptor to the FileBackend a
// file-backed mapping reads through. The VFS layer that implements it
// is out of scope here.
type FileResolver interface {
	Resolve(fd int32) (mm.FileBackend, bool)
}

func errno(err error) int32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, mm.ErrInvalid):
		return EINVAL
	case errors.Is(err, mm.ErrBadFile):
		return EBADF
	case errors.Is(err, mm.ErrNoMem):
		return ENOMEM
	default:
		return EINVAL
	}
}

func translateProt(p uint32) mm.Prot {
	var out mm.Prot
	if p&linuxProtRead != 0 {
		out |= mm.ProtRead
	}
	if p&linuxProtWrite != 0 {
		out |= mm.ProtWrite
	}
	if p&linuxProtExec != 0 {
		out |= mm.ProtExec
	}
	return out
}

func translateFlags(f uint32) mm.MapFlags {
	var out mm.MapFlags
	if f&linuxMapShared != 0 {
		out |= mm.MapShared
	}
	if f&linuxMapPrivate != 0 {
		out |= mm.MapPrivate
	}
	if f&linuxMapFixed != 0 {
		out |= mm.MapFixed
	}
	if f&linuxMapAnonymous != 0 {
		out |= mm.MapAnonymous
	}
	return out
}

func resolveFile(files FileResolver, flags mm.MapFlags, fd int32) (mm.FileBackend, int32) {
	if flags&mm.MapAnonymous != 0 {
		return nil, 0
	}
	f, ok := files.Resolve(fd)
	if !ok {
		return nil, EBADF
	}
	return f, 0
}

func mmap(m *mm.Manager, addr uintptr, length uint, prot, flags uint32, fd int32, offsetBytes uint32, files FileResolver) (uintptr, int32) {
	if offsetBytes%layout.PageSize != 0 {
		return 0, EINVAL
	}
	mprot, mflags := translateProt(prot), translateFlags(flags)
	fb, rc := resolveFile(files, mflags, fd)
	if rc != 0 {
		return 0, rc
	}
	got, err := m.Mmap(addr, length, mprot, mflags, fb, offsetBytes/layout.PageSize)
	if err != nil {
		return 0, errno(err)
	}
	return got, 0
}

// Mmap2 implements the SYS_mmap2 register-argument ABI: pgoffset counts
// PageSize-sized pages rather than bytes.
func Mmap2(m *mm.Manager, files FileResolver, addr uintptr, length uint, prot, flags uint32, fd int32, pgoffset uint32) (uintptr, int32) {
	mprot, mflags := translateProt(prot), translateFlags(flags)
	fb, rc := resolveFile(files, mflags, fd)
	if rc != 0 {
		return 0, rc
	}
	got, err := m.Mmap(addr, length, mprot, mflags, fb, pgoffset)
	if err != nil {
		return 0, errno(err)
	}
	return got, 0
}

// OldMmapArgs is the packed argument block the historic SYS_mmap (a.k.a.
// "old mmap") reads from a single guest pointer, rather than registers.
type OldMmapArgs struct {
	Addr        uintptr
	Length      uint
	Prot        uint32
	Flags       uint32
	Fd          int32
	OffsetBytes uint32
}

// OldMmap implements the single-struct-argument SYS_mmap ABI.
func OldMmap(m *mm.Manager, files FileResolver, args OldMmapArgs) (uintptr, int32) {
	return mmap(m, args.Addr, args.Length, args.Prot, args.Flags, args.Fd, args.OffsetBytes, files)
}

// Munmap implements SYS_munmap.
func Munmap(m *mm.Manager, addr uintptr, length uint) int32 {
	if err := m.Munmap(addr, length); err != nil {
		return errno(err)
	}
	return 0
}

// Mprotect implements SYS_mprotect.
func Mprotect(m *mm.Manager, addr uintptr, length uint, prot uint32) int32 {
	if err := m.Mprotect(addr, length, translateProt(prot)); err != nil {
		return errno(err)
	}
	return 0
}

// Brk implements SYS_brk: addr == 0 queries the current break without
// attempting to move it.
func Brk(m *mm.Manager, addr uintptr) uintptr {
	if addr == 0 {
		return m.Brk()
	}
	got, err := m.UpdateBrk(addr)
	if err != nil {
		return m.Brk()
	}
	return got
}
