//go:build windows

// Package ntwindows implements mm/host.Host against the real NT native
// API: NtCreateSection/NtMapViewOfSection/NtUnmapViewOfSection for
// section objects, VirtualProtect/VirtualProtectEx for host protection,
// and VirtualAlloc for the fixed kernel-private regions, all reached
// through golang.org/x/sys/windows.
package ntwindows

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/flinux-go/flinux/layout"
	"github.com/flinux-go/flinux/mm/host"
)

var (
	modntdll = windows.NewLazySystemDLL("ntdll.dll")

	procNtCreateSection      = modntdll.NewProc("NtCreateSection")
	procNtMapViewOfSection   = modntdll.NewProc("NtMapViewOfSection")
	procNtUnmapViewOfSection = modntdll.NewProc("NtUnmapViewOfSection")
	procNtClose              = modntdll.NewProc("NtClose")
	procNtQueryObject        = modntdll.NewProc("NtQueryObject")
)

const (
	sectionMapReadWriteExecute = 0x000F001F
	secCommit                  = 0x08000000
	viewUnmap                  = 2

	objectBasicInformation = 0
)

// Section wraps the NT section handle. It does not record where the
// section is mapped: DuplicateSection is given the address of the
// existing view to read through.
type Section struct {
	handle windows.Handle
}

func (s *Section) valid() bool { return s != nil && s.handle != 0 }

type process struct {
	h windows.Handle
}

func (p *process) Current() bool { return p.h == windows.CurrentProcess() }

// Host implements host.Host on top of the NT native API.
type Host struct{}

// New returns the Windows host implementation.
func New() *Host { return &Host{} }

func (h *Host) Self() host.ProcessHandle { return &process{h: windows.CurrentProcess()} }

func winProt(p host.Prot) uint32 {
	switch {
	case p&host.ProtExec != 0 && p&host.ProtWrite != 0:
		return windows.PAGE_EXECUTE_READWRITE
	case p&host.ProtExec != 0 && p&host.ProtRead != 0:
		return windows.PAGE_EXECUTE_READ
	case p&host.ProtExec != 0:
		return windows.PAGE_EXECUTE
	case p&host.ProtWrite != 0:
		return windows.PAGE_READWRITE
	case p&host.ProtRead != 0:
		return windows.PAGE_READONLY
	default:
		return windows.PAGE_NOACCESS
	}
}

func (h *Host) ReserveRegion(addr uintptr, size uint, prot host.Prot) error {
	_, err := windows.VirtualAlloc(addr, uintptr(size), windows.MEM_RESERVE|windows.MEM_COMMIT, winProt(prot))
	return err
}

func (h *Host) ReleaseRegion(addr uintptr) error {
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}

func (h *Host) CreateSection(size uint) (host.Section, error) {
	var handle windows.Handle
	maxSize := int64(size)
	r1, _, _ := procNtCreateSection.Call(
		uintptr(unsafe.Pointer(&handle)),
		sectionMapReadWriteExecute,
		0,
		uintptr(unsafe.Pointer(&maxSize)),
		windows.PAGE_EXECUTE_READWRITE,
		secCommit,
		0,
	)
	if r1 != 0 {
		return nil, fmt.Errorf("ntwindows: NtCreateSection failed: status %#x", r1)
	}
	return &Section{handle: handle}, nil
}

func (h *Host) mapInto(proc windows.Handle, s host.Section, addr uintptr) error {
	sec, ok := s.(*Section)
	if !ok || !sec.valid() {
		return host.ErrNoHandle
	}
	viewSize := uintptr(0)
	baseAddr := addr
	r1, _, _ := procNtMapViewOfSection.Call(
		uintptr(sec.handle), uintptr(proc),
		uintptr(unsafe.Pointer(&baseAddr)), 0, 0, 0,
		uintptr(unsafe.Pointer(&viewSize)), viewUnmap, 0,
		windows.PAGE_EXECUTE_READWRITE,
	)
	if r1 != 0 {
		return fmt.Errorf("ntwindows: NtMapViewOfSection failed: status %#x", r1)
	}
	return nil
}

func (h *Host) MapSection(s host.Section, addr uintptr) error {
	return h.mapInto(windows.CurrentProcess(), s, addr)
}

func (h *Host) MapSectionInto(p host.ProcessHandle, s host.Section, addr uintptr) error {
	pr, ok := p.(*process)
	if !ok {
		return fmt.Errorf("ntwindows: not a process handle")
	}
	return h.mapInto(pr.h, s, addr)
}

func (h *Host) UnmapSection(addr uintptr) error {
	r1, _, _ := procNtUnmapViewOfSection.Call(uintptr(windows.CurrentProcess()), addr)
	if r1 != 0 {
		return fmt.Errorf("ntwindows: NtUnmapViewOfSection failed: status %#x", r1)
	}
	return nil
}

func (h *Host) CloseSection(s host.Section) error {
	sec, ok := s.(*Section)
	if !ok || !sec.valid() {
		return host.ErrNoHandle
	}
	procNtClose.Call(uintptr(sec.handle))
	return nil
}

func (h *Host) DuplicateSection(s host.Section, addr uintptr) (host.Section, error) {
	sec, ok := s.(*Section)
	if !ok || !sec.valid() {
		return nil, host.ErrNoHandle
	}
	dup, err := h.CreateSection(layout.BlockSize)
	if err != nil {
		return nil, err
	}
	dsec := dup.(*Section)
	var destAddr uintptr
	viewSize := uintptr(0)
	procNtMapViewOfSection.Call(
		uintptr(dsec.handle), uintptr(windows.CurrentProcess()),
		uintptr(unsafe.Pointer(&destAddr)), 0, 0, 0,
		uintptr(unsafe.Pointer(&viewSize)), viewUnmap, 0,
		windows.PAGE_READWRITE,
	)
	var oldProtect uint32
	windows.VirtualProtect(addr, viewSize, windows.PAGE_EXECUTE_READ, &oldProtect)
	copyMemory(destAddr, addr, viewSize)
	procNtUnmapViewOfSection.Call(uintptr(windows.CurrentProcess()), destAddr)
	_ = sec
	return dup, nil
}

func copyMemory(dst, src, size uintptr) {
	d := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	s := unsafe.Slice((*byte)(unsafe.Pointer(src)), size)
	copy(d, s)
}

func (h *Host) HandleCount(s host.Section) (int, error) {
	sec, ok := s.(*Section)
	if !ok || !sec.valid() {
		return 0, host.ErrNoHandle
	}
	var info struct {
		Attributes                   uint32
		GrantedAccess                uint32
		HandleCount                  uint32
		PointerCount                 uint32
		PagedPoolUsage                uint32
		NonPagedPoolUsage             uint32
		Reserved                      [3]uint32
		NameInformationLength         uint32
		TypeInformationLength         uint32
		SecurityDescriptorLength      uint32
		CreationTime                  int64
	}
	r1, _, _ := procNtQueryObject.Call(
		uintptr(sec.handle), objectBasicInformation,
		uintptr(unsafe.Pointer(&info)), unsafe.Sizeof(info), 0,
	)
	if r1 != 0 {
		return 0, fmt.Errorf("ntwindows: NtQueryObject failed: status %#x", r1)
	}
	return int(info.HandleCount), nil
}

func (h *Host) Protect(addr uintptr, length uint, prot host.Prot) error {
	var old uint32
	return windows.VirtualProtect(addr, uintptr(length), winProt(prot), &old)
}

func (h *Host) ProtectOther(p host.ProcessHandle, addr uintptr, length uint, prot host.Prot) error {
	pr, ok := p.(*process)
	if !ok {
		return fmt.Errorf("ntwindows: not a process handle")
	}
	var old uint32
	return windows.VirtualProtectEx(pr.h, addr, uintptr(length), winProt(prot), &old)
}

func (h *Host) WriteProcessMemory(p host.ProcessHandle, addr uintptr, data []byte) error {
	pr, ok := p.(*process)
	if !ok {
		return fmt.Errorf("ntwindows: not a process handle")
	}
	var n uintptr
	return windows.WriteProcessMemory(pr.h, addr, &data[0], uintptr(len(data)), &n)
}
