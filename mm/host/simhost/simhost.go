// Package simhost is an in-process simulation of the NT host boundary
// defined by mm/host. It backs a Section with a slab of bytes instead of
// a real section object, and a "process" with another instance of the
// same Host sharing nothing with the caller's address space. It is the
// default backend for tests and for non-Windows builds of the operator
// console: a substitute for section objects and process handles that
// tests can drive and inspect deterministically.
package simhost

import (
	"errors"
	"sync"

	"github.com/flinux-go/flinux/mm/host"
)

// ErrOverlap is returned when a region operation targets memory that is
// not currently reserved/mapped the way the caller assumed.
var ErrOverlap = errors.New("simhost: region not mapped")

type section struct {
	id   uint64
	mu   sync.Mutex
	data []byte
	refs int
}

func (s *section) valid() bool { return s != nil }

type process struct {
	h    *Host
	self bool
}

func (p *process) Current() bool { return p.self }

// view describes one mapped view of a section (or a plain private
// region) at a virtual address, inside one simulated process.
type view struct {
	sec  *section // nil for a plain ReserveRegion
	data []byte   // for plain regions, the backing bytes
	size uint
	prot host.Prot
}

// Host is a single simulated process's view of memory. A forked child
// is represented by a second *Host; MapSectionInto/ProtectOther/
// WriteProcessMemory address that second Host directly, rather than
// going through any real cross-process API.
type Host struct {
	mu     sync.Mutex
	nextID uint64
	views  map[uintptr]*view
}

// New returns a fresh simulated host representing one process.
func New() *Host {
	return &Host{views: make(map[uintptr]*view)}
}

func (h *Host) Self() host.ProcessHandle { return &process{h: h, self: true} }

func (h *Host) asHost(p host.ProcessHandle) *Host {
	if pr, ok := p.(*process); ok {
		return pr.h
	}
	return h
}

func (h *Host) ReserveRegion(addr uintptr, size uint, prot host.Prot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.views[addr] = &view{data: make([]byte, size), size: size, prot: prot}
	return nil
}

func (h *Host) ReleaseRegion(addr uintptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.views[addr]; !ok {
		return ErrOverlap
	}
	delete(h.views, addr)
	return nil
}

func (h *Host) CreateSection(size uint) (host.Section, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return &section{id: h.nextID, data: make([]byte, size), refs: 1}, nil
}

func (h *Host) MapSection(s host.Section, addr uintptr) error {
	return h.mapSectionInto(h, s, addr, false)
}

func (h *Host) MapSectionInto(p host.ProcessHandle, s host.Section, addr uintptr) error {
	return h.mapSectionInto(h.asHost(p), s, addr, true)
}

// mapSectionInto installs a view of sec at addr inside target. When
// crossForkBoundary is set, this call models the handle that a real
// fork's section-object duplication would create in the other
// process, and bumps the section's reference count accordingly.
func (h *Host) mapSectionInto(target *Host, s host.Section, addr uintptr, crossForkBoundary bool) error {
	sec, ok := s.(*section)
	if !ok || sec == nil {
		return host.ErrNoHandle
	}
	if crossForkBoundary {
		sec.mu.Lock()
		sec.refs++
		sec.mu.Unlock()
	}
	target.mu.Lock()
	defer target.mu.Unlock()
	target.views[addr] = &view{sec: sec, size: uint(len(sec.data)), prot: host.ProtRead | host.ProtWrite | host.ProtExec}
	return nil
}

func (h *Host) UnmapSection(addr uintptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.views[addr]; !ok {
		return ErrOverlap
	}
	delete(h.views, addr)
	return nil
}

func (h *Host) CloseSection(s host.Section) error {
	sec, ok := s.(*section)
	if !ok || sec == nil {
		return host.ErrNoHandle
	}
	sec.mu.Lock()
	defer sec.mu.Unlock()
	if sec.refs > 0 {
		sec.refs--
	}
	return nil
}

func (h *Host) DuplicateSection(s host.Section, addr uintptr) (host.Section, error) {
	sec, ok := s.(*section)
	if !ok || sec == nil {
		return nil, host.ErrNoHandle
	}
	h.mu.Lock()
	v, ok := h.views[addr]
	h.nextID++
	id := h.nextID
	h.mu.Unlock()
	if !ok {
		return nil, ErrOverlap
	}
	return &section{id: id, data: append([]byte(nil), v.backing()...), refs: 1}, nil
}

func (v *view) backing() []byte {
	if v.sec != nil {
		return v.sec.data
	}
	return v.data
}

func (h *Host) HandleCount(s host.Section) (int, error) {
	sec, ok := s.(*section)
	if !ok || sec == nil {
		return 0, host.ErrNoHandle
	}
	sec.mu.Lock()
	defer sec.mu.Unlock()
	return sec.refs, nil
}

func (h *Host) Protect(addr uintptr, length uint, prot host.Prot) error {
	return h.protect(h, addr, length, prot)
}

func (h *Host) ProtectOther(p host.ProcessHandle, addr uintptr, length uint, prot host.Prot) error {
	return h.protect(h.asHost(p), addr, length, prot)
}

func (h *Host) protect(target *Host, addr uintptr, length uint, prot host.Prot) error {
	target.mu.Lock()
	defer target.mu.Unlock()
	v, ok := target.views[addr]
	if !ok {
		// Tests frequently Protect a sub-range of a BlockSize view
		// mapped at the block's base address; find the containing view.
		for base, cand := range target.views {
			if addr >= base && addr+uintptr(length) <= base+uintptr(cand.size) {
				v, ok = cand, true
				break
			}
		}
		if !ok {
			return ErrOverlap
		}
	}
	v.prot = prot
	return nil
}

func (h *Host) WriteProcessMemory(p host.ProcessHandle, addr uintptr, data []byte) error {
	target := h.asHost(p)
	target.mu.Lock()
	defer target.mu.Unlock()
	v, ok := target.views[addr]
	if !ok {
		v = &view{data: make([]byte, len(data))}
		target.views[addr] = v
	}
	buf := v.backing()
	n := copy(buf, data)
	_ = n
	return nil
}

// Read returns the simulated process's bytes mapped at addr, for tests
// that want to assert on mapped content (e.g. COW fork scenarios).
func (h *Host) Read(addr uintptr, length int) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for base, v := range h.views {
		if addr >= base && addr+uintptr(length) <= base+uintptr(v.size) {
			off := addr - base
			return v.backing()[off : off+uintptr(length)], true
		}
	}
	return nil, false
}

// Write stores bytes into the simulated process's view containing addr,
// for tests that drive a "guest write" to exercise the fault path.
func (h *Host) Write(addr uintptr, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for base, v := range h.views {
		if addr >= base && addr+uintptr(len(data)) <= base+uintptr(v.size) {
			off := addr - base
			copy(v.backing()[off:], data)
			return true
		}
	}
	return false
}

// Prot returns the currently recorded host protection for the view
// containing addr, for test assertions.
func (h *Host) Prot(addr uintptr) (host.Prot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for base, v := range h.views {
		if addr >= base && addr < base+uintptr(v.size) {
			return v.prot, true
		}
	}
	return 0, false
}
