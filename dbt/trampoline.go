package dbt

import (
	"unsafe"

	"github.com/flinux-go/flinux/layout"
)

// trampolineSize is the footprint of a direct-branch trampoline: two
// PUSH imm32 (the guest target, then the patch site) and a near JMP to
// the fixed direct-dispatch thunk, padded to a round size.
const trampolineSize = 16

// getDirectTarget returns the host address a direct branch to
// guestTarget should land on. If guestTarget is already translated,
// that block's host start is returned directly — the common case once
// a loop has run once. Otherwise a trampoline is allocated: executing
// it hands guestTarget and patchSite to the direct-dispatch thunk,
// which translates the block on demand and patches patchSite so every
// later execution of this branch skips the trampoline.
func (t *Translator) getDirectTarget(guestTarget, patchSite uintptr) uintptr {
	if b := t.lookupBlock(guestTarget); b != nil {
		return b.hostStart
	}
	start, ok := t.allocTrampoline(trampolineSize)
	if !ok {
		t.flush()
		start, ok = t.allocTrampoline(trampolineSize)
		if !ok {
			t.fault(errTrampolineSpace)
			return 0
		}
	}
	stub := &Emitter{
		Buf:  t.cache.buf[start:start : start+trampolineSize],
		Base: uintptr(unsafe.Pointer(&t.cache.buf[start])),
	}
	emitTrampolineStub(stub, guestTarget, patchSite)
	return stub.Base
}

// emitTrampolineStub writes the direct-branch trampoline body: stage
// the guest target and the patch site through two pushes, then tail
// into the direct-dispatch thunk, which reads them off the stack and
// patches patchSite once guestTarget is translated — a different
// calling convention from the indirect-dispatch thunk an indirect
// branch tails into, so it gets its own entry address.
func emitTrampolineStub(e *Emitter, guestTarget, patchSite uintptr) {
	e.Byte(0x68) // PUSH imm32
	e.Int32(int32(guestTarget))
	e.Byte(0x68) // PUSH imm32
	e.Int32(int32(patchSite))
	e.Byte(0xE9) // JMP rel32
	site := e.Addr()
	e.Int32(0)
	e.patchRel32(site, layout.DBTFindDirectBase)
	for len(e.Buf) < trampolineSize {
		e.Byte(0x90) // NOP padding
	}
}
