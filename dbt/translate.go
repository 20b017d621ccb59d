package dbt

import (
	"fmt"
	"unsafe"

	"github.com/flinux-go/flinux/dbt/inst"
	"github.com/flinux-go/flinux/layout"
)

// dbtFindIndirectBase and dbtResolveSegmentBase are the fixed host
// addresses of the indirect-dispatch thunk and the GS-selector
// resolution helper respectively. They are distinct native entry
// points with incompatible calling conventions — one is a tail JMP
// that reads a TLS scratch slot, the other a CALL that returns — and
// in turn distinct from the direct-dispatch thunk a trampoline tails
// into (layout.DBTFindDirectBase), so none of the three share an
// address.
const (
	dbtFindIndirectBase   = layout.DBTFindIndirectBase
	dbtResolveSegmentBase = layout.DBTResolveSegmentBase
)

// translateBlock decodes and emits host code for one basic block
// starting at guestPC, stopping at the first control-flow instruction
// (the definition of a basic block this translator uses), and returns
// the host address execution should enter at.
func (t *Translator) translateBlock(guestPC uintptr) (uintptr, error) {
	if t.blockFree >= len(t.blocks) || t.cache.end-t.cache.out < t.cfg.MaxBlockBytes {
		t.flush()
	}

	start, ok := t.allocBlock(t.cfg.MaxBlockBytes)
	if !ok {
		return 0, errCacheExhausted
	}
	e := &Emitter{
		Buf:  t.cache.buf[start:start : start+t.cfg.MaxBlockBytes],
		Base: uintptr(unsafe.Pointer(&t.cache.buf[start])),
	}
	pc := guestPC

	for {
		d, err := t.decodeOne(pc)
		if err != nil {
			return 0, err
		}
		nextPC := pc + uintptr(d.length)

		switch d.desc.Type {
		case inst.Normal:
			raw, err := t.readBytes(pc, d.length)
			if err != nil {
				return 0, err
			}
			e.Bytes(raw)
			pc = nextPC
			continue

		case inst.Privileged:
			return 0, fmt.Errorf("%w: privileged instruction at %#x", ErrUnsupported, pc)

		case inst.CallDirect:
			t.emitCallDirect(e, uintptr(int64(nextPC)+d.imm), nextPC)

		case inst.CallIndirect:
			t.emitCallIndirect(e, d.modrm, nextPC)

		case inst.Ret:
			t.emitRet(e, 0)

		case inst.RetImm16:
			t.emitRet(e, uint16(d.imm))

		case inst.JmpDirect:
			t.emitJmpDirect(e, uintptr(int64(nextPC)+d.imm))

		case inst.JmpIndirect:
			t.emitJmpIndirect(e, d.modrm)

		case inst.Jcc, inst.JccRel8:
			t.emitJcc(e, d.desc.Cond, uintptr(int64(nextPC)+d.imm), nextPC)

		case inst.LoopRel8:
			t.emitLoopSkip(e, d.desc.Cond, uintptr(int64(nextPC)+d.imm), nextPC)

		case inst.Int:
			if err := t.emitInt(e, byte(d.imm)); err != nil {
				return 0, err
			}

		case inst.MovFromSeg:
			if err := t.emitMovFromGS(e, d.modrm); err != nil {
				return 0, err
			}
			pc = nextPC
			continue

		case inst.MovToSeg:
			if err := t.emitMovToGS(e, d.modrm); err != nil {
				return 0, err
			}
			pc = nextPC
			continue

		default:
			return 0, fmt.Errorf("%w: opcode class %s at %#x", ErrUnsupported, d.desc.Type, pc)
		}
		break
	}

	b := t.newBlock(guestPC, e.Base)
	if b == nil {
		t.flush()
		return 0, errBlockArena
	}
	t.insertBlock(b)
	return b.hostStart, nil
}

// emitCallDirect and the other direct-branch emitters reserve a disp32
// placeholder, resolve (or trampoline) the target through
// getDirectTarget, and patch the placeholder in place — the same
// pattern FindDirect later re-patches once a trampolined target is
// actually translated.

func (t *Translator) emitCallDirect(e *Emitter, guestTarget, returnPC uintptr) {
	e.Byte(0x68) // PUSH imm32 — the guest return address
	e.Int32(int32(returnPC))
	e.Byte(0xE9) // JMP rel32
	site := e.Addr()
	e.Int32(0)
	target := t.getDirectTarget(guestTarget, site)
	e.patchRel32(site, target)
}

func (t *Translator) emitJmpDirect(e *Emitter, guestTarget uintptr) {
	e.Byte(0xE9) // JMP rel32
	site := e.Addr()
	e.Int32(0)
	target := t.getDirectTarget(guestTarget, site)
	e.patchRel32(site, target)
}

// emitJcc emits the taken branch as a Jcc rel32 and the not-taken
// fallthrough as an unconditional JMP rel32, each resolved through its
// own trampoline — mirroring how a basic block boundary always has
// exactly two successors for a conditional branch.
func (t *Translator) emitJcc(e *Emitter, cond uint8, target, fallthroughPC uintptr) {
	e.Byte(0x0F)
	e.Byte(0x80 | cond)
	site := e.Addr()
	e.Int32(0)
	taken := t.getDirectTarget(target, site)
	e.patchRel32(site, taken)

	e.Byte(0xE9)
	site2 := e.Addr()
	e.Int32(0)
	notTaken := t.getDirectTarget(fallthroughPC, site2)
	e.patchRel32(site2, notTaken)
}

// emitLoopSkip re-emits a LOOP/LOOPE/LOOPNE/JECXZ opcode unchanged,
// since it carries its own ECX-decrement-and-test (or ECX==0) semantics
// that nothing else here reproduces, followed by a short rel8 that
// selects between two near JMP rel32s: the opcode's 8-bit displacement
// cannot reach an arbitrary trampoline target itself, so it only has to
// jump over the not-taken JMP to land on the taken one.
func (t *Translator) emitLoopSkip(e *Emitter, opcode byte, target, fallthroughPC uintptr) {
	e.Byte(opcode)
	e.Byte(5) // rel8: skip exactly the 5-byte JMP rel32 that follows
	e.Byte(0xE9)
	site := e.Addr()
	e.Int32(0)
	notTaken := t.getDirectTarget(fallthroughPC, site)
	e.patchRel32(site, notTaken)

	e.Byte(0xE9)
	site2 := e.Addr()
	e.Int32(0)
	taken := t.getDirectTarget(target, site2)
	e.patchRel32(site2, taken)
}

func (t *Translator) emitInt(e *Emitter, vector byte) error {
	if vector != 0x80 {
		return fmt.Errorf("%w: interrupt vector %#x", ErrUnsupported, vector)
	}
	e.Byte(0xE8) // CALL rel32, the syscall entry point
	site := e.Addr()
	e.Int32(0)
	e.patchRel32(site, t.host.SyscallHandler())
	// The handler leaves the guest's post-syscall PC in the scratch TLS
	// slot; tail into the dispatcher the same way an indirect branch
	// does, since where execution resumes depends on what was called.
	t.emitIndirectTailFromTLS(e)
	return nil
}

// emitIndirectBranch helpers: borrow a scratch register just long
// enough to spill the target through TLS, restoring it before the tail
// jump so no guest register is destroyed crossing the dispatch. Every
// guest register can be live at a block exit, so the borrow is always
// saved and restored around the load, never left clobbered.

// adjustESPRelative compensates a decoded r/m operand's displacement
// for a PUSH of the scratch register that has not yet executed at
// decode time: once that PUSH runs, ESP is 4 lower, so an [ESP+disp]
// operand needs disp+4 to still reach the address it did before the
// push. CALL/JMP through ESP itself in register-direct form (mod==3)
// is not compensated, matching this translator's scratch-register
// convention — such code is rare enough in practice to leave unhandled
// rather than complicate every indirect-branch site for it.
func adjustESPRelative(m modRM) modRM {
	if m.hasSIB && m.sibBase == 4 {
		m.disp += 4
	}
	return m
}

func (t *Translator) emitCallIndirect(e *Emitter, m modRM, returnPC uintptr) {
	scratch := findScratchRegister(0)
	e.Byte(0x50 + byte(scratch)) // PUSH scratch — save it across the borrow
	e.Byte(0x8B)                 // MOV scratch, r/m32
	adjustESPRelative(m).reencode(e, byte(scratch))
	t.emitStoreTLS(e, t.tls.Scratch, scratch)
	e.Byte(0x58 + byte(scratch)) // POP scratch — restore it
	e.Byte(0x68)                 // PUSH imm32 — the guest return address
	e.Int32(int32(returnPC))
	t.emitIndirectTailFromTLS(e)
}

func (t *Translator) emitJmpIndirect(e *Emitter, m modRM) {
	scratch := findScratchRegister(0)
	e.Byte(0x50 + byte(scratch)) // PUSH scratch — save it across the borrow
	e.Byte(0x8B)
	adjustESPRelative(m).reencode(e, byte(scratch))
	t.emitStoreTLS(e, t.tls.Scratch, scratch)
	e.Byte(0x58 + byte(scratch)) // POP scratch — restore it
	t.emitIndirectTailFromTLS(e)
}

// emitRet reads the guest return address out from under the top of
// the guest stack without popping it first, so the scratch register's
// original value — which may be the function's cdecl return value,
// still live across the RET — can be restored before the address is
// actually consumed.
func (t *Translator) emitRet(e *Emitter, imm16 uint16) {
	scratch := findScratchRegister(0)
	e.Byte(0x50 + byte(scratch)) // PUSH scratch — save it across the borrow
	e.Byte(0x8B)                 // MOV scratch, [ESP+4] — the return address,
	e.Byte((1 << 6) | (byte(scratch) << 3) | 4) // read in place, one slot
	e.Byte(0x24)                                // below the just-pushed scratch
	e.Byte(4)
	t.emitStoreTLS(e, t.tls.Scratch, scratch)
	e.Byte(0x58 + byte(scratch)) // POP scratch — restore it
	e.Byte(0x81)                 // ADD ESP, imm32 — now actually pop the guest
	e.Byte(0xC4)                 // return address, plus any RETN operand bytes
	e.Int32(int32(4 + int(imm16)))
	t.emitIndirectTailFromTLS(e)
}

// emitIndirectTailFromTLS tail jumps to the fixed indirect-dispatch
// thunk, which reads the guest target back out of the scratch TLS slot
// this block just stored it to.
func (t *Translator) emitIndirectTailFromTLS(e *Emitter) {
	e.Byte(0xE9) // JMP rel32
	site := e.Addr()
	e.Int32(0)
	e.patchRel32(site, dbtFindIndirectBase)
}

// emitStoreTLS emits FS:[offset] <- reg (MOV r/m32, r32 with the FS
// override and a disp32-only, no-base addressing form).
func (t *Translator) emitStoreTLS(e *Emitter, offset, reg int) {
	e.Byte(0x64) // FS segment override
	e.Byte(0x89) // MOV r/m32, r32
	e.Byte(0x05 | (byte(reg) << 3))
	e.Int32(int32(offset))
}

// emitLoadTLS emits reg <- FS:[offset].
func (t *Translator) emitLoadTLS(e *Emitter, reg, offset int) {
	e.Byte(0x64)
	e.Byte(0x8B) // MOV r32, r/m32
	e.Byte(0x05 | (byte(reg) << 3))
	e.Int32(int32(offset))
}

// emitMovFromGS emulates "MOV r32, GS" (opcode 0x8C with reg==5) by
// reading the GS TLS slot directly; memory destinations are out of
// scope.
func (t *Translator) emitMovFromGS(e *Emitter, m modRM) error {
	if m.reg != 5 {
		return fmt.Errorf("%w: segment register %d", ErrUnsupported, m.reg)
	}
	if m.mod != 3 {
		return fmt.Errorf("%w: MOV r/m,GS to memory", ErrUnsupported)
	}
	t.emitLoadTLS(e, int(m.rm), t.tls.GS)
	return nil
}

// emitMovToGS emulates "MOV GS, r/m16" (opcode 0x8E with reg==5).
// Setting GS requires resolving a new segment base, which is a host
// call; flags and the caller-saved registers the call might clobber
// are saved and restored around it.
func (t *Translator) emitMovToGS(e *Emitter, m modRM) error {
	if m.reg != 5 {
		return fmt.Errorf("%w: segment register %d", ErrUnsupported, m.reg)
	}
	if m.mod != 3 {
		return fmt.Errorf("%w: MOV GS,r/m to memory", ErrUnsupported)
	}
	src := int(m.rm)
	e.Byte(0x9C) // PUSHFD
	for _, r := range [3]int{0, 1, 2} {
		if r != src {
			e.Byte(0x50 + byte(r)) // PUSH
		}
	}
	t.emitStoreTLS(e, t.tls.Scratch, src)
	e.Byte(0xE8) // CALL rel32 — the GS selector resolution helper
	site := e.Addr()
	e.Int32(0)
	e.patchRel32(site, dbtResolveSegmentBase)
	for r := 2; r >= 0; r-- {
		if r != src {
			e.Byte(0x58 + byte(r)) // POP, reverse order
		}
	}
	e.Byte(0x9D) // POPFD
	return nil
}
