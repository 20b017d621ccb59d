package dbt

import "encoding/binary"

// Emitter appends host machine code into a fixed-capacity slice of the
// code cache. Base is the host address of Buf[0], so callers can take
// the address of a byte about to be written (for a later patch) without
// any unsafe pointer arithmetic of their own.
type Emitter struct {
	Buf  []byte
	Base uintptr
}

// Addr returns the host address the next emitted byte will occupy.
func (e *Emitter) Addr() uintptr { return e.Base + uintptr(len(e.Buf)) }

func (e *Emitter) Byte(b byte) { e.Buf = append(e.Buf, b) }

func (e *Emitter) Bytes(b []byte) { e.Buf = append(e.Buf, b...) }

func (e *Emitter) Int32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	e.Buf = append(e.Buf, b[:]...)
}

// patchRel32 overwrites the 4 bytes at e.Buf[len(e.Buf)-4:] — the
// placeholder just emitted by Int32(0) — with the rel32 that reaches
// target from a branch whose displacement field ends at patchSite+4.
func (e *Emitter) patchRel32(patchSite, target uintptr) {
	rel := int32(int64(target) - int64(patchSite) - 4)
	binary.LittleEndian.PutUint32(e.Buf[len(e.Buf)-4:], uint32(rel))
}

// reencode re-emits a previously decoded ModR/M(+SIB+disp) sequence
// with a different reg field, leaving the addressing mode (mod/rm/SIB/
// displacement) exactly as decoded. Used when the translator needs to
// redirect an operand through a different general register, e.g. to
// load an indirect branch target into the scratch register.
func (m modRM) reencode(e *Emitter, regField byte) {
	e.Byte((m.mod << 6) | ((regField & 7) << 3) | (m.rm & 7))
	if m.hasSIB {
		e.Byte((m.sibScale << 6) | (m.sibIndex << 3) | m.sibBase)
	}
	switch m.dispBytes {
	case 1:
		e.Byte(byte(m.disp))
	case 4:
		e.Int32(m.disp)
	}
}
