package dbt

import (
	"fmt"

	"github.com/flinux-go/flinux/dbt/inst"
)

// modRM is a decoded ModR/M(+SIB) byte sequence, kept in a form that
// can be walked past (length) and re-encoded against a different reg
// field (reencode), without needing to re-read guest memory.
type modRM struct {
	present bool
	mod     byte
	reg     byte
	rm      byte

	hasSIB   bool
	sibScale byte
	sibIndex byte
	sibBase  byte

	dispBytes int
	disp      int32
}

// decodedInst is one decoded guest instruction: enough to know its
// total length, its classification, and (for the instructions the
// translator rewrites) the operand it needs.
type decodedInst struct {
	startPC  uintptr
	opsize16 bool
	desc     inst.Desc
	modrm    modRM
	imm      int64
	length   int
}

// decodePrefixes walks prefix bytes at pc, returning the address of the
// first non-prefix byte. LOCK, the address-size override, and every
// segment-override prefix are rejected outright: guest code is not
// expected to use them, and GS/FS access is emulated through explicit
// MOV to/from Sreg instead of prefixed memory operands.
func (t *Translator) decodePrefixes(pc uintptr) (next uintptr, opsize16 bool, err error) {
	next = pc
	for {
		b, e := t.host.ReadByte(next)
		if e != nil {
			return 0, false, e
		}
		switch b {
		case 0x66:
			opsize16 = true
			next++
		case 0xF2, 0xF3:
			next++
		case 0xF0:
			return 0, false, fmt.Errorf("%w: LOCK prefix at %#x", ErrUnsupported, next)
		case 0x67:
			return 0, false, fmt.Errorf("%w: address-size prefix at %#x", ErrUnsupported, next)
		case 0x2E, 0x36, 0x3E, 0x26, 0x64, 0x65:
			return 0, false, fmt.Errorf("%w: segment override prefix at %#x", ErrUnsupported, next)
		default:
			return next, opsize16, nil
		}
	}
}

func (t *Translator) readDisp(addr uintptr, n int) (int32, error) {
	var v uint32
	for i := 0; i < n; i++ {
		b, err := t.host.ReadByte(addr + uintptr(i))
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * uint(i))
	}
	switch n {
	case 1:
		return int32(int8(v)), nil
	case 2:
		return int32(int16(v)), nil
	default:
		return int32(v), nil
	}
}

// decodeModRM decodes the ModR/M byte at addr and the SIB/displacement
// bytes that follow it, per the standard 32-bit addressing rules: rm==4
// (with mod!=3) introduces a SIB byte, mod==0,rm==5 is a bare disp32
// with no base register, and sib.base==5 with mod==0 is the SIB form of
// the same "no base" case.
func (t *Translator) decodeModRM(addr uintptr) (modRM, uintptr, error) {
	var m modRM
	b, err := t.host.ReadByte(addr)
	if err != nil {
		return m, 0, err
	}
	m.present = true
	m.mod = b >> 6
	m.reg = (b >> 3) & 7
	m.rm = b & 7
	next := addr + 1

	if m.mod == 3 {
		return m, next, nil
	}

	if m.rm == 4 {
		sib, err := t.host.ReadByte(next)
		if err != nil {
			return m, 0, err
		}
		m.hasSIB = true
		m.sibScale = sib >> 6
		m.sibIndex = (sib >> 3) & 7
		m.sibBase = sib & 7
		next++
		if m.sibBase == 5 && m.mod == 0 {
			m.dispBytes = 4
		}
	} else if m.mod == 0 && m.rm == 5 {
		m.dispBytes = 4
	}
	switch m.mod {
	case 1:
		m.dispBytes = 1
	case 2:
		m.dispBytes = 4
	}
	if m.dispBytes > 0 {
		v, err := t.readDisp(next, m.dispBytes)
		if err != nil {
			return m, 0, err
		}
		m.disp = v
		next += uintptr(m.dispBytes)
	}
	return m, next, nil
}

// decodeOne decodes the single guest instruction starting at pc.
func (t *Translator) decodeOne(pc uintptr) (decodedInst, error) {
	cur, opsize16, err := t.decodePrefixes(pc)
	if err != nil {
		return decodedInst{}, err
	}

	op, err := t.host.ReadByte(cur)
	if err != nil {
		return decodedInst{}, err
	}
	cur++

	var desc inst.Desc
	if op == 0x0F {
		op2, err := t.host.ReadByte(cur)
		if err != nil {
			return decodedInst{}, err
		}
		cur++
		desc = inst.TwoByte[op2]
	} else {
		desc = inst.OneByte[op]
	}

	var m modRM
	if desc.HasModRM {
		m, cur, err = t.decodeModRM(cur)
		if err != nil {
			return decodedInst{}, err
		}
	}
	if desc.Type == inst.Extension {
		if !m.present || desc.Ext == nil {
			return decodedInst{}, fmt.Errorf("%w: group opcode %#x missing ModR/M", ErrInvalid, op)
		}
		desc = desc.Ext[m.reg]
	}

	switch desc.Type {
	case inst.Unknown:
		return decodedInst{}, fmt.Errorf("%w: opcode %#x", ErrUnsupported, op)
	case inst.Invalid:
		return decodedInst{}, fmt.Errorf("%w: opcode %#x", ErrInvalid, op)
	}

	immBytes := desc.ImmBytes
	if immBytes == inst.PrefixOperandSize {
		if opsize16 {
			immBytes = 2
		} else {
			immBytes = 4
		}
	}
	var imm int64
	if immBytes > 0 {
		v, err := t.readDisp(cur, immBytes)
		if err != nil {
			return decodedInst{}, err
		}
		imm = int64(v)
		cur += uintptr(immBytes)
	}

	return decodedInst{
		startPC:  pc,
		opsize16: opsize16,
		desc:     desc,
		modrm:    m,
		imm:      imm,
		length:   int(cur - pc),
	}, nil
}

func (t *Translator) readBytes(addr uintptr, n int) ([]byte, error) {
	buf := make([]byte, n)
	for i := range buf {
		b, err := t.host.ReadByte(addr + uintptr(i))
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}
