package memory

/*
 * S370  - Low level memory
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"encoding/binary"
	"fmt"
)

// Memory is flat, byte-addressed guest RAM: x86 is byte-addressable and
// little-endian, unlike the word-addressed, storage-key-gated model
// this package backed before. Bounds-checked Get/Put pairs are kept;
// the key/access-bit tracking is not, since it has no x86 counterpart.
type Memory struct {
	base uintptr
	buf  []byte
}

// New allocates size bytes of guest RAM starting at guest virtual
// address base.
func New(base uintptr, size uint32) *Memory {
	return &Memory{base: base, buf: make([]byte, size)}
}

// Size returns the number of bytes backing this region.
func (m *Memory) Size() uint32 { return uint32(len(m.buf)) }

// Base returns the guest virtual address this region starts at.
func (m *Memory) Base() uintptr { return m.base }

func (m *Memory) contains(addr uintptr, n int) bool {
	if addr < m.base {
		return false
	}
	off := addr - m.base
	return off <= uintptr(len(m.buf)) && uintptr(len(m.buf))-off >= uintptr(n)
}

// ReadByte reads one byte of guest memory. It satisfies the
// guest-memory reader a Translator walks code through.
func (m *Memory) ReadByte(addr uintptr) (byte, error) {
	if !m.contains(addr, 1) {
		return 0, fmt.Errorf("memory: read out of range: %#x", addr)
	}
	return m.buf[addr-m.base], nil
}

// WriteByte writes one byte of guest memory.
func (m *Memory) WriteByte(addr uintptr, v byte) error {
	if !m.contains(addr, 1) {
		return fmt.Errorf("memory: write out of range: %#x", addr)
	}
	m.buf[addr-m.base] = v
	return nil
}

// Read copies len(dst) bytes of guest memory starting at addr into dst.
func (m *Memory) Read(addr uintptr, dst []byte) error {
	if !m.contains(addr, len(dst)) {
		return fmt.Errorf("memory: read out of range: %#x+%d", addr, len(dst))
	}
	copy(dst, m.buf[addr-m.base:])
	return nil
}

// Write copies src into guest memory starting at addr.
func (m *Memory) Write(addr uintptr, src []byte) error {
	if !m.contains(addr, len(src)) {
		return fmt.Errorf("memory: write out of range: %#x+%d", addr, len(src))
	}
	copy(m.buf[addr-m.base:], src)
	return nil
}

// GetUint32 reads a little-endian 32-bit word.
func (m *Memory) GetUint32(addr uintptr) (uint32, error) {
	var b [4]byte
	if err := m.Read(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// PutUint32 writes a little-endian 32-bit word.
func (m *Memory) PutUint32(addr uintptr, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return m.Write(addr, b[:])
}
