package dbt

import (
	"encoding/binary"
	"unsafe"
)

// FindDirect resolves a direct branch that landed in its trampoline: it
// translates guestPC if no block exists yet, patches the disp32 field
// at hostPatchSite so every future execution of that branch jumps
// straight to the block, and returns the block's host address so the
// trampoline's own tail jump can also land there immediately.
//
// This is the host-callable counterpart to the trampoline stub
// emitTrampolineStub writes: the two PUSH values it stages are exactly
// guestPC and hostPatchSite here.
func (t *Translator) FindDirect(guestPC, hostPatchSite uintptr) (uintptr, error) {
	host, err := t.FindNext(guestPC)
	if err != nil {
		return 0, err
	}
	patchDisp32(hostPatchSite, host)
	return host, nil
}

// patchDisp32 overwrites the 4-byte displacement field ending at
// patchSite+4 with the rel32 that reaches target.
func patchDisp32(patchSite, target uintptr) {
	rel := int32(int64(target) - int64(patchSite) - 4)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(patchSite)), 4)
	binary.LittleEndian.PutUint32(buf, uint32(rel))
}
