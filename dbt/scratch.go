package dbt

import "github.com/flinux-go/flinux/dbt/inst"

// scratchCandidates lists the general registers eligible as a scratch
// register, in preference order. ESP and EBP are never candidates: one
// is the live stack pointer and the other this translator's convention
// for an undisturbed frame pointer.
var scratchCandidates = []struct {
	mask RegMask
	enc  int
}{
	{inst.RegEAX, 0},
	{inst.RegECX, 1},
	{inst.RegEDX, 2},
	{inst.RegEBX, 3},
	{inst.RegESI, 6},
	{inst.RegEDI, 7},
}

type RegMask = inst.RegMask

// findScratchRegister returns the x86 encoding of the first candidate
// register not in used, or -1 if every candidate is in use.
func findScratchRegister(used RegMask) int {
	for _, c := range scratchCandidates {
		if used&c.mask == 0 {
			return c.enc
		}
	}
	return -1
}

const eaxReg = 0
