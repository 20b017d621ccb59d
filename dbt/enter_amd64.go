//go:build amd64

package dbt

// enterTranslated loads sp as the stack pointer and jumps to pc,
// implemented in enter_amd64.s. It does not return through the normal
// Go calling convention — the uintptr result exists only to satisfy
// the Go assembler's frame-size accounting for a function that never
// executes a RET.
func enterTranslated(pc, sp uintptr) uintptr
