package dbt

import "errors"

var (
	// ErrUnsupported marks an opcode or prefix the translator
	// recognizes but deliberately does not implement.
	ErrUnsupported = errors.New("dbt: unsupported instruction")
	// ErrInvalid marks a byte sequence that is not a valid x86
	// instruction at all (a true decode fault, not a scope gap).
	ErrInvalid = errors.New("dbt: invalid instruction")

	errTrampolineSpace = errors.New("dbt: trampoline space exhausted after flush")
	errBlockArena       = errors.New("dbt: block arena exhausted after flush")
	errCacheExhausted   = errors.New("dbt: code cache exhausted after flush")
)
