package dbt

// FindNext returns the host address translated code for guestPC lives
// at, translating a fresh block on a cache miss. This is the
// host-callable target of the indirect-dispatch thunk at
// layout.DBTFindIndirectBase: every indirect CALL/JMP/RET the
// translator emits spills its target register through the scratch TLS
// slot and tail jumps to that thunk, which reads the slot back and
// calls FindNext — unlike a direct branch, an indirect call site is
// never patched, since the same call site can legitimately target a
// different block on every execution.
func (t *Translator) FindNext(guestPC uintptr) (uintptr, error) {
	if b := t.lookupBlock(guestPC); b != nil {
		return b.hostStart, nil
	}
	host, err := t.translateBlock(guestPC)
	if err != nil {
		t.logger.Error("block translation failed", "guest_pc", guestPC, "err", err)
		t.fault(err)
		return 0, err
	}
	return host, nil
}
