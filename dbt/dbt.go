package dbt

// Run transfers control to the translated code for guestPC, with
// guestSP loaded as the host stack pointer. On success it does not
// return: execution continues inside the code cache, chaining through
// further blocks via the direct and indirect dispatch paths, until the
// guest process exits. The error return only ever fires for the first
// block, before control has actually transferred.
func (t *Translator) Run(guestPC, guestSP uintptr) error {
	host, err := t.FindNext(guestPC)
	if err != nil {
		return err
	}
	enterTranslated(host, guestSP)
	return nil
}
