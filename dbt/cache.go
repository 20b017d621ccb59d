package dbt

// allocBlock reserves size bytes growing forward from the cache's out
// cursor, for a translated block.
func (t *Translator) allocBlock(size int) (int, bool) {
	if t.cache.end-t.cache.out < size {
		return 0, false
	}
	start := t.cache.out
	t.cache.out += size
	return start, true
}

// allocTrampoline reserves size bytes shrinking the cache's end cursor
// backward, for a direct-branch trampoline.
func (t *Translator) allocTrampoline(size int) (int, bool) {
	if t.cache.end-t.cache.out < size {
		return 0, false
	}
	t.cache.end -= size
	return t.cache.end, true
}

// flush discards every translated block and trampoline, resetting the
// cache to its full extent. Called automatically whenever the block
// arena or the remaining cache space runs low enough that a new block
// could not be safely started.
func (t *Translator) flush() {
	t.index = [hashBuckets]*block{}
	t.blockFree = 0
	t.cache.out = 0
	t.cache.end = len(t.cache.buf)
}
