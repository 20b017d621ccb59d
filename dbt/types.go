// Package dbt is the dynamic binary translator: it decodes 32-bit x86
// guest code one basic block at a time, emits equivalent host code into
// an executable cache, and rewrites control flow so that direct
// branches chain directly into their target block (after a one-time
// trampoline-and-patch) and indirect branches dispatch through a
// pc-to-block hash index.
package dbt

import "log/slog"

// Host is the boundary dbt calls into for everything out of scope:
// reading guest memory, resolving the syscall entry point, and mapping
// the three TLS slots the GS-emulation and indirect-dispatch helpers
// spill through to fixed byte offsets in host thread-local storage.
type Host interface {
	// ReadByte reads one byte of guest code at addr.
	ReadByte(addr uintptr) (byte, error)
	// SyscallHandler returns the host address INT 0x80 calls into.
	SyscallHandler() uintptr
	// TLSSlotToOffset resolves slot (0=scratch, 1=GS, 2=GSAddr) to its
	// byte offset in host TLS.
	TLSSlotToOffset(slot int) int
}

// Config tunes the fixed-capacity resources a Translator allocates
// once at construction.
type Config struct {
	// CacheSize is the total size in bytes of the executable code
	// cache shared by translated blocks (growing forward from offset
	// 0) and trampolines (shrinking backward from the end). Defaults
	// to 1MiB.
	CacheSize int
	// MaxBlocks bounds the block arena. Defaults to 4096.
	MaxBlocks int
	// MaxBlockBytes is the maximum size reserved for one translated
	// block, and the flush threshold: when fewer than this many bytes
	// remain between the cache's out and end cursors, the cache is
	// flushed before the next block is translated. Defaults to 4096.
	MaxBlockBytes int

	Logger *slog.Logger
}

// block is one translated basic block: its guest entry PC, its host
// code address, and its hash-bucket chain link.
type block struct {
	guestPC   uintptr
	hostStart uintptr
	next      *block
}

// codeCache is the shared executable arena. Blocks are allocated
// growing forward from out; trampolines shrink the cache backward from
// end. out <= end is the live invariant.
type codeCache struct {
	buf      []byte
	out, end int
}

// tlsSlots are the three host TLS byte offsets the emitted GS-emulation
// and indirect-dispatch code spill through.
type tlsSlots struct {
	Scratch int
	GS      int
	GSAddr  int
}

const hashBuckets = 4096

// Translator owns one guest process's translation state: the code
// cache, the block arena and its pc-to-block hash index, and the TLS
// offsets the emitted code depends on.
type Translator struct {
	host   Host
	cfg    Config
	logger *slog.Logger

	cache     codeCache
	blocks    []block
	blockFree int
	index     [hashBuckets]*block

	tls tlsSlots

	// fault is called for every translation failure, in addition to
	// the error being returned normally; it defaults to panic(err) and
	// is overridable so embedders (and tests) can observe a fatal path
	// was taken without crashing the process.
	fault func(error)
}

const (
	defaultCacheSize     = 1 << 20
	defaultMaxBlocks     = 4096
	defaultMaxBlockBytes = 4096
)

// Init constructs a Translator backed by h.
func Init(cfg Config, h Host) *Translator {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.MaxBlocks <= 0 {
		cfg.MaxBlocks = defaultMaxBlocks
	}
	if cfg.MaxBlockBytes <= 0 {
		cfg.MaxBlockBytes = defaultMaxBlockBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	t := &Translator{host: h, cfg: cfg, logger: cfg.Logger}
	t.cache.buf = make([]byte, cfg.CacheSize)
	t.cache.end = len(t.cache.buf)
	t.blocks = make([]block, cfg.MaxBlocks)
	t.tls = tlsSlots{
		Scratch: h.TLSSlotToOffset(0),
		GS:      h.TLSSlotToOffset(1),
		GSAddr:  h.TLSSlotToOffset(2),
	}
	t.fault = func(err error) { panic(err) }
	return t
}

// Fault overrides the hook called on every translation failure.
func (t *Translator) Fault(f func(error)) { t.fault = f }

// Shutdown releases the code cache and block arena.
func (t *Translator) Shutdown() {
	t.cache = codeCache{}
	t.blocks = nil
	t.index = [hashBuckets]*block{}
}

// Reset discards all translated code without releasing the cache or
// arena backing storage, ready for a fresh process image.
func (t *Translator) Reset() {
	t.flush()
}
