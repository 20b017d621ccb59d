package syscallabi

import "errors"

// Debug trace categories, enabled independently via Debug.
const (
	debugMmap = 1 << iota
	debugProt
)

var debugOption = map[string]int{
	"MMAP": debugMmap,
	"PROT": debugProt,
}

var debugMsk int

// Debug enables a syscall-translation trace category by name.
func Debug(opt string) error {
	flag, ok := debugOption[opt]
	if !ok {
		return errors.New("syscallabi debug option invalid: " + opt)
	}
	debugMsk |= flag
	return nil
}
