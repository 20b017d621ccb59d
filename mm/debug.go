package mm

import "errors"

// Debug trace categories, enabled independently via Debug.
const (
	debugMap = 1 << iota
	debugProt
	debugFork
)

var debugOption = map[string]int{
	"MAP":  debugMap,
	"PROT": debugProt,
	"FORK": debugFork,
}

var debugMsk int

// Debug enables a manager-wide trace category by name.
func Debug(opt string) error {
	flag, ok := debugOption[opt]
	if !ok {
		return errors.New("mm debug option invalid: " + opt)
	}
	debugMsk |= flag
	return nil
}
