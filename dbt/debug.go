package dbt

import "errors"

// Debug trace categories, enabled independently via Debug.
const (
	debugTranslate = 1 << iota
	debugDispatch
	debugCache
)

var debugOption = map[string]int{
	"TRANSLATE": debugTranslate,
	"DISPATCH":  debugDispatch,
	"CACHE":     debugCache,
}

var debugMsk int

// Debug enables a translator-wide trace category by name.
func Debug(opt string) error {
	flag, ok := debugOption[opt]
	if !ok {
		return errors.New("dbt debug option invalid: " + opt)
	}
	debugMsk |= flag
	return nil
}
