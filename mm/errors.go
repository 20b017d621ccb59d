package mm

import "errors"

// Sentinel errors at the mm boundary. syscallabi translates these into
// negative Linux errno values; nothing else in the repository should
// construct an -errno-shaped value directly.
var (
	ErrInvalid = errors.New("mm: invalid argument")
	ErrNoMem   = errors.New("mm: cannot satisfy request")
	ErrBadFile = errors.New("mm: bad file backend")
)
