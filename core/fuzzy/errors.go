package fuzzy

import (
	"errors"
	"fmt"
)

// ErrConfig is wrapped by every error returned while building variables,
// rules and engines.
var ErrConfig = errors.New("invalid fuzzy configuration")

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
