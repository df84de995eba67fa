package gate

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every construction error in this package.
var ErrInvalidConfig = errors.New("invalid gate configuration")

func configError(gate, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, gate, fmt.Sprintf(format, args...))
}
