package logic

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDevice is returned for an empty frame or a frame whose first
	// byte is not a known device-type code.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrLengthMismatch is matched by *LengthMismatchError.
	ErrLengthMismatch = errors.New("length mismatch")
)

// LengthMismatchError reports a frame whose byte count does not match its
// device definition.
type LengthMismatchError struct {
	Device   string
	Expected int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("%s: received %d bytes instead of %d", e.Device, e.Actual, e.Expected)
}

func (e *LengthMismatchError) Is(target error) bool {
	return target == ErrLengthMismatch
}
