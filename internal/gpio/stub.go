//go:build !linux

package gpio

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/sweeney/hc-receiver/internal/logic"
)

// RealSource is not available on non-Linux platforms.
type RealSource struct{}

// NewRealSource returns an error on non-Linux platforms.
func NewRealSource(chip string, pin int, logger zerolog.Logger) (*RealSource, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Watch is not implemented on non-Linux platforms.
func (s *RealSource) Watch(fn func(logic.Edge)) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *RealSource) Close() error {
	return nil
}
