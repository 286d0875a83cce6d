// Package gpio provides data line edge sources with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation replays scripted edges for tests.
package gpio

import "github.com/sweeney/hc-receiver/internal/logic"

// Source delivers the edges of one data line.
type Source interface {
	// Watch starts delivering edges to fn. fn is called from a single
	// goroutine at a time, in timestamp order.
	Watch(fn func(logic.Edge)) error

	// Close stops edge delivery and releases resources.
	Close() error
}

// DefaultChip is the GPIO chip used on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// DefaultPin is the BCM pin of the first data line on the stock wiring.
const DefaultPin = 4
