// Package receiver binds a data line edge source to a frame assembler and
// hands decoded readings off to a consumer without blocking the edge path.
package receiver

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/hc-receiver/internal/devices"
	"github.com/sweeney/hc-receiver/internal/gpio"
	"github.com/sweeney/hc-receiver/internal/logic"
)

// Receiver decodes the data line of one controller.
type Receiver struct {
	controller int
	pin        int
	source     gpio.Source
	asm        *logic.Assembler
	out        chan<- logic.Reading
	now        func() time.Time
	log        zerolog.Logger

	dropped atomic.Uint64
}

// New creates a receiver for one controller. Readings are sent to out; when
// out is full the reading is dropped and counted.
func New(controller, pin int, src gpio.Source, reg *devices.Registry, out chan<- logic.Reading, logger zerolog.Logger) *Receiver {
	r := &Receiver{
		controller: controller,
		pin:        pin,
		source:     src,
		out:        out,
		now:        time.Now,
		log:        logger.With().Int("controller", controller).Int("pin", pin).Logger(),
	}
	r.asm = logic.NewAssembler(controller, reg, r.deliver, r.log)
	return r
}

// Controller returns the controller identifier.
func (r *Receiver) Controller() int {
	return r.controller
}

// Pin returns the GPIO pin of the data line.
func (r *Receiver) Pin() int {
	return r.pin
}

// Start begins watching the data line.
func (r *Receiver) Start() error {
	if err := r.source.Watch(r.asm.HandleEdge); err != nil {
		return fmt.Errorf("controller %d: watch pin %d: %w", r.controller, r.pin, err)
	}
	r.log.Info().Msg("receiver started")
	return nil
}

// Close stops the data line watch. A partial frame is discarded.
func (r *Receiver) Close() error {
	if err := r.source.Close(); err != nil {
		return fmt.Errorf("controller %d: %w", r.controller, err)
	}
	return nil
}

// Stats returns the assembler counters.
func (r *Receiver) Stats() logic.Stats {
	return r.asm.Stats()
}

// Dropped returns the number of readings lost because the consumer fell
// behind.
func (r *Receiver) Dropped() uint64 {
	return r.dropped.Load()
}

// deliver runs on the edge path and must not block.
func (r *Receiver) deliver(controller int, rec logic.Record) {
	reading := logic.Reading{Timestamp: r.now(), Controller: controller, Record: rec}
	select {
	case r.out <- reading:
	default:
		r.dropped.Add(1)
		r.log.Warn().Str("device", rec.Device()).Msg("reading dropped: consumer busy")
	}
}
