package logic

import (
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/sweeney/hc-receiver/internal/devices"
)

// syncRun is the number of consecutive short rising edges that make up a
// sync marker.
const syncRun = 16

// Bit positions within a byte: start bit, eight data bits, stop bit.
const (
	bitStart = 1
	bitStop  = 10
)

// DeliverFunc receives each successfully decoded record. It is called on the
// goroutine that feeds edges and must not block.
type DeliverFunc func(controller int, rec Record)

// Assembler turns the edge stream of one data line into frames and decodes
// them. It is not safe for concurrent use: all edges of a line must be fed
// from a single goroutine, in tick order. Stats may be read concurrently.
type Assembler struct {
	controller int
	registry   *devices.Registry
	maxFrame   int
	deliver    DeliverFunc
	log        zerolog.Logger

	risingRun uint32
	preamble  bool
	synced    bool
	bitIndex  uint8
	frame     []byte
	lastEdge  uint32
	lastBit   uint32

	stats counters
}

type counters struct {
	edges            atomic.Uint64
	invalidPulses    atomic.Uint64
	syncMarkers      atomic.Uint64
	syncLosses       atomic.Uint64
	frames           atomic.Uint64
	records          atomic.Uint64
	unknownDevices   atomic.Uint64
	lengthMismatches atomic.Uint64
}

// NewAssembler creates an unsynced assembler for one controller. A nil
// registry selects devices.Default().
func NewAssembler(controller int, reg *devices.Registry, deliver DeliverFunc, logger zerolog.Logger) *Assembler {
	if reg == nil {
		reg = devices.Default()
	}
	return &Assembler{
		controller: controller,
		registry:   reg,
		maxFrame:   reg.MaxByteCount(),
		deliver:    deliver,
		log:        logger,
		frame:      make([]byte, 0, 16),
	}
}

// Synced reports whether the assembler currently trusts its bit alignment.
func (a *Assembler) Synced() bool {
	return a.synced
}

// HandleEdge processes one edge.
func (a *Assembler) HandleEdge(e Edge) {
	a.stats.edges.Add(1)
	level := uint8(0)
	if e.Level != 0 {
		level = 1
	}

	pulse := Classify(e.Tick - a.lastEdge)
	if pulse == PulseInvalid {
		a.stats.invalidPulses.Add(1)
		a.log.Info().Uint32("us", e.Tick-a.lastEdge).Msg("invalid pulse")
	} else {
		a.log.Debug().Stringer("pulse", pulse).Uint32("us", e.Tick-a.lastEdge).Uint8("level", level).Msg("pulse")
	}
	a.lastEdge = e.Tick

	if pulse == PulseShort {
		if level == 1 && a.risingRun < syncRun {
			a.risingRun++
		}
	} else {
		a.risingRun = 0
		a.preamble = false
	}

	// Every edge of a sync marker restarts framing, so bit timing starts
	// at the last preamble edge.
	if a.risingRun >= syncRun {
		if !a.preamble {
			a.preamble = true
			a.stats.syncMarkers.Add(1)
			a.log.Debug().Int("pending", len(a.frame)).Msg("sync marker")
		}
		a.finalize()
		a.frame = a.frame[:0]
		a.bitIndex = 0
		a.synced = true
		a.lastBit = e.Tick
	}

	if !a.synced {
		return
	}
	if Classify(e.Tick-a.lastBit) != PulseLong {
		return
	}
	a.lastBit = e.Tick
	a.bitIndex++

	switch a.bitIndex {
	case bitStart:
		if level != 1 {
			a.loseSync("invalid start bit")
			return
		}
		// No device sends more bytes than this between sync markers.
		if len(a.frame) >= a.maxFrame {
			a.loseSync("frame too long")
			a.frame = a.frame[:0]
			return
		}
		a.frame = append(a.frame, 0)

	case bitStop:
		a.bitIndex = 0
		if level != 0 {
			a.frame = a.frame[:len(a.frame)-1]
			a.loseSync("invalid stop bit")
			return
		}
		a.log.Debug().Uint8("value", a.frame[len(a.frame)-1]).Int("count", len(a.frame)).Msg("byte complete")

	default:
		// Data bits are sent LSB first with the line level inverted.
		a.frame[len(a.frame)-1] |= (1 - level) << (a.bitIndex - 2)
	}
}

func (a *Assembler) loseSync(reason string) {
	a.synced = false
	a.stats.syncLosses.Add(1)
	a.log.Warn().Int("pending", len(a.frame)).Msg(reason)
}

// finalize decodes the bytes gathered since the previous sync marker.
func (a *Assembler) finalize() {
	if len(a.frame) == 0 {
		return
	}
	a.stats.frames.Add(1)

	rec, err := Decode(a.registry, a.frame)
	if err != nil {
		var lm *LengthMismatchError
		switch {
		case errors.As(err, &lm):
			a.stats.lengthMismatches.Add(1)
			a.log.Warn().Str("device", lm.Device).Int("expected", lm.Expected).Int("actual", lm.Actual).
				Hex("frame", a.frame).Msg("frame dropped: length mismatch")
		case errors.Is(err, ErrUnknownDevice):
			a.stats.unknownDevices.Add(1)
			a.log.Warn().Uint8("code", a.frame[0]).Hex("frame", a.frame).Msg("frame dropped: unknown device")
		default:
			a.log.Warn().Err(err).Msg("frame dropped")
		}
		return
	}

	a.stats.records.Add(1)
	a.log.Debug().Str("device", rec.Device()).Msg("frame decoded")
	if a.deliver != nil {
		a.deliver(a.controller, rec)
	}
}

// Stats returns a snapshot of the assembler's counters.
func (a *Assembler) Stats() Stats {
	return Stats{
		Edges:            a.stats.edges.Load(),
		InvalidPulses:    a.stats.invalidPulses.Load(),
		SyncMarkers:      a.stats.syncMarkers.Load(),
		SyncLosses:       a.stats.syncLosses.Load(),
		Frames:           a.stats.frames.Load(),
		Records:          a.stats.records.Load(),
		UnknownDevices:   a.stats.unknownDevices.Load(),
		LengthMismatches: a.stats.lengthMismatches.Load(),
	}
}
