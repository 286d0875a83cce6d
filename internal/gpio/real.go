//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/hc-receiver/internal/logic"
)

// RealSource watches one line of a GPIO chip for edges.
type RealSource struct {
	chip *gpiocdev.Chip
	pin  int
	log  zerolog.Logger

	mu   sync.Mutex
	line *gpiocdev.Line

	lastSeq uint32
}

// NewRealSource opens the GPIO chip. The line itself is requested by Watch.
func NewRealSource(chip string, pin int, logger zerolog.Logger) (*RealSource, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer("hc-receiver"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealSource{chip: c, pin: pin, log: logger}, nil
}

// Watch requests the line with both-edge detection. gpiocdev calls the
// handler from one goroutine per request, which keeps edges ordered.
func (s *RealSource) Watch(fn func(logic.Edge)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.line != nil {
		return fmt.Errorf("pin %d already watched", s.pin)
	}

	handler := func(evt gpiocdev.LineEvent) {
		if s.lastSeq != 0 && evt.LineSeqno != s.lastSeq+1 {
			s.log.Warn().Uint32("expected", s.lastSeq+1).Uint32("got", evt.LineSeqno).Msg("edges lost")
		}
		s.lastSeq = evt.LineSeqno
		fn(edgeFromEvent(evt))
	}

	line, err := s.chip.RequestLine(s.pin,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler))
	if err != nil {
		return fmt.Errorf("request pin %d: %w", s.pin, err)
	}
	s.line = line
	return nil
}

func edgeFromEvent(evt gpiocdev.LineEvent) logic.Edge {
	e := logic.Edge{Tick: uint32(evt.Timestamp.Microseconds())}
	if evt.Type == gpiocdev.LineEventRisingEdge {
		e.Level = 1
	}
	return e
}

// Close releases the line and the chip.
// The line is reconfigured to input with pull-down (matching Pi boot
// defaults) before it is released.
func (s *RealSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.line != nil {
		if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", s.pin, err))
		}
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", s.pin, err))
		}
		s.line = nil
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		s.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
