package gpio

import "github.com/sweeney/hc-receiver/internal/logic"

// Line timing in microseconds at the controllers' 50Hz clock.
const (
	HalfPeriodUs = 10000
	PeriodUs     = 20000

	// FrameGapUs is the quiet time before each preamble. It lies outside
	// both pulse windows.
	FrameGapUs = 50000

	// PreamblePairs is the number of short high/low pulses in a preamble.
	// The first rising edge follows the gap, so 17 pairs give 16 short
	// rising edges.
	PreamblePairs = 20
)

// Waveform builds the edge sequence a controller sends on its data line.
// It feeds FakeSource in tests and simulations.
type Waveform struct {
	tick  uint32
	level uint8
	edges []logic.Edge
}

// NewWaveform starts a low line at the given tick.
func NewWaveform(start uint32) *Waveform {
	return &Waveform{tick: start}
}

// Edge toggles the line after the given delay.
func (w *Waveform) Edge(afterUs uint32) *Waveform {
	w.tick += afterUs
	w.level ^= 1
	w.edges = append(w.edges, logic.Edge{Level: w.level, Tick: w.tick})
	return w
}

// Idle advances time without any edge.
func (w *Waveform) Idle(us uint32) *Waveform {
	w.tick += us
	return w
}

// Preamble emits n short high/low pulse pairs, leaving the line low.
func (w *Waveform) Preamble(n int) *Waveform {
	if w.level == 1 {
		w.Edge(HalfPeriodUs)
	}
	for i := 0; i < n; i++ {
		w.Edge(HalfPeriodUs)
		w.Edge(HalfPeriodUs)
	}
	return w
}

// Bit emits one bit cell ending with an edge to the given level. A cell
// that keeps the level gets an extra edge half way.
func (w *Waveform) Bit(level uint8) *Waveform {
	if level == w.level {
		w.Edge(HalfPeriodUs)
		return w.Edge(HalfPeriodUs)
	}
	return w.Edge(PeriodUs)
}

// Byte emits start bit, eight inverted data bits LSB first, and stop bit.
func (w *Waveform) Byte(b byte) *Waveform {
	w.Bit(1)
	for i := 0; i < 8; i++ {
		w.Bit(1 - (b>>i)&1)
	}
	return w.Bit(0)
}

// Frame emits a gap, a preamble and the given bytes.
func (w *Waveform) Frame(frame []byte) *Waveform {
	w.Idle(FrameGapUs).Preamble(PreamblePairs)
	for _, b := range frame {
		w.Byte(b)
	}
	return w
}

// Flush emits the gap and preamble that close the last frame.
func (w *Waveform) Flush() *Waveform {
	return w.Idle(FrameGapUs).Preamble(PreamblePairs)
}

// Edges returns the edges built so far.
func (w *Waveform) Edges() []logic.Edge {
	return w.edges
}

// Synthesize returns the edges for the given frames, each followed by the
// preamble that lets a receiver finalize it.
func Synthesize(frames ...[]byte) []logic.Edge {
	w := NewWaveform(1000000)
	for _, f := range frames {
		w.Frame(f)
	}
	return w.Flush().Edges()
}
