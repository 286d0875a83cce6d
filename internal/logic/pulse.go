package logic

// Pulse is the category of the time between two edges.
type Pulse int

const (
	PulseInvalid Pulse = iota
	PulseShort
	PulseLong
)

// Tolerance windows around the nominal 10ms half-period and 20ms full period.
const (
	shortMinUs = 9000
	shortMaxUs = 11000
	longMinUs  = 18000
	longMaxUs  = 22000
)

// Classify returns the category of a pulse of the given length in
// microseconds. The window bounds themselves are invalid.
func Classify(us uint32) Pulse {
	switch {
	case us > shortMinUs && us < shortMaxUs:
		return PulseShort
	case us > longMinUs && us < longMaxUs:
		return PulseLong
	default:
		return PulseInvalid
	}
}

func (p Pulse) String() string {
	switch p {
	case PulseShort:
		return "short"
	case PulseLong:
		return "long"
	default:
		return "invalid"
	}
}
