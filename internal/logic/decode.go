package logic

import (
	"fmt"
	"strconv"

	"github.com/sweeney/hc-receiver/internal/devices"
)

// Decode maps a complete frame to a Record using the definition selected by
// the frame's first byte.
func Decode(reg *devices.Registry, frame []byte) (Record, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrUnknownDevice)
	}
	def, ok := reg.Lookup(frame[0])
	if !ok {
		return nil, fmt.Errorf("%w: type code %d", ErrUnknownDevice, frame[0])
	}
	if len(frame) != def.ByteCount {
		return nil, &LengthMismatchError{Device: def.Name, Expected: def.ByteCount, Actual: len(frame)}
	}

	rec := make(Record, len(frame))
	for i, b := range frame {
		m := def.Bytes[i]
		scaled := float64(b) * m.Scale

		switch m.Kind {
		case devices.KindDevice:
			rec[m.Field] = def.Name

		case devices.KindOutputs:
			// Output bits use the raw byte, not the scaled value.
			for bit, out := range m.Outputs {
				if out == 0 {
					continue
				}
				rec[m.Field+strconv.Itoa(int(out))] = b&(1<<bit) != 0
			}

		case devices.KindTemperature:
			// Low and high halves sum into one value, so their order in the
			// table does not matter.
			partial, _ := rec.Float(m.Field)
			switch m.Word {
			case devices.WordLow:
				rec[m.Field] = partial + scaled
			case devices.WordHigh:
				rec[m.Field] = partial + scaled*256
			default:
				rec[m.Field] = scaled
			}
		}
	}
	return rec, nil
}
