// Package logic contains the data line decoding pipeline: pulse
// classification, frame assembly and record decoding.
// This package has no hardware or transport dependencies. Edges arrive as
// values and decoded records leave through a callback.
package logic

import (
	"math"
	"sort"
	"time"
)

// Edge is a single transition on a controller's data line.
type Edge struct {
	// Level is the line level after the transition: 1 for a rising edge,
	// 0 for a falling edge.
	Level uint8
	// Tick is a microsecond timestamp. It may wrap around; only differences
	// between consecutive ticks are used.
	Tick uint32
}

// Record is one decoded frame. Keys are "devicetype", "tempN" or "outputN";
// values are string, float64 and bool respectively.
type Record map[string]any

// Device returns the controller model name carried by the record.
func (r Record) Device() string {
	s, _ := r["devicetype"].(string)
	return s
}

// Float returns a numeric field.
func (r Record) Float(name string) (float64, bool) {
	v, ok := r[name].(float64)
	return v, ok
}

// Bool returns an output field.
func (r Record) Bool(name string) (bool, bool) {
	v, ok := r[name].(bool)
	return v, ok
}

// Keys returns the field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Rounded returns a copy of the record with numeric fields rounded to the
// given number of decimals. Summing scaled bytes leaves float noise in the
// last digits.
func (r Record) Rounded(places int) Record {
	p := math.Pow(10, float64(places))
	out := make(Record, len(r))
	for k, v := range r {
		if f, ok := v.(float64); ok {
			v = math.Round(f*p) / p
		}
		out[k] = v
	}
	return out
}

// Reading is a decoded record stamped with its controller and receive time.
type Reading struct {
	Timestamp  time.Time
	Controller int
	Record     Record
}

// Stats counts what an Assembler has seen since it was created.
type Stats struct {
	Edges            uint64
	InvalidPulses    uint64
	SyncMarkers      uint64
	SyncLosses       uint64
	Frames           uint64
	Records          uint64
	UnknownDevices   uint64
	LengthMismatches uint64
}
