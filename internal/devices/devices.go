// Package devices holds the table of heating controller models understood by
// the receiver. The table is protocol data: adding a controller model means
// adding an entry to devices.yaml, not touching the decoder.
package devices

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Kind says how a transmitted byte is interpreted.
type Kind string

const (
	KindDevice      Kind = "device"
	KindTemperature Kind = "temperature"
	KindOutputs     Kind = "outputs"
)

// Word marks a byte as one half of a 16-bit value.
type Word string

const (
	WordNone Word = ""
	WordLow  Word = "low"
	WordHigh Word = "high"
)

// Mapping describes one byte position of a frame.
type Mapping struct {
	Field string
	Kind  Kind
	Word  Word
	// Outputs maps bit i (0 = LSB) to a 1-based output number; 0 means unused.
	Outputs [8]uint8
	Scale   float64
}

// Definition describes one controller model, keyed by its device-type code.
type Definition struct {
	Code          uint8
	Name          string
	ClockPeriodUs uint32
	ByteCount     int
	// Bytes has one entry per transmitted byte, in transmission order.
	// Callers must not modify it.
	Bytes []Mapping
}

// Registry is an immutable lookup from device-type code to Definition.
// It is safe for concurrent use.
type Registry struct {
	defs map[uint8]Definition
}

//go:embed devices.yaml
var builtin []byte

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("devices: builtin table: %v", err))
	}
	return r
})

// Default returns the registry built from the embedded device table.
func Default() *Registry {
	return defaultRegistry()
}

// Lookup returns the definition for a device-type code.
func (r *Registry) Lookup(code uint8) (Definition, bool) {
	d, ok := r.defs[code]
	return d, ok
}

// Len returns the number of known device types.
func (r *Registry) Len() int {
	return len(r.defs)
}

// MaxByteCount returns the length of the longest known frame.
func (r *Registry) MaxByteCount() int {
	n := 0
	for _, d := range r.defs {
		if d.ByteCount > n {
			n = d.ByteCount
		}
	}
	return n
}

// Definitions returns all definitions ordered by code.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// LoadError reports a device table that could not be read or is invalid.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// LoadFile reads a device table from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	r, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return r, nil
}

type tableFile struct {
	Devices []deviceEntry `yaml:"devices"`
}

type deviceEntry struct {
	Code          *uint8         `yaml:"code"`
	Name          string         `yaml:"name"`
	ClockPeriodUs uint32         `yaml:"clock_period_us"`
	ByteCount     int            `yaml:"byte_count"`
	Bytes         []mappingEntry `yaml:"bytes"`
}

type mappingEntry struct {
	Field   string   `yaml:"field"`
	Kind    Kind     `yaml:"kind"`
	Word    Word     `yaml:"word"`
	Outputs []uint8  `yaml:"outputs"`
	Scale   *float64 `yaml:"scale"`
}

// Parse builds a Registry from a YAML device table.
func Parse(data []byte) (*Registry, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if len(tf.Devices) == 0 {
		return nil, &LoadError{Message: "no devices defined"}
	}

	defs := make(map[uint8]Definition, len(tf.Devices))
	for i, e := range tf.Devices {
		d, err := e.definition()
		if err != nil {
			return nil, &LoadError{Message: fmt.Sprintf("device[%d]", i), Cause: err}
		}
		if prev, dup := defs[d.Code]; dup {
			return nil, &LoadError{Message: fmt.Sprintf("device[%d]: code %d already used by %s", i, d.Code, prev.Name)}
		}
		defs[d.Code] = d
	}
	return &Registry{defs: defs}, nil
}

func (e deviceEntry) definition() (Definition, error) {
	if e.Code == nil {
		return Definition{}, errors.New("code is required")
	}
	if e.Name == "" {
		return Definition{}, fmt.Errorf("code %d: name is required", *e.Code)
	}
	if len(e.Bytes) == 0 {
		return Definition{}, fmt.Errorf("%s: bytes is required", e.Name)
	}
	if e.ByteCount != len(e.Bytes) {
		return Definition{}, fmt.Errorf("%s: byte_count is %d but %d bytes are mapped", e.Name, e.ByteCount, len(e.Bytes))
	}

	d := Definition{
		Code:          *e.Code,
		Name:          e.Name,
		ClockPeriodUs: e.ClockPeriodUs,
		ByteCount:     e.ByteCount,
		Bytes:         make([]Mapping, len(e.Bytes)),
	}
	keys := make(recordKeys)
	for i, b := range e.Bytes {
		m, err := b.mapping()
		if err != nil {
			return Definition{}, fmt.Errorf("%s: byte %d: %w", e.Name, i, err)
		}
		if err := keys.claim(m); err != nil {
			return Definition{}, fmt.Errorf("%s: byte %d: %w", e.Name, i, err)
		}
		d.Bytes[i] = m
	}
	return d, nil
}

// recordKeys tracks the record keys a definition produces. Only the low and
// high halves of one temperature may share a key.
type recordKeys map[string][]Mapping

func (k recordKeys) claim(m Mapping) error {
	switch m.Kind {
	case KindOutputs:
		for _, n := range m.Outputs {
			if n == 0 {
				continue
			}
			key := m.Field + strconv.Itoa(int(n))
			if len(k[key]) > 0 {
				return fmt.Errorf("output key %q produced twice", key)
			}
			k[key] = append(k[key], m)
		}
		return nil

	case KindTemperature:
		for _, prev := range k[m.Field] {
			if prev.Kind != KindTemperature || prev.Word == m.Word || prev.Word == WordNone || m.Word == WordNone {
				return fmt.Errorf("field %q mapped twice", m.Field)
			}
		}

	default:
		if len(k[m.Field]) > 0 {
			return fmt.Errorf("field %q mapped twice", m.Field)
		}
	}
	k[m.Field] = append(k[m.Field], m)
	return nil
}

func (b mappingEntry) mapping() (Mapping, error) {
	if b.Field == "" {
		return Mapping{}, errors.New("field is required")
	}
	m := Mapping{Field: b.Field, Kind: b.Kind, Word: b.Word, Scale: 1}
	if b.Scale != nil {
		m.Scale = *b.Scale
	}

	switch b.Kind {
	case KindDevice:
	case KindTemperature:
		switch b.Word {
		case WordNone, WordLow, WordHigh:
		default:
			return Mapping{}, fmt.Errorf("unknown word %q", b.Word)
		}
	case KindOutputs:
		if len(b.Outputs) != 8 {
			return Mapping{}, fmt.Errorf("outputs needs 8 entries, got %d", len(b.Outputs))
		}
		copy(m.Outputs[:], b.Outputs)
	default:
		return Mapping{}, fmt.Errorf("unknown kind %q", b.Kind)
	}

	if b.Kind != KindTemperature && b.Word != WordNone {
		return Mapping{}, fmt.Errorf("word is only valid for temperature bytes")
	}
	if b.Kind != KindOutputs && len(b.Outputs) > 0 {
		return Mapping{}, fmt.Errorf("outputs is only valid for outputs bytes")
	}
	return m, nil
}
