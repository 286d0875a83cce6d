package devices

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	require.NotNil(t, r)
	assert.Equal(t, 2, r.Len())

	uvr, ok := r.Lookup(32)
	require.True(t, ok)
	assert.Equal(t, "UVR64", uvr.Name)
	assert.Equal(t, 14, uvr.ByteCount)
	assert.Len(t, uvr.Bytes, 14)
	assert.Equal(t, uint32(20000), uvr.ClockPeriodUs)
	assert.Equal(t, KindDevice, uvr.Bytes[0].Kind)
	assert.Equal(t, Mapping{Field: "temp1", Kind: KindTemperature, Word: WordLow, Scale: 0.1}, uvr.Bytes[1])
	assert.Equal(t, Mapping{Field: "temp1", Kind: KindTemperature, Word: WordHigh, Scale: 0.1}, uvr.Bytes[2])
	assert.Equal(t, [8]uint8{0, 0, 0, 0, 1, 2, 3, 4}, uvr.Bytes[13].Outputs)
	assert.Equal(t, 1.0, uvr.Bytes[13].Scale)

	hzr, ok := r.Lookup(96)
	require.True(t, ok)
	assert.Equal(t, "HZR65", hzr.Name)
	assert.Equal(t, [8]uint8{0, 0, 0, 1, 2, 3, 4, 5}, hzr.Bytes[13].Outputs)

	_, ok = r.Lookup(200)
	assert.False(t, ok)
}

func TestDefaultRegistryShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestDefinitionsOrdered(t *testing.T) {
	defs := Default().Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, uint8(32), defs[0].Code)
	assert.Equal(t, uint8(96), defs[1].Code)
}

func TestMaxByteCount(t *testing.T) {
	assert.Equal(t, 14, Default().MaxByteCount())

	r, err := Parse([]byte("devices:\n  - code: 1\n    name: X\n    byte_count: 1\n    bytes: [{field: d, kind: device}]\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, r.MaxByteCount())
}

func TestParseExtraDevice(t *testing.T) {
	doc := `
devices:
  - code: 7
    name: TEST3
    byte_count: 3
    bytes:
      - { field: devicetype, kind: device }
      - { field: temp1, kind: temperature, scale: 0.5 }
      - { field: relay, kind: outputs, outputs: [1, 2, 0, 0, 0, 0, 0, 3] }
`
	r, err := Parse([]byte(doc))
	require.NoError(t, err)

	d, ok := r.Lookup(7)
	require.True(t, ok)
	assert.Equal(t, WordNone, d.Bytes[1].Word)
	assert.Equal(t, 0.5, d.Bytes[1].Scale)
	assert.Equal(t, [8]uint8{1, 2, 0, 0, 0, 0, 0, 3}, d.Bytes[2].Outputs)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "devices: [\n"},
		{"empty", "devices: []\n"},
		{"missing code", "devices:\n  - name: X\n    byte_count: 1\n    bytes: [{field: d, kind: device}]\n"},
		{"code overflow", "devices:\n  - code: 300\n    name: X\n    byte_count: 1\n    bytes: [{field: d, kind: device}]\n"},
		{"missing name", "devices:\n  - code: 1\n    byte_count: 1\n    bytes: [{field: d, kind: device}]\n"},
		{"count mismatch", "devices:\n  - code: 1\n    name: X\n    byte_count: 2\n    bytes: [{field: d, kind: device}]\n"},
		{"unknown kind", "devices:\n  - code: 1\n    name: X\n    byte_count: 1\n    bytes: [{field: d, kind: pressure}]\n"},
		{"bad word", "devices:\n  - code: 1\n    name: X\n    byte_count: 1\n    bytes: [{field: t, kind: temperature, word: middle}]\n"},
		{"word on outputs", "devices:\n  - code: 1\n    name: X\n    byte_count: 1\n    bytes: [{field: o, kind: outputs, word: low, outputs: [0,0,0,0,0,0,0,1]}]\n"},
		{"short outputs", "devices:\n  - code: 1\n    name: X\n    byte_count: 1\n    bytes: [{field: o, kind: outputs, outputs: [1, 2]}]\n"},
		{"outputs on temperature", "devices:\n  - code: 1\n    name: X\n    byte_count: 1\n    bytes: [{field: t, kind: temperature, outputs: [1,0,0,0,0,0,0,0]}]\n"},
		{"duplicate field", "devices:\n  - code: 1\n    name: X\n    byte_count: 2\n    bytes: [{field: t, kind: temperature, word: low}, {field: t, kind: temperature, word: low}]\n"},
		{"output overwrites temperature", "devices:\n  - code: 1\n    name: X\n    byte_count: 2\n    bytes: [{field: temp1, kind: temperature}, {field: temp, kind: outputs, outputs: [2,1,0,0,0,0,0,0]}]\n"},
		{"output index twice", "devices:\n  - code: 1\n    name: X\n    byte_count: 1\n    bytes: [{field: o, kind: outputs, outputs: [1,1,0,0,0,0,0,0]}]\n"},
		{"outputs across bytes", "devices:\n  - code: 1\n    name: X\n    byte_count: 2\n    bytes: [{field: o, kind: outputs, outputs: [1,0,0,0,0,0,0,0]}, {field: o, kind: outputs, outputs: [0,0,0,0,0,0,0,1]}]\n"},
		{"temperature overwrites device", "devices:\n  - code: 1\n    name: X\n    byte_count: 2\n    bytes: [{field: d, kind: device}, {field: d, kind: temperature}]\n"},
		{"whole and half temperature", "devices:\n  - code: 1\n    name: X\n    byte_count: 2\n    bytes: [{field: t, kind: temperature}, {field: t, kind: temperature, word: high}]\n"},
		{"duplicate code", "devices:\n  - code: 1\n    name: X\n    byte_count: 1\n    bytes: [{field: d, kind: device}]\n  - code: 1\n    name: Y\n    byte_count: 1\n    bytes: [{field: d, kind: device}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse([]byte(tt.doc))
			assert.Nil(t, r)
			var le *LoadError
			assert.ErrorAs(t, err, &le)
		})
	}
}

func TestParseTemperatureHalvesShareKey(t *testing.T) {
	doc := `
devices:
  - code: 1
    name: X
    byte_count: 4
    bytes:
      - { field: devicetype, kind: device }
      - { field: t, kind: temperature, word: high }
      - { field: t, kind: temperature, word: low }
      - { field: o, kind: outputs, outputs: [1, 2, 0, 0, 0, 0, 0, 0] }
`
	r, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devices.yaml")
	require.NoError(t, os.WriteFile(path, builtin, 0o644))

	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestLoadFileErrorsNameFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devices: []\n"), 0o644))
	_, err = LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
	assert.Contains(t, err.Error(), "no devices defined")
}
