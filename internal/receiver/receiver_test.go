package receiver

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/hc-receiver/internal/devices"
	"github.com/sweeney/hc-receiver/internal/gpio"
	"github.com/sweeney/hc-receiver/internal/logic"
)

func uvr64Frame() []byte {
	return []byte{32, 5, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0b00010000}
}

func TestReceiverDeliversReadings(t *testing.T) {
	src := gpio.NewFakeSource(gpio.Synthesize(uvr64Frame(), uvr64Frame()))
	out := make(chan logic.Reading, 4)
	r := New(7, 4, src, devices.Default(), out, zerolog.Nop())
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	require.NoError(t, r.Start())
	assert.True(t, src.Watching)

	require.Len(t, out, 2)
	got := <-out
	assert.Equal(t, 7, got.Controller)
	assert.Equal(t, fixed, got.Timestamp)
	assert.Equal(t, "UVR64", got.Record.Device())

	assert.Equal(t, uint64(2), r.Stats().Records)
	assert.Zero(t, r.Dropped())
	assert.Equal(t, 7, r.Controller())
	assert.Equal(t, 4, r.Pin())

	require.NoError(t, r.Close())
	assert.True(t, src.Closed)
}

func TestReceiverDropsWhenConsumerBusy(t *testing.T) {
	src := gpio.NewFakeSource(gpio.Synthesize(uvr64Frame(), uvr64Frame(), uvr64Frame()))
	out := make(chan logic.Reading, 1)
	r := New(1, 4, src, nil, out, zerolog.Nop())

	require.NoError(t, r.Start())

	assert.Len(t, out, 1)
	assert.Equal(t, uint64(2), r.Dropped())
	assert.Equal(t, uint64(3), r.Stats().Records)
}

func TestReceiverStartError(t *testing.T) {
	src := gpio.NewFakeSource(nil)
	src.WatchError = errors.New("busy")
	r := New(2, 17, src, nil, make(chan logic.Reading, 1), zerolog.Nop())

	err := r.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "controller 2")
	assert.Contains(t, err.Error(), "pin 17")
}

func TestIndependentReceivers(t *testing.T) {
	edges := gpio.Synthesize(uvr64Frame())
	out := make(chan logic.Reading, 4)

	r1 := New(1, 4, gpio.NewFakeSource(edges), nil, out, zerolog.Nop())
	r2 := New(2, 17, gpio.NewFakeSource(edges), nil, out, zerolog.Nop())
	require.NoError(t, r1.Start())
	require.NoError(t, r2.Start())

	require.Len(t, out, 2)
	a, b := <-out, <-out
	assert.Equal(t, 1, a.Controller)
	assert.Equal(t, 2, b.Controller)
	assert.Equal(t, a.Record, b.Record)
}
