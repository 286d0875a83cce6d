package web

import (
	"encoding/json"

	"github.com/sweeney/hc-receiver/internal/devices"
)

// DevicesJSON is the top-level JSON envelope for the device table.
type DevicesJSON struct {
	Devices []DeviceJSON `json:"devices"`
}

// DeviceJSON describes one controller model.
type DeviceJSON struct {
	Code          uint8         `json:"code"`
	Name          string        `json:"name"`
	ClockPeriodUs uint32        `json:"clock_period_us,omitempty"`
	ByteCount     int           `json:"byte_count"`
	Bytes         []MappingJSON `json:"bytes"`
}

// MappingJSON describes one byte position of a frame.
type MappingJSON struct {
	Field   string   `json:"field"`
	Kind    string   `json:"kind"`
	Word    string   `json:"word,omitempty"`
	Outputs []int    `json:"outputs,omitempty"`
	Scale   *float64 `json:"scale,omitempty"`
}

func formatDevices(reg *devices.Registry) []byte {
	out := DevicesJSON{Devices: []DeviceJSON{}}
	for _, d := range reg.Definitions() {
		dj := DeviceJSON{
			Code:          d.Code,
			Name:          d.Name,
			ClockPeriodUs: d.ClockPeriodUs,
			ByteCount:     d.ByteCount,
			Bytes:         make([]MappingJSON, len(d.Bytes)),
		}
		for i, m := range d.Bytes {
			mj := MappingJSON{Field: m.Field, Kind: string(m.Kind), Word: string(m.Word)}
			switch m.Kind {
			case devices.KindOutputs:
				// []uint8 would marshal as base64.
				mj.Outputs = make([]int, len(m.Outputs))
				for j, n := range m.Outputs {
					mj.Outputs[j] = int(n)
				}
			case devices.KindTemperature:
				scale := m.Scale
				mj.Scale = &scale
			}
			dj.Bytes[i] = mj
		}
		out.Devices = append(out.Devices, dj)
	}

	data, _ := json.MarshalIndent(out, "", "  ")
	return data
}
