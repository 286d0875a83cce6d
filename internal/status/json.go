package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Ready         bool             `json:"ready"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	MQTT          MQTTStatus       `json:"mqtt"`
	Controllers   []ControllerJSON `json:"controllers"`
	Network       *NetworkJSON     `json:"network,omitempty"`
	Config        ConfigJSON       `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ControllerJSON is the JSON representation of one controller.
type ControllerJSON struct {
	ID       int            `json:"id"`
	Pin      int            `json:"pin"`
	Device   string         `json:"device,omitempty"`
	LastSeen string         `json:"last_seen,omitempty"`
	Records  uint64         `json:"records"`
	Values   map[string]any `json:"values,omitempty"`
	Decoder  DecoderJSON    `json:"decoder"`
}

// DecoderJSON is the JSON representation of the decoder counters.
type DecoderJSON struct {
	Edges            uint64 `json:"edges"`
	InvalidPulses    uint64 `json:"invalid_pulses"`
	SyncMarkers      uint64 `json:"sync_markers"`
	SyncLosses       uint64 `json:"sync_losses"`
	Frames           uint64 `json:"frames"`
	UnknownDevices   uint64 `json:"unknown_devices"`
	LengthMismatches uint64 `json:"length_mismatches"`
	Dropped          uint64 `json:"dropped"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	Chip        string `json:"chip"`
	HTTPPort    string `json:"http_port"`
	WSBroker    string `json:"ws_broker,omitempty"`
	QueueSize   int    `json:"queue_size"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Controllers:   make([]ControllerJSON, 0, len(snap.Controllers)),
		Config: ConfigJSON{
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			Chip:        snap.Config.Chip,
			HTTPPort:    snap.Config.HTTPPort,
			WSBroker:    snap.Config.WSBroker,
			QueueSize:   snap.Config.QueueSize,
		},
	}

	for _, c := range snap.Controllers {
		cj := ControllerJSON{
			ID:      c.ID,
			Pin:     c.Pin,
			Device:  c.Device,
			Records: c.Records,
			Decoder: DecoderJSON{
				Edges:            c.Stats.Edges,
				InvalidPulses:    c.Stats.InvalidPulses,
				SyncMarkers:      c.Stats.SyncMarkers,
				SyncLosses:       c.Stats.SyncLosses,
				Frames:           c.Stats.Frames,
				UnknownDevices:   c.Stats.UnknownDevices,
				LengthMismatches: c.Stats.LengthMismatches,
				Dropped:          c.Dropped,
			},
		}
		if !c.LastSeen.IsZero() {
			cj.LastSeen = c.LastSeen.UTC().Format(time.RFC3339)
		}
		if c.LastRecord != nil {
			cj.Values = c.LastRecord.Rounded(2)
		}
		inner.Controllers = append(inner.Controllers, cj)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
