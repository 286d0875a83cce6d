// Package status provides a thread-safe status tracker for the hc-receiver daemon.
// It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/hc-receiver/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs int64
	Broker      string
	Chip        string
	HTTPPort    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
	QueueSize   int
}

// ControllerStatus is what is known about one controller's data line.
type ControllerStatus struct {
	ID         int
	Pin        int
	Device     string
	LastRecord logic.Record
	LastSeen   time.Time
	Records    uint64
	Stats      logic.Stats
	Dropped    uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Controllers   []ControllerStatus
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether every controller has delivered at least one record.
func (s Snapshot) Ready() bool {
	if len(s.Controllers) == 0 {
		return false
	}
	for _, c := range s.Controllers {
		if c.Records == 0 {
			return false
		}
	}
	return true
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu          sync.RWMutex
	snap        Snapshot
	controllers map[int]*ControllerStatus
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		controllers: make(map[int]*ControllerStatus),
	}
}

// AddController registers a controller so it is listed before its first record.
func (t *Tracker) AddController(id, pin int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.controllers[id]; ok {
		c.Pin = pin
		return
	}
	t.controllers[id] = &ControllerStatus{ID: id, Pin: pin}
}

// RecordReading stores the latest record of a controller.
func (t *Tracker) RecordReading(r logic.Reading) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.controller(r.Controller)
	c.Device = r.Record.Device()
	c.LastRecord = r.Record
	c.LastSeen = r.Timestamp
	c.Records++
}

// UpdateStats sets the decoder counters of a controller.
func (t *Tracker) UpdateStats(id int, stats logic.Stats, dropped uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.controller(id)
	c.Stats = stats
	c.Dropped = dropped
}

func (t *Tracker) controller(id int) *ControllerStatus {
	c, ok := t.controllers[id]
	if !ok {
		c = &ControllerStatus{ID: id}
		t.controllers[id] = c
	}
	return c
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state, with
// controllers ordered by ID.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Controllers = make([]ControllerStatus, 0, len(t.controllers))
	for _, c := range t.controllers {
		cs := *c
		if c.LastRecord != nil {
			cs.LastRecord = make(logic.Record, len(c.LastRecord))
			for k, v := range c.LastRecord {
				cs.LastRecord[k] = v
			}
		}
		s.Controllers = append(s.Controllers, cs)
	}
	t.mu.RUnlock()

	sort.Slice(s.Controllers, func(i, j int) bool { return s.Controllers[i].ID < s.Controllers[j].ID })
	s.Now = time.Now()
	return s
}
