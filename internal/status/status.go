// Package status provides a thread-safe status tracker for the beacon-keyer
// daemon. It is read by the HTTP status page and embedded into system
// telemetry events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/beacon-keyer/internal/battery"
	"github.com/sweeney/beacon-keyer/internal/keyer"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/telemetry from status.
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
	PollMs       int64
	PreRollMs    int64
	TailMs       int64
	CycleMs      int64
	MaxKeyMs     int64
	DotMs        int64
	AudioFloorMs int64
	HeartbeatMs  int64
	DebounceN    int
	Broker       string
	HTTPPort     string
	WSBroker     string // Websocket broker URL for browser MQTT (empty = disabled)
	Callsign     string
	ClipDir      string
	ClipCount    int
}

// Counts tracks notable occurrences since startup.
type Counts struct {
	Cycles             int
	SafetyHalts        int
	AudioSkips         int
	BatteryTransitions int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Phase         keyer.Phase
	TxOn          bool
	Battery       battery.State
	Voltage       float64
	HaltReason    string
	Suspended     bool
	Counts        Counts
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

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Phase:     keyer.PhaseIdle,
			Battery:   battery.StateGood,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the cycle and battery state. Called from the run loop on
// every tick.
func (t *Tracker) Update(phase keyer.Phase, txOn bool, batt battery.State, voltage float64, counts Counts) {
	t.mu.Lock()
	t.snap.Phase = phase
	t.snap.TxOn = txOn
	t.snap.Battery = batt
	t.snap.Voltage = voltage
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetHalt records a safety halt and its trigger.
func (t *Tracker) SetHalt(reason string) {
	t.mu.Lock()
	t.snap.HaltReason = reason
	t.mu.Unlock()
}

// SetSuspended records that no further cycles will be scheduled.
func (t *Tracker) SetSuspended(suspended bool) {
	t.mu.Lock()
	t.snap.Suspended = suspended
	t.mu.Unlock()
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

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
