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
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Phase         string       `json:"phase"`
	Transmitting  bool         `json:"transmitting"`
	Battery       string       `json:"battery"`
	Voltage       float64      `json:"voltage"`
	HaltReason    string       `json:"halt_reason,omitempty"`
	Suspended     bool         `json:"suspended"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of occurrence counts.
type CountsJSON struct {
	Cycles             int `json:"cycles"`
	SafetyHalts        int `json:"safety_halts"`
	AudioSkips         int `json:"audio_skips"`
	BatteryTransitions int `json:"battery_transitions"`
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
	PollMs       int64  `json:"poll_ms"`
	PreRollMs    int64  `json:"pre_roll_ms"`
	TailMs       int64  `json:"tail_ms"`
	CycleMs      int64  `json:"cycle_ms"`
	MaxKeyMs     int64  `json:"max_key_ms"`
	DotMs        int64  `json:"dot_ms"`
	AudioFloorMs int64  `json:"audio_floor_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	DebounceN    int    `json:"debounce_count"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	Callsign     string `json:"callsign"`
	ClipDir      string `json:"clip_dir"`
	ClipCount    int    `json:"clip_count"`
}

// FormatStatusEvent creates the JSON payload for a system event carrying a
// full status snapshot (STARTUP, SHUTDOWN, HEARTBEAT).
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatStatus creates the JSON payload for the HTTP status endpoint.
func FormatStatus(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Phase:         string(snap.Phase),
		Transmitting:  snap.TxOn,
		Battery:       string(snap.Battery),
		Voltage:       snap.Voltage,
		HaltReason:    snap.HaltReason,
		Suspended:     snap.Suspended,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Cycles:             snap.Counts.Cycles,
			SafetyHalts:        snap.Counts.SafetyHalts,
			AudioSkips:         snap.Counts.AudioSkips,
			BatteryTransitions: snap.Counts.BatteryTransitions,
		},
		Config: ConfigJSON{
			PollMs:       snap.Config.PollMs,
			PreRollMs:    snap.Config.PreRollMs,
			TailMs:       snap.Config.TailMs,
			CycleMs:      snap.Config.CycleMs,
			MaxKeyMs:     snap.Config.MaxKeyMs,
			DotMs:        snap.Config.DotMs,
			AudioFloorMs: snap.Config.AudioFloorMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			DebounceN:    snap.Config.DebounceN,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPPort,
			Callsign:     snap.Config.Callsign,
			ClipDir:      snap.Config.ClipDir,
			ClipCount:    snap.Config.ClipCount,
		},
	}

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

	return inner
}
