package main

import (
	"errors"
	"math/rand"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/beacon-keyer/internal/adc"
	"github.com/sweeney/beacon-keyer/internal/audio"
	"github.com/sweeney/beacon-keyer/internal/battery"
	"github.com/sweeney/beacon-keyer/internal/gpio"
	"github.com/sweeney/beacon-keyer/internal/indicator"
	"github.com/sweeney/beacon-keyer/internal/keyer"
	"github.com/sweeney/beacon-keyer/internal/status"
	"github.com/sweeney/beacon-keyer/internal/telemetry"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants — not the other way around.
func TestEnvVarNames(t *testing.T) {
	// These are the canonical names from pi-helper.
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := &status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}

	if *info != *want {
		t.Errorf("NetworkInfo: got %+v, want %+v", info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	info := readNetworkInfo()
	if info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}

	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.Type != "" || info.IP != "" || info.Gateway != "" || info.WifiStatus != "" || info.SSID != "" {
		t.Errorf("expected other fields empty, got %+v", info)
	}
}

func TestResolveWSBroker(t *testing.T) {
	tests := []struct {
		name   string
		ws     string
		broker string
		want   string
	}{
		{"off disables", "off", "tcp://192.168.1.200:1883", ""},
		{"explicit URL passes through", "ws://other:9001", "tcp://192.168.1.200:1883", "ws://other:9001"},
		{"derives from broker", "=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"unparseable broker disables", "=broker", "://bad", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveWSBroker(tt.ws, tt.broker); got != tt.want {
				t.Errorf("resolveWSBroker(%q, %q) = %q, want %q", tt.ws, tt.broker, got, tt.want)
			}
		})
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of v.
func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// testKeyerConfig uses timings fast enough that a whole cycle fits in a
// handful of 10ms ticks.
func testKeyerConfig() keyer.Config {
	return keyer.Config{
		PreRoll:        50 * time.Millisecond,
		Tail:           30 * time.Millisecond,
		CycleInterval:  100 * time.Millisecond,
		MaxKeyDuration: 10 * time.Second,
		Dot:            10 * time.Millisecond,
		AudioFloor:     100 * time.Millisecond,
		Callsign:       "e",
		Preamble:       "e",
		StartRetries:   3,
	}
}

// newLoopDeps wires fakes for everything runLoop touches. The single test
// clip plays for exactly the audio floor so each cycle starts it once.
func newLoopDeps(source adc.Source, pub *telemetry.FakePublisher, cfg keyer.Config) loopDeps {
	clips := []audio.Clip{{ID: "beacon.wav", Path: "/clips/beacon.wav"}}
	player := audio.NewFakePlayer(map[string]time.Duration{
		"beacon.wav": cfg.AudioFloor,
	})
	selector := audio.NewSelector(clips, false, rand.New(rand.NewSource(1)))
	return loopDeps{
		source:     source,
		tone:       gpio.NewFakeOutput(),
		led:        gpio.NewFakeOutput(),
		publisher:  pub,
		mqttStatus: pub,
		tracker:    status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{}),
		guardian:   battery.NewGuardian(battery.DefaultThresholds, battery.DefaultDebounceCount),
		keyer:      keyer.New(cfg, gpio.NewFakeOutput(), player, selector),
		indicator:  indicator.New(cfg.Dot),
		heartbeat:  0,
	}
}

// runRunLoop drives runLoop for nTicks ticks, then delivers the signal and
// returns the loop's error.
func runRunLoop(t *testing.T, deps loopDeps, clock func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(deps, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func eventTypes(pub *telemetry.FakePublisher) []string {
	out := make([]string, len(pub.Events))
	for i, e := range pub.Events {
		out[i] = e.Event
	}
	return out
}

func TestRunLoopStableBatteryNoEvents(t *testing.T) {
	// 4 ticks of healthy battery, all before the first cycle interval:
	// no beacon events, just SHUTDOWN on the way out.
	source := adc.NewFakeSource(repeat(12.6, 4))
	pub := telemetry.NewFakePublisher()
	cfg := testKeyerConfig()
	cfg.CycleInterval = time.Hour
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)

	err := runRunLoop(t, newLoopDeps(source, pub, cfg), clock, 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 beacon events, got %v", eventTypes(pub))
	}
	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	if pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN event, got %q", pub.SystemEvents[0].Event)
	}
}

func TestRunLoopBatteryTransition(t *testing.T) {
	// Two healthy readings then three in the LOW band: the debounce filter
	// confirms LOW on the third and exactly one transition is published.
	readings := append(repeat(12.6, 2), repeat(11.7, 3)...)
	source := adc.NewFakeSource(readings)
	pub := telemetry.NewFakePublisher()
	cfg := testKeyerConfig()
	cfg.CycleInterval = time.Hour
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)

	err := runRunLoop(t, newLoopDeps(source, pub, cfg), clock, len(readings), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 1 {
		t.Fatalf("expected 1 beacon event, got %v", eventTypes(pub))
	}
	e := pub.Events[0]
	if e.Event != "BATTERY_LOW" {
		t.Errorf("expected BATTERY_LOW, got %q", e.Event)
	}
	if e.Battery != "LOW" {
		t.Errorf("expected battery LOW, got %q", e.Battery)
	}
	if e.Voltage != 11.7 {
		t.Errorf("expected voltage 11.7, got %v", e.Voltage)
	}
}

func TestRunLoopCompleteCycle(t *testing.T) {
	// Enough 10ms ticks to cover one full transmit cycle end to end.
	source := adc.NewFakeSource(repeat(12.6, 1))
	pub := telemetry.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)

	err := runRunLoop(t, newLoopDeps(source, pub, testKeyerConfig()), clock, 100, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	types := eventTypes(pub)
	idxOn, idxComplete, idxOff := -1, -1, -1
	for i, typ := range types {
		switch typ {
		case "TX_ON":
			if idxOn == -1 {
				idxOn = i
			}
		case "CYCLE_COMPLETE":
			if idxComplete == -1 {
				idxComplete = i
			}
		case "TX_OFF":
			if idxOff == -1 {
				idxOff = i
			}
		}
	}
	if idxOn == -1 || idxOff == -1 || idxComplete == -1 {
		t.Fatalf("expected TX_ON, TX_OFF and CYCLE_COMPLETE, got %v", types)
	}
	if !(idxOn < idxOff && idxOff < idxComplete) {
		t.Errorf("expected TX_ON before TX_OFF before CYCLE_COMPLETE, got %v", types)
	}

	complete := pub.Events[idxComplete]
	if complete.Cycle != 1 {
		t.Errorf("expected cycle count 1, got %d", complete.Cycle)
	}
}

func TestRunLoopCriticalBatteryHalts(t *testing.T) {
	// A flat battery is confirmed after the debounce count and the keyer
	// latches SAFETY_HALT even though it never left idle.
	source := adc.NewFakeSource(repeat(9.0, 5))
	pub := telemetry.NewFakePublisher()
	cfg := testKeyerConfig()
	cfg.CycleInterval = time.Hour
	deps := newLoopDeps(source, pub, cfg)
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)

	err := runRunLoop(t, deps, clock, 5, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var sawCritical, sawHalt bool
	for _, e := range pub.Events {
		switch e.Event {
		case "BATTERY_CRITICAL":
			sawCritical = true
		case "SAFETY_HALT":
			sawHalt = true
		}
	}
	if !sawCritical {
		t.Errorf("expected BATTERY_CRITICAL event, got %v", eventTypes(pub))
	}
	if !sawHalt {
		t.Errorf("expected SAFETY_HALT event, got %v", eventTypes(pub))
	}
	if deps.keyer.Phase() != keyer.PhaseSafetyHalt {
		t.Errorf("expected SAFETY_HALT phase, got %s", deps.keyer.Phase())
	}

	snap := deps.tracker.Snapshot()
	if snap.HaltReason == "" {
		t.Error("expected halt reason recorded in tracker")
	}
	if snap.Counts.SafetyHalts != 1 {
		t.Errorf("expected 1 safety halt counted, got %d", snap.Counts.SafetyHalts)
	}
}

func TestRunLoopADCReadError(t *testing.T) {
	// A dead ADC must not stop the loop or change the battery state.
	source := adc.NewFakeSource(nil)
	source.ReadError = errors.New("sysfs read failed")
	pub := telemetry.NewFakePublisher()
	cfg := testKeyerConfig()
	cfg.CycleInterval = time.Hour
	deps := newLoopDeps(source, pub, cfg)
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)

	err := runRunLoop(t, deps, clock, 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 beacon events, got %v", eventTypes(pub))
	}
	if deps.guardian.Current() != battery.StateGood {
		t.Errorf("expected battery state unchanged (GOOD), got %s", deps.guardian.Current())
	}

	found := false
	for _, se := range pub.SystemEvents {
		if se.Event == "SHUTDOWN" {
			found = true
		}
	}
	if !found {
		t.Error("expected SHUTDOWN system event after ADC errors")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// 5-minute clock step with a 15-minute heartbeat: the fourth tick is
	// 20 minutes after start, so exactly one heartbeat fires.
	source := adc.NewFakeSource(repeat(12.6, 1))
	pub := telemetry.NewFakePublisher()
	cfg := testKeyerConfig()
	cfg.CycleInterval = 24 * time.Hour
	deps := newLoopDeps(source, pub, cfg)
	deps.heartbeat = 15 * time.Minute
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)

	err := runRunLoop(t, deps, clock, 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats, shutdowns int
	for _, se := range pub.SystemEvents {
		switch se.Event {
		case "HEARTBEAT":
			heartbeats++
			if se.RawPayload == nil {
				t.Error("HEARTBEAT event missing status payload")
			}
		case "SHUTDOWN":
			shutdowns++
		}
	}
	if heartbeats != 1 {
		t.Errorf("expected 1 HEARTBEAT event, got %d", heartbeats)
	}
	if shutdowns != 1 {
		t.Errorf("expected 1 SHUTDOWN event, got %d", shutdowns)
	}
}

func TestRunLoopPublishError(t *testing.T) {
	// A transition occurs but Publish returns an error — the loop must
	// carry on and still announce SHUTDOWN via PublishSystem.
	readings := append(repeat(12.6, 2), repeat(11.7, 3)...)
	source := adc.NewFakeSource(readings)
	pub := telemetry.NewFakePublisher()
	pub.PublishError = errors.New("broker unavailable")
	cfg := testKeyerConfig()
	cfg.CycleInterval = time.Hour
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)

	err := runRunLoop(t, newLoopDeps(source, pub, cfg), clock, len(readings), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(pub.Events))
	}

	found := false
	for _, se := range pub.SystemEvents {
		if se.Event == "SHUTDOWN" {
			found = true
		}
	}
	if !found {
		t.Error("expected SHUTDOWN system event despite publish errors")
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	source := adc.NewFakeSource(repeat(12.6, 1))
	pub := telemetry.NewFakePublisher()
	cfg := testKeyerConfig()
	cfg.CycleInterval = time.Hour
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)

	err := runRunLoop(t, newLoopDeps(source, pub, cfg), clock, 4, syscall.SIGINT)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	se := pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGINT" {
		t.Errorf("expected reason SIGINT, got %q", se.Reason)
	}
	if se.Retained != true {
		t.Error("expected Retained=true for SHUTDOWN")
	}
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	source := adc.NewFakeSource(repeat(12.6, 1))
	pub := telemetry.NewFakePublisher()
	cfg := testKeyerConfig()
	cfg.CycleInterval = time.Hour
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)

	err := runRunLoop(t, newLoopDeps(source, pub, cfg), clock, 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	se := pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGTERM" {
		t.Errorf("expected reason SIGTERM, got %q", se.Reason)
	}
	if se.Retained != true {
		t.Error("expected Retained=true for SHUTDOWN")
	}
}

func TestRunLoopToneCarriesIdentification(t *testing.T) {
	// Over one full transmit cycle the sidetone gate must key the morse
	// identification and end up unkeyed.
	source := adc.NewFakeSource(repeat(12.6, 1))
	pub := telemetry.NewFakePublisher()
	deps := newLoopDeps(source, pub, testKeyerConfig())
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)

	// 68 ticks lands in the idle gap after the first CYCLE_COMPLETE (tick
	// 63) and before the second cycle keys up (tick 73), so exactly one
	// cycle runs and the gate is verifiably low at shutdown.
	err := runRunLoop(t, deps, clock, 68, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if deps.keyer.CycleCount() < 1 {
		t.Fatalf("expected a completed cycle, got %d", deps.keyer.CycleCount())
	}
	tone := deps.tone.(*gpio.FakeOutput)
	if tone.Transitions == 0 {
		t.Error("expected the sidetone gate to key the identification")
	}
	if tone.On {
		t.Error("sidetone gate left keyed after the cycle")
	}
}

func TestRunLoopLEDFollowsIndicator(t *testing.T) {
	// Over a couple of morse letters the LED must actually toggle.
	source := adc.NewFakeSource(repeat(12.6, 1))
	pub := telemetry.NewFakePublisher()
	cfg := testKeyerConfig()
	cfg.CycleInterval = time.Hour
	deps := newLoopDeps(source, pub, cfg)
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)

	err := runRunLoop(t, deps, clock, 30, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	led := deps.led.(*gpio.FakeOutput)
	if led.Transitions == 0 {
		t.Error("expected the status LED to blink")
	}
}
