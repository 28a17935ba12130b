// Command beacon-keyer runs an unattended radio beacon: it keys the
// transmitter on a fixed cycle, plays an audio clip bracketed by morse,
// and stands down when the battery can no longer support transmission.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/beacon-keyer/internal/adc"
	"github.com/sweeney/beacon-keyer/internal/audio"
	"github.com/sweeney/beacon-keyer/internal/battery"
	"github.com/sweeney/beacon-keyer/internal/gpio"
	"github.com/sweeney/beacon-keyer/internal/indicator"
	"github.com/sweeney/beacon-keyer/internal/keyer"
	"github.com/sweeney/beacon-keyer/internal/status"
	"github.com/sweeney/beacon-keyer/internal/telemetry"
	"github.com/sweeney/beacon-keyer/internal/web"
)

func main() {
	poll := flag.Duration("poll", 20*time.Millisecond, "Tick interval")
	preRoll := flag.Duration("pre-roll", keyer.DefaultPreRoll, "Key-up settle time before content")
	tail := flag.Duration("tail", keyer.DefaultTail, "Key-down hold time after content")
	cycle := flag.Duration("cycle", keyer.DefaultCycleInterval, "Idle interval between transmit cycles")
	maxKey := flag.Duration("max-key", keyer.DefaultMaxKeyDuration, "Watchdog ceiling on continuous keying")
	dot := flag.Duration("dot", keyer.DefaultDot, "Morse dot duration")
	audioFloor := flag.Duration("audio-floor", keyer.DefaultAudioFloor, "Minimum cumulative audio per cycle")
	callsign := flag.String("callsign", "", "Station callsign for identification (required)")
	clips := flag.String("clips", "/var/lib/beacon/clips", "Audio clip directory")
	player := flag.String("player", audio.DefaultCommand, "External audio playback command")
	noRepeat := flag.Bool("no-repeat", false, "Avoid playing the same clip twice in a row")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	pinPTT := flag.Int("pin-ptt", gpio.PinPTT, "BCM pin number for transmit enable")
	pinTone := flag.Int("pin-tone", gpio.PinTone, "BCM pin number for the morse sidetone gate")
	pinLED := flag.Int("pin-led", gpio.PinLED, "BCM pin number for the status LED")
	adcDevice := flag.String("adc", adc.DefaultDevice, "IIO sysfs directory of the battery ADC")
	adcChannel := flag.Int("adc-channel", adc.DefaultChannel, "IIO voltage channel index")
	adcDivider := flag.Float64("adc-divider", adc.DefaultDivider, "Battery voltage divider ratio")
	debounceCount := flag.Int("debounce-count", battery.DefaultDebounceCount, "Consecutive samples to confirm a battery state")
	vGood := flag.Float64("v-good", battery.DefaultThresholds.Good, "GOOD threshold, volts")
	vLow := flag.Float64("v-low", battery.DefaultThresholds.Low, "LOW threshold, volts")
	vVeryLow := flag.Float64("v-verylow", battery.DefaultThresholds.VeryLow, "VERY_LOW threshold, volts")
	vShutdown := flag.Float64("v-shutdown", battery.DefaultThresholds.ShutdownPending, "SHUTDOWN_PENDING threshold, volts")
	printState := flag.Bool("print-state", false, "Print battery voltage and state, then exit")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	flag.Parse()

	thresholds := battery.Thresholds{
		Good:            *vGood,
		Low:             *vLow,
		VeryLow:         *vVeryLow,
		ShutdownPending: *vShutdown,
	}
	if !thresholds.Valid() {
		log.Fatalf("fatal: battery thresholds must strictly decrease (good > low > verylow > shutdown)")
	}

	cfg := keyer.Config{
		PreRoll:        *preRoll,
		Tail:           *tail,
		CycleInterval:  *cycle,
		MaxKeyDuration: *maxKey,
		Dot:            *dot,
		AudioFloor:     *audioFloor,
		Callsign:       *callsign,
	}

	opts := options{
		poll:          *poll,
		keyerCfg:      cfg,
		clips:         *clips,
		player:        *player,
		noRepeat:      *noRepeat,
		broker:        *broker,
		heartbeat:     *heartbeat,
		pinPTT:        *pinPTT,
		pinTone:       *pinTone,
		pinLED:        *pinLED,
		adcDevice:     *adcDevice,
		adcChannel:    *adcChannel,
		adcDivider:    *adcDivider,
		thresholds:    thresholds,
		debounceCount: *debounceCount,
		printState:    *printState,
		httpAddr:      *httpAddr,
		wsBroker:      resolveWSBroker(*wsBroker, *broker),
	}

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

type options struct {
	poll          time.Duration
	keyerCfg      keyer.Config
	clips         string
	player        string
	noRepeat      bool
	broker        string
	heartbeat     time.Duration
	pinPTT        int
	pinTone       int
	pinLED        int
	adcDevice     string
	adcChannel    int
	adcDivider    float64
	thresholds    battery.Thresholds
	debounceCount int
	printState    bool
	httpAddr      string
	wsBroker      string
}

func run(opts options) error {
	// Claim the transmit pin first so it is driven low before anything
	// else can fail.
	ptt, err := gpio.NewRealOutput(opts.pinPTT)
	if err != nil {
		return fmt.Errorf("init ptt gpio: %w", err)
	}
	defer ptt.Close()

	source, err := adc.NewIIOSource(opts.adcDevice, opts.adcChannel, opts.adcDivider, adc.DefaultSamples)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer source.Close()

	// Print state mode
	if opts.printState {
		voltage, err := source.Read()
		if err != nil {
			return fmt.Errorf("read adc: %w", err)
		}
		fmt.Printf("battery: %.2f V (%s)\n", voltage, opts.thresholds.Classify(voltage))
		return nil
	}

	if opts.keyerCfg.Callsign == "" {
		return fmt.Errorf("callsign is required")
	}

	// Refuse to start with nothing to transmit. This must fail before
	// the first key-down, not during a cycle.
	clipList, err := audio.ScanClips(opts.clips)
	if err != nil {
		return fmt.Errorf("scan clips: %w", err)
	}

	tone, err := gpio.NewRealOutput(opts.pinTone)
	if err != nil {
		return fmt.Errorf("init tone gpio: %w", err)
	}
	defer tone.Close()

	led, err := gpio.NewRealOutput(opts.pinLED)
	if err != nil {
		return fmt.Errorf("init led gpio: %w", err)
	}
	defer led.Close()

	publisher, err := telemetry.NewRealPublisher(opts.broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:       opts.poll.Milliseconds(),
		PreRollMs:    opts.keyerCfg.PreRoll.Milliseconds(),
		TailMs:       opts.keyerCfg.Tail.Milliseconds(),
		CycleMs:      opts.keyerCfg.CycleInterval.Milliseconds(),
		MaxKeyMs:     opts.keyerCfg.MaxKeyDuration.Milliseconds(),
		DotMs:        opts.keyerCfg.Dot.Milliseconds(),
		AudioFloorMs: opts.keyerCfg.AudioFloor.Milliseconds(),
		HeartbeatMs:  opts.heartbeat.Milliseconds(),
		DebounceN:    opts.debounceCount,
		Broker:       opts.broker,
		HTTPPort:     opts.httpAddr,
		WSBroker:     opts.wsBroker,
		Callsign:     opts.keyerCfg.Callsign,
		ClipDir:      opts.clips,
		ClipCount:    len(clipList),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := telemetry.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	selector := audio.NewSelector(clipList, opts.noRepeat, rand.New(rand.NewSource(time.Now().UnixNano())))
	clipPlayer := audio.NewExecPlayer(opts.player)
	defer clipPlayer.Close()

	k := keyer.New(opts.keyerCfg, ptt, clipPlayer, selector)
	guardian := battery.NewGuardian(opts.thresholds, opts.debounceCount)
	ind := indicator.New(opts.keyerCfg.Dot)

	log.Printf("started: poll=%v cycle=%v max-key=%v callsign=%s clips=%d broker=%s",
		opts.poll, opts.keyerCfg.CycleInterval, opts.keyerCfg.MaxKeyDuration,
		opts.keyerCfg.Callsign, len(clipList), opts.broker)

	ticker := time.NewTicker(opts.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		source:     source,
		tone:       tone,
		led:        led,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		guardian:   guardian,
		keyer:      k,
		indicator:  ind,
		heartbeat:  opts.heartbeat,
	}, time.Now, ticker.C, sigCh)
}

// loopDeps carries everything runLoop needs, so tests can substitute
// fakes for the hardware and the broker.
type loopDeps struct {
	source     adc.Source
	tone       gpio.Output
	led        gpio.Output
	publisher  telemetry.Publisher
	mqttStatus telemetry.ConnectionStatus
	tracker    *status.Tracker
	guardian   *battery.Guardian
	keyer      *keyer.Keyer
	indicator  *indicator.Indicator
	heartbeat  time.Duration
}

func runLoop(deps loopDeps, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	var counts status.Counts
	var voltage float64
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := telemetry.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if deps.tracker != nil {
				if deps.mqttStatus != nil {
					deps.tracker.SetMQTTConnected(deps.mqttStatus.IsConnected())
				}
				snap := deps.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := deps.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()

			v, err := deps.source.Read()
			if err != nil {
				// Keep the last confirmed state; a dead ADC must not
				// free-run the transmitter into a flat battery.
				log.Printf("adc read error: %v", err)
			} else {
				voltage = v
				if tr := deps.guardian.Sample(v, t); tr != nil {
					counts.BatteryTransitions++
					log.Printf("battery: %s -> %s (%.2f V)", tr.From, tr.To, tr.Voltage)
					publishBattery(deps.publisher, tr, deps.keyer)
				}
			}

			batt := deps.guardian.Current()
			for _, e := range deps.keyer.Tick(t, batt) {
				log.Printf("keyer: %s phase=%s cycle=%d %s", e.Type, e.Phase, e.Cycle, e.Reason)
				switch e.Type {
				case keyer.EventAudioSkipped:
					counts.AudioSkips++
				case keyer.EventSafetyHalt:
					counts.SafetyHalts++
					deps.tracker.SetHalt(e.Reason)
				case keyer.EventCyclesSuspended:
					deps.tracker.SetSuspended(true)
				}
				if err := deps.publisher.Publish(telemetry.Event{
					Timestamp: e.Timestamp,
					Event:     string(e.Type),
					Phase:     string(e.Phase),
					Battery:   string(batt),
					Voltage:   voltage,
					Cycle:     e.Cycle,
					Reason:    e.Reason,
				}); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}
			counts.Cycles = deps.keyer.CycleCount()

			// The keyer sequences the identification morse; the tone line
			// carries it out.
			if err := deps.tone.Set(deps.keyer.ToneActive()); err != nil {
				log.Printf("tone error: %v", err)
			}

			halted := deps.keyer.Phase() == keyer.PhaseSafetyHalt
			if err := deps.led.Set(deps.indicator.Tick(t, batt, halted)); err != nil {
				log.Printf("led error: %v", err)
			}

			// Check for heartbeat
			if deps.heartbeat > 0 && t.Sub(lastHeartbeat) >= deps.heartbeat {
				lastHeartbeat = t
				log.Printf("heartbeat: phase=%s battery=%s cycles=%d",
					deps.keyer.Phase(), batt, counts.Cycles)

				hbEvent := telemetry.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if deps.tracker != nil {
					if deps.mqttStatus != nil {
						deps.tracker.SetMQTTConnected(deps.mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						deps.tracker.SetNetwork(net)
					}
					deps.tracker.Update(deps.keyer.Phase(), deps.keyer.TxOn(), batt, voltage, counts)
					snap := deps.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := deps.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP consumers
			if deps.tracker != nil {
				deps.tracker.Update(deps.keyer.Phase(), deps.keyer.TxOn(), batt, voltage, counts)
				if deps.mqttStatus != nil {
					deps.tracker.SetMQTTConnected(deps.mqttStatus.IsConnected())
				}
			}
		}
	}
}

func publishBattery(publisher telemetry.Publisher, tr *battery.Transition, k *keyer.Keyer) {
	if err := publisher.Publish(telemetry.Event{
		Timestamp: tr.Timestamp,
		Event:     "BATTERY_" + string(tr.To),
		Phase:     string(k.Phase()),
		Battery:   string(tr.To),
		Voltage:   tr.Voltage,
		Cycle:     k.CycleCount(),
	}); err != nil {
		log.Printf("publish error: %v", err)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
