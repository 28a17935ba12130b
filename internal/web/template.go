package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/beacon-keyer/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"volts": func(v float64) string {
		return fmt.Sprintf("%.2f V", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Beacon Keyer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.halt { color: red; font-weight: bold; }
.warn { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.banner { background: #fee; border: 1px solid red; padding: 8px; color: red; font-weight: bold; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Beacon Keyer{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

{{if .HaltReason}}<p class="banner">SAFETY HALT: {{.HaltReason}} (restart required)</p>{{end}}
{{if .Suspended}}<p class="banner">CYCLES SUSPENDED: battery shutdown pending</p>{{end}}

<h2>Transmitter</h2>
<table>
<tr><th>Phase</th><td id="phase" class="{{if eq (printf "%s" .Phase) "SAFETY_HALT"}}halt{{else if .TxOn}}on{{else}}off{{end}}">{{.Phase}}</td></tr>
<tr><th>Transmit enable</th><td id="tx-state" class="{{if .TxOn}}on{{else}}off{{end}}">{{if .TxOn}}KEYED{{else}}unkeyed{{end}}</td></tr>
<tr><th>Callsign</th><td>{{.Config.Callsign}}</td></tr>
<tr><th>Clips</th><td>{{.Config.ClipCount}} in {{.Config.ClipDir}}</td></tr>
</table>

<h2>Battery</h2>
<table>
<tr><th>State</th><td id="batt-state" class="{{if eq (printf "%s" .Battery) "GOOD"}}on{{else if eq (printf "%s" .Battery) "CRITICAL"}}halt{{else}}warn{{end}}">{{.Battery}}</td></tr>
<tr><th>Voltage</th><td>{{volts .Voltage}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} — {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Cycles</th><td>{{.Counts.Cycles}}</td></tr>
<tr><th>Battery transitions</th><td>{{.Counts.BatteryTransitions}}</td></tr>
<tr><th>Audio skips</th><td>{{.Counts.AudioSkips}}</td></tr>
<tr><th>Safety halts</th><td>{{.Counts.SafetyHalts}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Cycle interval</th><td>{{.Config.CycleMs}}ms</td></tr>
<tr><th>Max key</th><td>{{.Config.MaxKeyMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "radio/beacon/events";
  var dot = document.getElementById("live-dot");
  var phaseEl = document.getElementById("phase");
  var battEl = document.getElementById("batt-state");
  var txEl = document.getElementById("tx-state");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.beacon) {
        phaseEl.textContent = msg.beacon.phase;
        battEl.textContent = msg.beacon.battery;
        var keyed = msg.beacon.event === "TX_ON";
        txEl.textContent = keyed ? "KEYED" : "unkeyed";
        txEl.className = keyed ? "on" : "off";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
