package web

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/sweeney/hc-receiver/internal/logic"
	"github.com/sweeney/hc-receiver/internal/status"
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
	"value": formatValue,
	"keys": func(r logic.Record) []string {
		return r.Keys()
	},
}).Parse(indexHTML))

func formatValue(v any) string {
	switch v := v.(type) {
	case bool:
		if v {
			return "ON"
		}
		return "OFF"
	case float64:
		return fmt.Sprintf("%.1f", math.Round(v*10)/10)
	default:
		return fmt.Sprint(v)
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Heating Controllers</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Heating Controllers{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

{{range .Controllers}}
<h2>Controller {{.ID}}{{if .Device}} ({{.Device}}){{end}}</h2>
<table id="controller-{{.ID}}">
<tr><th>Pin</th><td>{{.Pin}}</td></tr>
<tr><th>Last record</th><td class="last-seen {{if .LastSeen.IsZero}}unknown{{end}}">{{if .LastSeen.IsZero}}none{{else}}{{.LastSeen.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
<tr><th>Records</th><td>{{.Records}}</td></tr>
{{- $rec := .LastRecord}}
{{- range keys .LastRecord}}{{if ne . "devicetype"}}
<tr><th>{{.}}</th><td data-field="{{.}}">{{value (index $rec .)}}</td></tr>
{{- end}}{{end}}
<tr><th>Sync markers</th><td>{{.Stats.SyncMarkers}}</td></tr>
<tr><th>Sync losses</th><td>{{.Stats.SyncLosses}}</td></tr>
<tr><th>Invalid pulses</th><td>{{.Stats.InvalidPulses}}</td></tr>
<tr><th>Unknown devices</th><td>{{.Stats.UnknownDevices}}</td></tr>
<tr><th>Length mismatches</th><td>{{.Stats.LengthMismatches}}</td></tr>
<tr><th>Dropped</th><td>{{.Dropped}}</td></tr>
</table>
{{else}}
<p class="unknown">No controllers configured.</p>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>GPIO chip</th><td>{{.Config.Chip}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/devices.json">Devices</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "heating/controllers/+/state";
  var dot = document.getElementById("live-dot");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function show(v) {
    if (v === true) return "ON";
    if (v === false) return "OFF";
    if (typeof v === "number") return v.toFixed(1);
    return String(v);
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
      if (!msg.reading) return;
      var table = document.getElementById("controller-" + msg.reading.controller);
      if (!table) return;
      var seen = table.querySelector(".last-seen");
      if (seen) {
        seen.textContent = msg.reading.timestamp;
        seen.className = "last-seen";
      }
      Object.keys(msg.reading.values).forEach(function(k) {
        var cell = table.querySelector('[data-field="' + k + '"]');
        if (cell) cell.textContent = show(msg.reading.values[k]);
      });
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and Ready() methods but the template needs fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Ready  bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Ready:    snap.Ready(),
	}
	indexTmpl.Execute(w, data)
}
