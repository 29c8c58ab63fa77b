package web

import (
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/ontime-tracker/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>ON-Time Tracker</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>ON-Time Tracker</h1>

<h2>Devices</h2>
<table>
<tr><th>Device</th><th>State</th><th>Today</th><th>ON count</th><th>Last 24h</th><th>Last 3 weeks</th><th></th></tr>
{{range .Rows}}<tr>
<td>{{.Name}}</td>
<td class="{{.Class}}">{{.State}}</td>
<td>{{if .Today}}{{.Today}}{{else}}-{{end}}</td>
<td>{{if .Count}}{{.Count}}{{else}}-{{end}}</td>
<td>{{if .Last24h}}{{.Last24h}}{{else}}-{{end}}</td>
<td>{{if .Last3w}}{{.Last3w}}{{else}}-{{end}}</td>
<td><a href="/devices/{{.ID}}.json">json</a></td>
</tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Refresh</th><td>{{.Config.RefreshSeconds}}s</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

// deviceRow is one rendered table row. Display strings are empty when
// the device has not ticked yet.
type deviceRow struct {
	ID      string
	Name    string
	State   string
	Class   string
	Today   string
	Count   string
	Last24h string
	Last3w  string
}

func buildRows(devices []status.DeviceStatus) []deviceRow {
	rows := make([]deviceRow, 0, len(devices))
	for _, d := range devices {
		row := deviceRow{
			ID:    d.Device.ID,
			Name:  d.Device.Name,
			State: status.StateLabel(d),
		}
		row.Class = strings.ToLower(row.State)
		if d.Snapshot != nil {
			row.Today = d.Snapshot.Today.Display
			row.Count = strconv.Itoa(d.Snapshot.Today.Count)
			if w, ok := d.Snapshot.Window("timeon_24hours"); ok {
				row.Last24h = w.Display
			}
			if w, ok := d.Snapshot.Window("timeon_3weeks"); ok {
				row.Last3w = w.Display
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has an Uptime() method but the template wants a value.
	data := struct {
		status.Snapshot
		Rows   []deviceRow
		Uptime time.Duration
	}{
		Snapshot: snap,
		Rows:     buildRows(snap.Devices),
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
