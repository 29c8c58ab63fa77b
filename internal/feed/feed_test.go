package feed

import (
	"testing"

	"github.com/sweeney/ontime-tracker/internal/ontime"
)

func TestMapState(t *testing.T) {
	cases := []struct {
		raw     string
		onState string
		want    ontime.State
	}{
		{"ON", "ON", ontime.StateOn},
		{"on", "ON", ontime.StateOn},
		{" On ", "ON", ontime.StateOn},
		{"heat", "heat", ontime.StateOn},
		{"OFF", "ON", ontime.StateOff},
		{"standby", "ON", ontime.StateOff},
		{"", "ON", ontime.StateOff},
	}

	for _, c := range cases {
		got := MapState(c.raw, c.onState)
		if got != c.want {
			t.Errorf("MapState(%q, %q) = %s, want %s", c.raw, c.onState, got, c.want)
		}
	}
}
