package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullConfig = `
refresh = "30s"
timezone = "Europe/London"
http_addr = ":9090"

[mqtt]
broker = "tcp://broker.lan:1883"
client_prefix = "tracker"
topic_prefix = "heating"

[store]
kind = "file"
dir = "/var/lib/ontime"

[kafka]
brokers = ["kafka1:9092", "kafka2:9092"]
topic = "transitions"
group = "heating-trackers"

[[device]]
id = "boiler"
name = "Boiler CH"
source = "mqtt"
state_topic = "home/boiler/state"
on_state = "heat"

[[device]]
id = "pump"
source = "gpio"
gpio_chip = "gpiochip0"
gpio_line = 17
gpio_pull = "up"
active_low = true
debounce = "500ms"
poll = "50ms"

[[device]]
id = "fan"
source = "kafka"
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Refresh.Std() != 30*time.Second {
		t.Errorf("Refresh: got %v, want 30s", cfg.Refresh.Std())
	}
	if cfg.Timezone != "Europe/London" {
		t.Errorf("Timezone: got %q", cfg.Timezone)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr: got %q", cfg.HTTPAddr)
	}
	if cfg.MQTT.Broker != "tcp://broker.lan:1883" {
		t.Errorf("MQTT.Broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.MQTT.TopicPrefix != "heating" {
		t.Errorf("MQTT.TopicPrefix: got %q", cfg.MQTT.TopicPrefix)
	}
	if cfg.Store.Kind != StoreFile || cfg.Store.Dir != "/var/lib/ontime" {
		t.Errorf("Store: got %+v", cfg.Store)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Topic != "transitions" {
		t.Errorf("Kafka: got %+v", cfg.Kafka)
	}

	if len(cfg.Devices) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(cfg.Devices))
	}

	boiler := cfg.Devices[0]
	if boiler.Source != SourceMQTT || boiler.StateTopic != "home/boiler/state" {
		t.Errorf("boiler: got %+v", boiler)
	}
	if boiler.OnState != "heat" {
		t.Errorf("boiler.OnState: got %q, want heat", boiler.OnState)
	}

	pump := cfg.Devices[1]
	if pump.GPIOChip != "gpiochip0" || pump.GPIOLine != 17 || pump.GPIOPull != "up" {
		t.Errorf("pump gpio: got %+v", pump)
	}
	if !pump.ActiveLow {
		t.Error("pump.ActiveLow: got false, want true")
	}
	if pump.Debounce.Std() != 500*time.Millisecond {
		t.Errorf("pump.Debounce: got %v, want 500ms", pump.Debounce.Std())
	}
	if pump.Poll.Std() != 50*time.Millisecond {
		t.Errorf("pump.Poll: got %v, want 50ms", pump.Poll.Std())
	}

	if cfg.Devices[2].Source != SourceKafka {
		t.Errorf("fan.Source: got %q, want kafka", cfg.Devices[2].Source)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/London" {
		t.Errorf("Location: got %v", loc)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[[device]]
id = "boiler"
state_topic = "home/boiler/state"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Refresh.Std() != 15*time.Second {
		t.Errorf("Refresh: got %v, want 15s", cfg.Refresh.Std())
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr: got %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.MQTT.Broker != "tcp://127.0.0.1:1883" {
		t.Errorf("MQTT.Broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.MQTT.TopicPrefix != "ontime" {
		t.Errorf("MQTT.TopicPrefix: got %q, want ontime", cfg.MQTT.TopicPrefix)
	}
	if cfg.Store.Kind != StoreMQTT {
		t.Errorf("Store.Kind: got %q, want mqtt", cfg.Store.Kind)
	}

	d := cfg.Devices[0]
	if d.Name != "boiler" {
		t.Errorf("Name: got %q, want id fallback", d.Name)
	}
	if d.Source != SourceMQTT {
		t.Errorf("Source: got %q, want mqtt", d.Source)
	}
	if d.OnState != "ON" {
		t.Errorf("OnState: got %q, want ON", d.OnState)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc != time.Local {
		t.Errorf("Location: got %v, want time.Local", loc)
	}
}

func TestParseGPIODefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[[device]]
id = "pump"
source = "gpio"
gpio_chip = "gpiochip0"
gpio_line = 4
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := cfg.Devices[0]
	if d.Debounce.Std() != 250*time.Millisecond {
		t.Errorf("Debounce: got %v, want 250ms", d.Debounce.Std())
	}
	if d.Poll.Std() != 100*time.Millisecond {
		t.Errorf("Poll: got %v, want 100ms", d.Poll.Std())
	}
}

func TestParseRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		toml string
		want string
	}{
		{
			name: "no devices",
			toml: ``,
			want: "at least one [[device]]",
		},
		{
			name: "duplicate device id",
			toml: `
[[device]]
id = "boiler"
state_topic = "a"
[[device]]
id = "boiler"
state_topic = "b"
`,
			want: "duplicate device id",
		},
		{
			name: "bad id characters",
			toml: `
[[device]]
id = "boiler/1"
state_topic = "a"
`,
			want: "letters, digits",
		},
		{
			name: "missing id",
			toml: `
[[device]]
state_topic = "a"
`,
			want: "id is required",
		},
		{
			name: "mqtt source without topic",
			toml: `
[[device]]
id = "boiler"
`,
			want: "requires state_topic",
		},
		{
			name: "unknown source",
			toml: `
[[device]]
id = "boiler"
source = "modbus"
`,
			want: "unknown source",
		},
		{
			name: "unknown store kind",
			toml: `
[store]
kind = "redis"
[[device]]
id = "boiler"
state_topic = "a"
`,
			want: "unknown store kind",
		},
		{
			name: "file store without dir",
			toml: `
[store]
kind = "file"
[[device]]
id = "boiler"
state_topic = "a"
`,
			want: "requires store.dir",
		},
		{
			name: "postgres store without dsn",
			toml: `
[store]
kind = "postgres"
[[device]]
id = "boiler"
state_topic = "a"
`,
			want: "requires store.dsn",
		},
		{
			name: "gpio source without chip",
			toml: `
[[device]]
id = "pump"
source = "gpio"
`,
			want: "requires gpio_chip",
		},
		{
			name: "bad gpio pull",
			toml: `
[[device]]
id = "pump"
source = "gpio"
gpio_chip = "gpiochip0"
gpio_pull = "sideways"
`,
			want: "unknown gpio_pull",
		},
		{
			name: "kafka source without brokers",
			toml: `
[[device]]
id = "fan"
source = "kafka"
`,
			want: "requires kafka.brokers",
		},
		{
			name: "kafka source without topic",
			toml: `
[kafka]
brokers = ["kafka1:9092"]
[[device]]
id = "fan"
source = "kafka"
`,
			want: "requires kafka.topic",
		},
		{
			name: "zero refresh",
			toml: `
refresh = "0s"
[[device]]
id = "boiler"
state_topic = "a"
`,
			want: "refresh must be positive",
		},
		{
			name: "bad timezone",
			toml: `
timezone = "Mars/Olympus_Mons"
[[device]]
id = "boiler"
state_topic = "a"
`,
			want: "timezone",
		},
		{
			name: "bad duration syntax",
			toml: `
refresh = "soon"
[[device]]
id = "boiler"
state_topic = "a"
`,
			want: "duration",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.toml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ontime.toml")
	if err := os.WriteFile(path, []byte(fullConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Devices) != 3 {
		t.Errorf("expected 3 devices, got %d", len(cfg.Devices))
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDeviceMetadata(t *testing.T) {
	d := Device{ID: "boiler", Name: "Boiler CH", OnState: "heat"}
	m := d.Metadata()
	if m.ID != "boiler" || m.Name != "Boiler CH" || m.OnState != "heat" {
		t.Errorf("unexpected metadata: %+v", m)
	}
}
