// Package config loads the daemon's TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/sweeney/ontime-tracker/internal/mqtt"
	"github.com/sweeney/ontime-tracker/internal/ontime"
)

// Source and store kinds accepted by Validate.
const (
	SourceMQTT  = "mqtt"
	SourceGPIO  = "gpio"
	SourceKafka = "kafka"

	StoreMQTT     = "mqtt"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Duration wraps time.Duration so TOML values can be written as "15s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full daemon configuration.
type Config struct {
	// Refresh is how often each engine recomputes and republishes.
	Refresh Duration `toml:"refresh"`

	// Timezone is an IANA name used for day-boundary arithmetic.
	// Empty means the host's local time.
	Timezone string `toml:"timezone"`

	// HTTPAddr is the status page listen address. Empty disables it.
	HTTPAddr string `toml:"http_addr"`

	MQTT    MQTT     `toml:"mqtt"`
	Store   Store    `toml:"store"`
	Kafka   Kafka    `toml:"kafka"`
	Devices []Device `toml:"device"`
}

// MQTT configures the shared broker connection.
type MQTT struct {
	Broker       string `toml:"broker"`
	ClientPrefix string `toml:"client_prefix"`
	TopicPrefix  string `toml:"topic_prefix"`
}

// Store selects where per-device state fields are published.
type Store struct {
	Kind string `toml:"kind"`
	Dir  string `toml:"dir"`
	DSN  string `toml:"dsn"`
}

// Kafka configures the consumer used by kafka-sourced devices.
type Kafka struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	Group   string   `toml:"group"`
}

// Device configures one monitored device.
type Device struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`

	// Source selects where transitions come from: mqtt, gpio or kafka.
	Source string `toml:"source"`

	// OnState is the state label that counts as ON. It doubles as the
	// payload matched against mqtt/kafka feed values, and is published
	// as target_on_state.
	OnState string `toml:"on_state"`

	// mqtt source
	StateTopic string `toml:"state_topic"`

	// gpio source
	GPIOChip  string   `toml:"gpio_chip"`
	GPIOLine  int      `toml:"gpio_line"`
	GPIOPull  string   `toml:"gpio_pull"`
	ActiveLow bool     `toml:"active_low"`
	Debounce  Duration `toml:"debounce"`
	Poll      Duration `toml:"poll"`
}

// Metadata returns the device identity published with every snapshot.
func (d Device) Metadata() ontime.Device {
	return ontime.Device{ID: d.ID, Name: d.Name, OnState: d.OnState}
}

// Default returns the built-in configuration before any file or flag
// overrides are applied.
func Default() Config {
	return Config{
		Refresh:  Duration(ontime.RefreshInterval),
		HTTPAddr: ":8080",
		MQTT: MQTT{
			Broker:       "tcp://127.0.0.1:1883",
			ClientPrefix: "ontime-tracker",
			TopicPrefix:  mqtt.DefaultPrefix,
		},
		Store: Store{Kind: StoreMQTT},
		Kafka: Kafka{Group: "ontime-tracker"},
	}
}

// Load reads, defaults and validates the TOML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates raw TOML.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Name == "" {
			d.Name = d.ID
		}
		if d.Source == "" {
			d.Source = SourceMQTT
		}
		if d.OnState == "" {
			d.OnState = string(ontime.StateOn)
		}
		if d.Source == SourceGPIO {
			if d.Debounce == 0 {
				d.Debounce = Duration(250 * time.Millisecond)
			}
			if d.Poll == 0 {
				d.Poll = Duration(100 * time.Millisecond)
			}
		}
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Validate checks the configuration for mistakes a typo would cause.
func (c *Config) Validate() error {
	if c.Refresh.Std() <= 0 {
		return errors.New("config: refresh must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}

	switch c.Store.Kind {
	case StoreMQTT:
	case StoreFile:
		if c.Store.Dir == "" {
			return errors.New("config: file store requires store.dir")
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return errors.New("config: postgres store requires store.dsn")
		}
	default:
		return fmt.Errorf("config: unknown store kind %q (want mqtt, file or postgres)", c.Store.Kind)
	}

	if len(c.Devices) == 0 {
		return errors.New("config: at least one [[device]] is required")
	}
	seen := make(map[string]bool, len(c.Devices))
	for i := range c.Devices {
		d := &c.Devices[i]
		if err := d.validate(c); err != nil {
			return err
		}
		if seen[d.ID] {
			return fmt.Errorf("config: duplicate device id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

func (d *Device) validate(c *Config) error {
	if d.ID == "" {
		return errors.New("config: device id is required")
	}
	if !idPattern.MatchString(d.ID) {
		return fmt.Errorf("config: device id %q may only contain letters, digits, '-' and '_'", d.ID)
	}

	switch d.Source {
	case SourceMQTT:
		if d.StateTopic == "" {
			return fmt.Errorf("config: device %q: mqtt source requires state_topic", d.ID)
		}
	case SourceGPIO:
		if d.GPIOChip == "" {
			return fmt.Errorf("config: device %q: gpio source requires gpio_chip", d.ID)
		}
		if d.GPIOLine < 0 {
			return fmt.Errorf("config: device %q: gpio_line must not be negative", d.ID)
		}
		switch d.GPIOPull {
		case "", "up", "down", "none":
		default:
			return fmt.Errorf("config: device %q: unknown gpio_pull %q (want up, down or none)", d.ID, d.GPIOPull)
		}
		if d.Debounce.Std() <= 0 {
			return fmt.Errorf("config: device %q: debounce must be positive", d.ID)
		}
		if d.Poll.Std() <= 0 {
			return fmt.Errorf("config: device %q: poll must be positive", d.ID)
		}
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: device %q: kafka source requires kafka.brokers", d.ID)
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: device %q: kafka source requires kafka.topic", d.ID)
		}
	default:
		return fmt.Errorf("config: device %q: unknown source %q (want mqtt, gpio or kafka)", d.ID, d.Source)
	}
	return nil
}
