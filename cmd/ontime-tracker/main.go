// Command ontime-tracker accounts how long each configured device has
// been ON and publishes rolling-window totals.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/ontime-tracker/internal/config"
	"github.com/sweeney/ontime-tracker/internal/engine"
	"github.com/sweeney/ontime-tracker/internal/feed"
	"github.com/sweeney/ontime-tracker/internal/gpio"
	"github.com/sweeney/ontime-tracker/internal/metrics"
	"github.com/sweeney/ontime-tracker/internal/mqtt"
	"github.com/sweeney/ontime-tracker/internal/ontime"
	"github.com/sweeney/ontime-tracker/internal/statestore"
	"github.com/sweeney/ontime-tracker/internal/status"
	"github.com/sweeney/ontime-tracker/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/ontime-tracker.toml", "Path to the TOML configuration file")
	broker := flag.String("broker", "", "MQTT broker address (overrides the config file)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides the config file)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyOverrides(&cfg, *broker, *httpAddr)

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyOverrides lets flags win over the config file for the settings
// that differ between deployments of the same file.
func applyOverrides(cfg *config.Config, broker, httpAddr string) {
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
}

func run(cfg config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	metrics.Init()

	// Shared broker connection: the state feeds, the event publisher
	// and the mqtt store all ride on it.
	client, err := mqtt.NewClient(cfg.MQTT.Broker, cfg.MQTT.ClientPrefix)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Disconnect(1000)

	store, err := buildStore(cfg, client)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	publisher := mqtt.NewRealPublisher(client, cfg.MQTT.TopicPrefix)

	tracker := status.NewTracker(time.Now(), status.Config{
		RefreshSeconds: int64(cfg.Refresh.Std() / time.Second),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTPAddr,
	})
	tracker.SetMQTTConnected(client.IsConnected())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	reason := make(chan string, 1)
	go func() {
		s := <-sigCh
		log.Printf("received %v, shutting down", s)
		reason <- signalName(s)
		cancel()
	}()

	// Build every engine before starting any so a bad device config
	// fails the whole startup instead of half of it.
	type deviceEngine struct {
		id  string
		eng *engine.Engine
	}
	var engines []deviceEngine
	for _, dc := range cfg.Devices {
		dev := dc.Metadata()

		base := loadBaseline(ctx, store, dev.ID)
		tr := ontime.NewTracker(dev, loc, base, time.Now())

		source, err := buildSource(dc, cfg, client)
		if err != nil {
			return fmt.Errorf("device %q: %w", dev.ID, err)
		}
		defer source.Close()

		eng, err := engine.New(engine.Config{
			Device:   dev,
			Tracker:  tr,
			Source:   source,
			Store:    store,
			Events:   publisher,
			Status:   tracker,
			Interval: cfg.Refresh.Std(),
		})
		if err != nil {
			return fmt.Errorf("device %q: %w", dev.ID, err)
		}
		engines = append(engines, deviceEngine{id: dev.ID, eng: eng})
	}

	// Publish startup event with a config summary
	startup := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "STARTUP",
		Retained:  true,
		Config: &mqtt.SystemConfig{
			RefreshSeconds: int(cfg.Refresh.Std() / time.Second),
			Devices:        len(cfg.Devices),
			Broker:         cfg.MQTT.Broker,
		},
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	// Keep the status page's broker health current
	go func() {
		t := time.NewTicker(cfg.Refresh.Std())
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				tracker.SetMQTTConnected(client.IsConnected())
			}
		}
	}()

	log.Printf("started: devices=%d refresh=%v store=%s broker=%s",
		len(cfg.Devices), cfg.Refresh.Std(), cfg.Store.Kind, cfg.MQTT.Broker)

	var wg sync.WaitGroup
	for _, de := range engines {
		wg.Add(1)
		go func(id string, eng *engine.Engine) {
			defer wg.Done()
			if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("device %q: engine stopped: %v", id, err)
			}
		}(de.id, de.eng)
	}
	wg.Wait()

	shutdownReason := ""
	select {
	case shutdownReason = <-reason:
	default:
	}
	shutdown := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    shutdownReason,
		Retained:  true,
	}
	if err := publisher.PublishSystem(shutdown); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
	return nil
}

// loadBaseline pulls the previous run's published fields. A store
// failure degrades to zeros: the daemon under-reports until the
// windows refill, which beats not starting at all.
func loadBaseline(ctx context.Context, store statestore.Store, deviceID string) ontime.Baseline {
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fields, err := store.Load(loadCtx, deviceID)
	if err != nil {
		log.Printf("device %q: baseline load failed, starting from zero: %v", deviceID, err)
		return ontime.Baseline{}
	}

	base := ontime.ParseBaseline(fields)
	if base.Empty() {
		log.Printf("device %q: no stored state, starting from zero", deviceID)
		return base
	}
	log.Printf("device %q: baseline restored: today=%.1f min, %d pinned windows",
		deviceID, base.TodayMinutes, len(base.Windows))
	return base
}

func buildStore(cfg config.Config, client paho.Client) (statestore.Store, error) {
	switch cfg.Store.Kind {
	case config.StoreMQTT:
		return mqtt.NewSnapshotStore(client, cfg.MQTT.TopicPrefix), nil
	case config.StoreFile:
		return statestore.NewFileStore(cfg.Store.Dir)
	case config.StorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return statestore.NewPostgresStore(ctx, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
}

func buildSource(dc config.Device, cfg config.Config, client paho.Client) (feed.Source, error) {
	switch dc.Source {
	case config.SourceMQTT:
		return mqtt.NewStateFeed(client, dc.StateTopic, dc.OnState)
	case config.SourceGPIO:
		reader, err := gpio.NewRealReader(dc.GPIOChip, dc.GPIOLine, dc.GPIOPull, dc.ActiveLow)
		if err != nil {
			return nil, fmt.Errorf("init gpio: %w", err)
		}
		return feed.NewPoller(dc.ID, reader, dc.Debounce.Std(), dc.Poll.Std()), nil
	case config.SourceKafka:
		return feed.NewKafkaSource(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Group, dc.ID, dc.OnState)
	default:
		return nil, fmt.Errorf("unknown source %q", dc.Source)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
