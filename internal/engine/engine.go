// Package engine drives the accounting loop for one device: it folds
// feed events into the interval history and republishes the derived
// state on every refresh tick.
package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sweeney/ontime-tracker/internal/feed"
	"github.com/sweeney/ontime-tracker/internal/metrics"
	"github.com/sweeney/ontime-tracker/internal/mqtt"
	"github.com/sweeney/ontime-tracker/internal/ontime"
	"github.com/sweeney/ontime-tracker/internal/statestore"
	"github.com/sweeney/ontime-tracker/internal/status"
)

const defaultPublishTimeout = 10 * time.Second

// Config assembles one device's dependencies. Source, Store, and
// Tracker are required; Events and Status are optional.
type Config struct {
	Device         ontime.Device
	Tracker        *ontime.Tracker
	Source         feed.Source
	Store          statestore.Store
	Events         mqtt.Publisher
	Status         *status.Tracker
	Interval       time.Duration
	PublishTimeout time.Duration
	Now            func() time.Time
}

// Engine runs the accounting loop for a single device. Every tracker
// access happens on the loop goroutine, which is what keeps one
// device's updates serialized.
type Engine struct {
	device     ontime.Device
	tracker    *ontime.Tracker
	source     feed.Source
	store      statestore.Store
	events     mqtt.Publisher
	status     *status.Tracker
	interval   time.Duration
	pubTimeout time.Duration
	now        func() time.Time
}

// New validates the config and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("engine: tracker is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("engine: source is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	e := &Engine{
		device:     cfg.Device,
		tracker:    cfg.Tracker,
		source:     cfg.Source,
		store:      cfg.Store,
		events:     cfg.Events,
		status:     cfg.Status,
		interval:   cfg.Interval,
		pubTimeout: cfg.PublishTimeout,
		now:        cfg.Now,
	}
	if e.interval <= 0 {
		e.interval = ontime.RefreshInterval
	}
	if e.pubTimeout <= 0 {
		e.pubTimeout = defaultPublishTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Run drives the loop until ctx is cancelled or the event source
// closes. It returns ctx.Err() on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	return e.loop(ctx, ticker.C)
}

// loop is separated from Run so tests can drive ticks manually.
func (e *Engine) loop(ctx context.Context, tick <-chan time.Time) error {
	if e.status != nil {
		e.status.Register(e.device)
	}

	// Publish immediately so a restart doesn't sit dark for a full
	// interval.
	e.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-e.source.Events():
			if !ok {
				return errors.New("event source closed")
			}
			e.handleEvent(ev)
		case <-tick:
			e.tick(ctx)
		}
	}
}

func (e *Engine) handleEvent(ev feed.Event) {
	at := ev.At
	if at.IsZero() {
		at = e.now()
	}
	if !e.tracker.RecordTransition(ev.State, at) {
		metrics.IncIgnoredTransition(e.device.ID)
		return
	}
	log.Printf("device %q: %s at %s", e.device.ID, ev.State, at.Format(time.RFC3339))
	metrics.IncTransition(e.device.ID, string(ev.State))

	if e.status != nil {
		e.status.SetState(e.device, ev.State)
	}
	if e.events != nil {
		tr := mqtt.Transition{Device: e.device, State: ev.State, Timestamp: at}
		if err := e.events.PublishTransition(tr); err != nil {
			log.Printf("device %q: publish transition: %v", e.device.ID, err)
			metrics.IncPublishFailure(e.device.ID, "events")
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	started := e.now()
	res, err := e.tracker.Tick(started)
	if err != nil {
		// Keep the previous published state; the next tick retries.
		log.Printf("device %q: skipping tick: %v", e.device.ID, err)
		metrics.IncSkippedTick(e.device.ID)
		return
	}

	if e.status != nil {
		e.status.SetSnapshot(res.Snapshot)
	}
	for _, w := range res.Snapshot.Windows {
		metrics.SetWindowMinutes(e.device.ID, w.Key, w.Minutes)
	}
	metrics.SetDeviceOn(e.device.ID, res.Snapshot.On)
	metrics.SetBaselinedWindows(e.device.ID, e.tracker.BaselineWindows())
	metrics.AddPrunedIntervals(e.device.ID, res.Pruned)

	pubCtx, cancel := context.WithTimeout(ctx, e.pubTimeout)
	if err := e.store.Publish(pubCtx, e.device.ID, res.Snapshot.Fields()); err != nil {
		log.Printf("device %q: publish state: %v", e.device.ID, err)
		metrics.IncPublishFailure(e.device.ID, "state")
	}
	cancel()

	for _, r := range res.Rollovers {
		log.Printf("device %q: day %s closed: %.1f minutes on, %d on-events",
			e.device.ID, r.Day.Format("2006-01-02"), r.Minutes, r.Count)
	}
	metrics.AddRollovers(e.device.ID, len(res.Rollovers))
	metrics.ObserveTick(e.device.ID, e.now().Sub(started))
}
