package feed

import (
	"log"
	"time"

	"github.com/sweeney/ontime-tracker/internal/gpio"
)

// Poller samples a GPIO line on a fixed interval and feeds the samples
// through a Detector. It owns its polling goroutine; Close stops the
// goroutine and releases the line.
type Poller struct {
	name     string
	reader   gpio.Reader
	det      *Detector
	interval time.Duration
	now      func() time.Time

	events chan Event
	stop   chan struct{}
	done   chan struct{}
}

// NewPoller starts polling the reader. name tags log lines, usually
// with the device ID.
func NewPoller(name string, reader gpio.Reader, debounce, interval time.Duration) *Poller {
	p := newPoller(name, reader, debounce, interval)
	go p.run()
	return p
}

func newPoller(name string, reader gpio.Reader, debounce, interval time.Duration) *Poller {
	return &Poller{
		name:     name,
		reader:   reader,
		det:      NewDetector(debounce),
		interval: interval,
		now:      time.Now,
		events:   make(chan Event, 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.loop(ticker.C)
}

// loop is separated from run so tests can drive ticks directly.
func (p *Poller) loop(tick <-chan time.Time) {
	defer close(p.done)
	defer close(p.events)

	p.sample()
	for {
		select {
		case <-p.stop:
			return
		case <-tick:
			p.sample()
		}
	}
}

// sample reads the line once and emits any settled transition. Read
// errors are logged and skipped; the next tick retries.
func (p *Poller) sample() {
	on, err := p.reader.Read()
	if err != nil {
		log.Printf("device %q: gpio read failed: %v", p.name, err)
		return
	}

	ev := p.det.Process(on, p.now())
	if ev == nil {
		return
	}

	select {
	case p.events <- *ev:
	case <-p.stop:
	}
}

// Events returns the transition stream. The channel is closed once the
// poller stops.
func (p *Poller) Events() <-chan Event {
	return p.events
}

// Close stops the polling goroutine and releases the GPIO line.
func (p *Poller) Close() error {
	close(p.stop)
	<-p.done
	return p.reader.Close()
}
