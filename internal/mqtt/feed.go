package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/ontime-tracker/internal/feed"
)

// StateFeed sources device transitions from an MQTT state topic. The
// external system publishes the device's raw state there, ideally
// retained: the broker then replays the current state on subscribe,
// which is the initial event the tracker needs to converge after a
// restart.
type StateFeed struct {
	client  paho.Client
	topic   string
	onState string
	now     func() time.Time

	mu      sync.Mutex
	stopped bool
	events  chan feed.Event
}

// NewStateFeed subscribes to the device's state topic. onState is the
// raw payload value that counts as ON.
func NewStateFeed(client paho.Client, topic, onState string) (*StateFeed, error) {
	f := &StateFeed{
		client:  client,
		topic:   topic,
		onState: onState,
		now:     time.Now,
		events:  make(chan feed.Event, 16),
	}

	token := client.Subscribe(topic, 1, f.handle)
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return f, nil
}

// handle maps one raw payload onto an arrival-stamped event.
func (f *StateFeed) handle(_ paho.Client, msg paho.Message) {
	ev := feed.Event{State: feed.MapState(string(msg.Payload()), f.onState), At: f.now()}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	select {
	case f.events <- ev:
	default:
		log.Printf("state feed %s: dropping event, consumer too slow", f.topic)
	}
}

// Events returns the transition stream.
func (f *StateFeed) Events() <-chan feed.Event {
	return f.events
}

// Close unsubscribes and closes the stream. The shared client stays
// connected.
func (f *StateFeed) Close() error {
	token := f.client.Unsubscribe(f.topic)
	token.WaitTimeout(publishTimeout)

	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	close(f.events)
	return token.Error()
}
