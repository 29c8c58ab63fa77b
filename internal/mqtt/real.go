package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// publishTimeout bounds each broker round trip.
const publishTimeout = 5 * time.Second

// bufferCapacity is how many messages are held while disconnected.
const bufferCapacity = 256

// RealPublisher publishes to an actual MQTT broker. Messages that
// arrive while the connection is down are held in a ring buffer and
// replayed in order once the broker is back.
type RealPublisher struct {
	client paho.Client
	prefix string

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher over a connected client. The
// client is shared with the other MQTT components; the daemon owns its
// lifecycle.
func NewRealPublisher(client paho.Client, prefix string) *RealPublisher {
	return &RealPublisher{
		client: client,
		prefix: prefix,
		buf:    newRingBuffer(bufferCapacity),
	}
}

// PublishTransition sends a device transition to the MQTT broker.
func (p *RealPublisher) PublishTransition(tr Transition) error {
	payload, err := FormatTransitionPayload(tr)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{
		topic:   EventsTopic(p.prefix, tr.Device.ID),
		payload: payload,
	})
}

// PublishSystem sends a daemon lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.send(bufferedMsg{
		topic:    SystemTopic(p.prefix),
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

// send delivers one message, replaying any backlog first so ordering
// survives a broker outage.
func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnected() {
		p.buf.push(msg)
		return nil
	}

	queued := p.buf.drainAll()
	for i, m := range queued {
		if err := p.publishOne(m); err != nil {
			// Requeue what did not make it, oldest first, then the
			// new message.
			for _, rest := range queued[i:] {
				p.buf.push(rest)
			}
			p.buf.push(msg)
			return fmt.Errorf("replay buffered: %w", err)
		}
	}

	if err := p.publishOne(msg); err != nil {
		p.buf.push(msg)
		return err
	}
	return nil
}

func (p *RealPublisher) publishOne(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Buffered returns how many messages wait for the broker to come back.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}
