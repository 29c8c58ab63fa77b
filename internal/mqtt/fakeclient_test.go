package mqtt

import (
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a paho token that completes immediately.
type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

// fakeMessage is a paho message with a fixed topic and payload.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return true }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// publishRecord captures one Publish call.
type publishRecord struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakeClient is an in-memory paho client. Retained payloads seeded
// into it are delivered synchronously on matching subscribes, the way
// a broker replays retained topics.
type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	publishes    []publishRecord
	handlers     map[string]paho.MessageHandler
	retained     map[string]string
	publishErr   error
	subscribeErr error
}

var _ paho.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		connected: true,
		handlers:  make(map[string]paho.MessageHandler),
		retained:  make(map[string]string),
	}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *fakeClient) Connect() paho.Token { return fakeToken{} }

func (c *fakeClient) Disconnect(quiesce uint) {
	c.setConnected(false)
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return fakeToken{err: c.publishErr}
	}
	var data string
	switch p := payload.(type) {
	case []byte:
		data = string(p)
	case string:
		data = p
	}
	c.publishes = append(c.publishes, publishRecord{topic: topic, qos: qos, retained: retained, payload: data})
	if retained {
		c.retained[topic] = data
	}
	return fakeToken{}
}

func (c *fakeClient) Subscribe(filter string, qos byte, cb paho.MessageHandler) paho.Token {
	c.mu.Lock()
	if c.subscribeErr != nil {
		c.mu.Unlock()
		return fakeToken{err: c.subscribeErr}
	}
	c.handlers[filter] = cb
	var replay []fakeMessage
	for topic, payload := range c.retained {
		if topicMatches(filter, topic) {
			replay = append(replay, fakeMessage{topic: topic, payload: []byte(payload)})
		}
	}
	c.mu.Unlock()

	for _, msg := range replay {
		cb(c, msg)
	}
	return fakeToken{}
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, cb paho.MessageHandler) paho.Token {
	return fakeToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	return fakeToken{}
}

func (c *fakeClient) AddRoute(topic string, cb paho.MessageHandler) {}

func (c *fakeClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

// deliver hands a live message to the handler whose filter matches.
// Returns false when nothing is subscribed for the topic.
func (c *fakeClient) deliver(topic, payload string) bool {
	c.mu.Lock()
	var cb paho.MessageHandler
	for filter, h := range c.handlers {
		if topicMatches(filter, topic) {
			cb = h
			break
		}
	}
	c.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(c, fakeMessage{topic: topic, payload: []byte(payload)})
	return true
}

// records returns a copy of the publish log.
func (c *fakeClient) records() []publishRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]publishRecord, len(c.publishes))
	copy(out, c.publishes)
	return out
}

func (c *fakeClient) setConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = v
}

// topicMatches supports exact filters and a trailing single-level
// wildcard, enough for the topics used here.
func topicMatches(filter, topic string) bool {
	if filter == topic {
		return true
	}
	if strings.HasSuffix(filter, "/+") {
		prefix := strings.TrimSuffix(filter, "+")
		return strings.HasPrefix(topic, prefix) && !strings.Contains(topic[len(prefix):], "/")
	}
	return false
}
