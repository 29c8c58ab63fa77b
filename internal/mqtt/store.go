package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// defaultSettle is how long Load waits for the broker to replay
// retained field topics after subscribing.
const defaultSettle = 2 * time.Second

// SnapshotStore persists published fields as retained messages, one
// topic per field. Anything on the network can read the current
// counters straight off the broker, and the daemon reads them back
// after a restart.
type SnapshotStore struct {
	client paho.Client
	prefix string
	settle time.Duration
}

// NewSnapshotStore creates a store publishing under the given topic
// prefix.
func NewSnapshotStore(client paho.Client, prefix string) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		prefix: prefix,
		settle: defaultSettle,
	}
}

// Load subscribes to the device's field topics and collects whatever
// retained values the broker replays within the settle window.
func (s *SnapshotStore) Load(ctx context.Context, deviceID string) (map[string]string, error) {
	filter := FieldTopic(s.prefix, deviceID, "+")

	var mu sync.Mutex
	fields := make(map[string]string)
	token := s.client.Subscribe(filter, 1, func(_ paho.Client, msg paho.Message) {
		mu.Lock()
		fields[fieldFromTopic(msg.Topic())] = string(msg.Payload())
		mu.Unlock()
	})
	if !token.WaitTimeout(publishTimeout) {
		return nil, errors.New("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", filter, err)
	}

	// Retained messages arrive right after subscribing; take whatever
	// came in once the window closes.
	select {
	case <-ctx.Done():
	case <-time.After(s.settle):
	}

	unsub := s.client.Unsubscribe(filter)
	unsub.WaitTimeout(publishTimeout)

	mu.Lock()
	defer mu.Unlock()
	if len(fields) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

// Publish writes every field to its retained topic.
func (s *SnapshotStore) Publish(ctx context.Context, deviceID string, fields map[string]string) error {
	for field, value := range fields {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := s.client.Publish(FieldTopic(s.prefix, deviceID, field), 1, true, []byte(value))
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish %s: timeout", field)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", field, err)
		}
	}
	return nil
}

// Close is a no-op; the shared client is owned by the daemon.
func (s *SnapshotStore) Close() error {
	return nil
}

// fieldFromTopic extracts the field name, the last topic segment.
func fieldFromTopic(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
