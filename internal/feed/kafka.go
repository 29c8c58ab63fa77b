package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// kafkaPollTimeout bounds each fetch so shutdown is never stuck behind
// a quiet topic.
const kafkaPollTimeout = 5 * time.Second

// KafkaSource consumes state records for one device from a Kafka topic.
// Records carry their own timestamps, so a restarted consumer group
// replays the backlog and the tracker catches up from the records
// themselves rather than from an initial probe.
type KafkaSource struct {
	reader  *kafka.Reader
	device  string
	onState string

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// stateRecord is the wire form of one state observation.
type stateRecord struct {
	DeviceID string    `json:"device_id"`
	State    string    `json:"state"`
	At       time.Time `json:"at"`
}

// NewKafkaSource starts consuming the topic for records matching
// deviceID. onState is the raw payload value that counts as ON.
func NewKafkaSource(brokers []string, topic, groupID, deviceID, onState string) (*KafkaSource, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic must not be empty")
	}
	if groupID == "" {
		return nil, errors.New("consumer group must not be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	ctx, cancel := context.WithCancel(context.Background())
	k := &KafkaSource{
		reader:  reader,
		device:  deviceID,
		onState: onState,
		events:  make(chan Event, 16),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go k.run(ctx)
	return k, nil
}

func (k *KafkaSource) run(ctx context.Context) {
	defer close(k.done)
	defer close(k.events)

	for {
		if ctx.Err() != nil {
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, kafkaPollTimeout)
		msg, err := k.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, kafka.ErrGroupClosed) {
				return
			}
			log.Printf("device %q: kafka fetch failed: %v", k.device, err)
			continue
		}

		if ev, err := k.decode(msg.Value); err != nil {
			log.Printf("device %q: kafka record at offset %d dropped: %v", k.device, msg.Offset, err)
		} else if ev != nil {
			select {
			case k.events <- *ev:
			case <-ctx.Done():
				return
			}
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("device %q: kafka commit failed: %v", k.device, err)
		}
	}
}

// decode parses one record. Records for other devices return (nil,
// nil) and are skipped silently; malformed records return an error.
func (k *KafkaSource) decode(value []byte) (*Event, error) {
	var rec stateRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec.DeviceID != k.device {
		return nil, nil
	}
	if rec.At.IsZero() {
		return nil, errors.New("record has no timestamp")
	}
	return &Event{State: MapState(rec.State, k.onState), At: rec.At}, nil
}

// Events returns the record stream. The channel is closed once the
// consumer stops.
func (k *KafkaSource) Events() <-chan Event {
	return k.events
}

// Close stops the consumer goroutine and closes the reader.
func (k *KafkaSource) Close() error {
	k.cancel()
	<-k.done
	return k.reader.Close()
}
