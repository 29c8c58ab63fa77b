package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/ontime-tracker/internal/ontime"
)

func TestStateFeedReceivesRetainedInitialState(t *testing.T) {
	client := newFakeClient()
	client.retained["home/boiler/state"] = "ON"

	f, err := NewStateFeed(client, "home/boiler/state", "ON")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	select {
	case ev := <-f.Events():
		if ev.State != ontime.StateOn {
			t.Errorf("expected ON from retained payload, got %s", ev.State)
		}
	default:
		t.Fatal("expected retained payload to produce an initial event")
	}
}

func TestStateFeedMapsPayloads(t *testing.T) {
	client := newFakeClient()
	f, err := NewStateFeed(client, "home/boiler/state", "ON")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	cases := []struct {
		payload  string
		expected ontime.State
	}{
		{"ON", ontime.StateOn},
		{"on", ontime.StateOn},
		{" ON ", ontime.StateOn},
		{"OFF", ontime.StateOff},
		{"standby", ontime.StateOff},
	}

	for _, tc := range cases {
		if !client.deliver("home/boiler/state", tc.payload) {
			t.Fatalf("no handler registered for payload %q", tc.payload)
		}
		select {
		case ev := <-f.Events():
			if ev.State != tc.expected {
				t.Errorf("payload %q: expected %s, got %s", tc.payload, tc.expected, ev.State)
			}
		default:
			t.Fatalf("payload %q: expected an event", tc.payload)
		}
	}
}

func TestStateFeedStampsArrivalTime(t *testing.T) {
	client := newFakeClient()
	f, err := NewStateFeed(client, "home/boiler/state", "ON")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	arrival := time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC)
	f.now = func() time.Time { return arrival }

	client.deliver("home/boiler/state", "ON")

	ev := <-f.Events()
	if !ev.At.Equal(arrival) {
		t.Errorf("expected arrival stamp %v, got %v", arrival, ev.At)
	}
}

func TestStateFeedCloseStopsStream(t *testing.T) {
	client := newFakeClient()
	f, err := NewStateFeed(client, "home/boiler/state", "ON")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	// An in-flight message arriving after Close must not panic or emit
	f.handle(client, fakeMessage{topic: "home/boiler/state", payload: []byte("ON")})

	if _, ok := <-f.Events(); ok {
		t.Error("expected closed event channel")
	}
}

func TestStateFeedDropsWhenConsumerSlow(t *testing.T) {
	client := newFakeClient()
	f, err := NewStateFeed(client, "home/boiler/state", "ON")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	for i := 0; i < 20; i++ {
		client.deliver("home/boiler/state", "ON")
	}

	count := 0
	for {
		select {
		case <-f.Events():
			count++
			continue
		default:
		}
		break
	}
	if count != 16 {
		t.Errorf("expected 16 buffered events, got %d", count)
	}
}

func TestNewStateFeedSubscribeError(t *testing.T) {
	client := newFakeClient()
	client.subscribeErr = errors.New("simulated error")

	if _, err := NewStateFeed(client, "home/boiler/state", "ON"); err == nil {
		t.Error("expected subscribe error")
	}
}
