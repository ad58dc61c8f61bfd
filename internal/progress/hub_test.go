package progress

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(hub *Hub) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, 256),
		logger: testLogger(),
	}
}

func receiveEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case payload := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("unexpected event: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RoutesEventsToSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	subscriber := newTestClient(hub)
	bystander := newTestClient(hub)
	hub.Register(subscriber)
	hub.Register(bystander)
	hub.Subscribe(subscriber, "task-1")
	hub.Subscribe(bystander, "task-2")

	hub.Publish(Event{Type: EventFetched, MiningID: "task-1", Count: 42})

	ev := receiveEvent(t, subscriber)
	assert.Equal(t, EventFetched, ev.Type)
	assert.Equal(t, "task-1", ev.MiningID)
	assert.Equal(t, int64(42), ev.Count)

	assertNoEvent(t, bystander)
}

func TestHub_PerTaskFIFO(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	subscriber := newTestClient(hub)
	hub.Register(subscriber)
	hub.Subscribe(subscriber, "task-1")

	for i := int64(1); i <= 5; i++ {
		hub.Publish(Event{Type: EventExtracted, MiningID: "task-1", Count: i})
	}

	for i := int64(1); i <= 5; i++ {
		ev := receiveEvent(t, subscriber)
		assert.Equal(t, i, ev.Count)
	}
}

func TestHub_NoReplayForLateSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	hub.Publish(Event{Type: EventFetched, MiningID: "task-1", Count: 1})

	late := newTestClient(hub)
	hub.Register(late)
	hub.Subscribe(late, "task-1")

	// Give the earlier publish time to drain through the hub loop
	assertNoEvent(t, late)

	hub.Publish(Event{Type: EventFetched, MiningID: "task-1", Count: 2})
	ev := receiveEvent(t, late)
	assert.Equal(t, int64(2), ev.Count)
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	subscriber := newTestClient(hub)
	hub.Register(subscriber)
	hub.Subscribe(subscriber, "task-1")

	hub.Publish(Event{Type: EventFetched, MiningID: "task-1", Count: 1})
	receiveEvent(t, subscriber)

	hub.Unsubscribe(subscriber, "task-1")
	hub.Publish(Event{Type: EventFetched, MiningID: "task-1", Count: 2})
	assertNoEvent(t, subscriber)
}

func TestHub_CloseEventCarriesError(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	subscriber := newTestClient(hub)
	hub.Register(subscriber)
	hub.Subscribe(subscriber, "task-1")

	hub.Publish(Event{Type: EventClose, MiningID: "task-1", Error: "authorization expired"})

	ev := receiveEvent(t, subscriber)
	assert.Equal(t, EventClose, ev.Type)
	assert.Equal(t, "authorization expired", ev.Error)
}
