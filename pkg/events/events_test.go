package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToLocalSubscriber(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(nil)
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: EventObjectCreated, ObjectClass: "Point", ObjectName: "p1"})

	select {
	case evt := <-sub:
		require.Equal(t, EventObjectCreated, evt.Type)
		require.False(t, evt.Timestamp.IsZero())
	default:
		t.Fatal("expected event to be delivered synchronously")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(nil)
	b.Unsubscribe(sub)

	_, ok := <-sub
	require.False(t, ok)
	require.Equal(t, 0, b.SubscriberCount())
}

func TestFullSubscriberBufferSkipsRatherThanBlocks(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(nil)

	for i := 0; i < 100; i++ {
		b.Publish(&Event{Type: EventMessage})
	}
	// Publish must never block even though the subscriber never drains;
	// everything past the buffer capacity is skipped.
	require.Len(t, sub, 50)
	require.Equal(t, 1, b.SubscriberCount())
}

func TestSubscribeFilterSelectsMatchingEventsOnly(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(func(e *Event) bool {
		return e.Type == EventObjectChanged && e.ObjectClass == "Vehicle"
	})
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: EventObjectChanged, ObjectClass: "Point", ObjectName: "p1"})
	b.Publish(&Event{Type: EventObjectChanged, ObjectClass: "Vehicle", ObjectName: "v1"})
	b.Publish(&Event{Type: EventMessage, Message: "noise"})

	require.Len(t, sub, 1)
	got := <-sub
	require.Equal(t, "v1", got.ObjectName)
}

func TestSubscribeRemoteFilterSelectsMatchingEventsOnly(t *testing.T) {
	b := NewBroker()
	rq := b.SubscribeRemote(10, func(e *Event) bool {
		return e.Type == EventKernelStateChanged
	})
	defer b.UnsubscribeRemote(rq)

	b.Publish(&Event{Type: EventObjectCreated, ObjectClass: "Point"})
	b.Publish(&Event{Type: EventKernelStateChanged, Message: "OPERATING"})
	b.Publish(&Event{Type: EventObjectRemoved, ObjectClass: "Point"})

	got, lost := rq.Drain()
	require.Equal(t, 0, lost)
	require.Len(t, got, 1)
	require.Equal(t, "OPERATING", got[0].Message)
}

func TestRemoteQueueDrainsInOrderAndTracksLoss(t *testing.T) {
	b := NewBroker()
	rq := b.SubscribeRemote(2, nil)
	defer b.UnsubscribeRemote(rq)

	b.Publish(&Event{ObjectName: "a"})
	b.Publish(&Event{ObjectName: "b"})
	b.Publish(&Event{ObjectName: "c"})

	got, lost := rq.Drain()
	require.Equal(t, 1, lost)
	require.Len(t, got, 2)
	require.Equal(t, "b", got[0].ObjectName)
	require.Equal(t, "c", got[1].ObjectName)

	again, lostAgain := rq.Drain()
	require.Empty(t, again)
	require.Equal(t, 0, lostAgain)
}

func TestOrderingIsPreservedAcrossMultipleSubscribers(t *testing.T) {
	b := NewBroker()
	sub1 := b.Subscribe(nil)
	sub2 := b.Subscribe(nil)
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	b.Publish(&Event{ObjectName: "first"})
	b.Publish(&Event{ObjectName: "second"})

	for _, sub := range []Subscriber{sub1, sub2} {
		require.Equal(t, "first", (<-sub).ObjectName)
		require.Equal(t, "second", (<-sub).ObjectName)
	}
}
