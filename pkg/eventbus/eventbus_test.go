package eventbus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type nodeMoved struct {
	NodeID string
}

func TestPublish_DispatchesToMatchingHandler(t *testing.T) {
	bus := NewEventPublisher(logrus.New())

	var got []string
	bus.Subscribe(func(ev nodeMoved) {
		got = append(got, ev.NodeID)
	})

	bus.Publish(nodeMoved{NodeID: "a"})
	bus.Publish(nodeMoved{NodeID: "b"})
	bus.Publish("unrelated")

	require.Equal(t, []string{"a", "b"}, got)
}

func TestPublish_RecoversFromHandlerPanic(t *testing.T) {
	bus := NewEventPublisher(logrus.New())
	bus.Subscribe(func(ev nodeMoved) { panic("boom") })

	require.NotPanics(t, func() {
		bus.Publish(nodeMoved{NodeID: "x"})
	})
}

func TestSubscribe_RejectsNonFunc(t *testing.T) {
	bus := NewEventPublisher(nil)
	require.Panics(t, func() { bus.Subscribe(42) })
}

func TestUnsubscribe_RemovesHandler(t *testing.T) {
	bus := NewEventPublisher(nil)

	calls := 0
	handler := func(ev nodeMoved) { calls++ }
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Unsubscribe(handler)
	require.Equal(t, 0, bus.SubscribersCount())

	bus.Publish(nodeMoved{NodeID: "a"})
	require.Equal(t, 0, calls)
}

func TestClear(t *testing.T) {
	bus := NewEventPublisher(nil)
	bus.Subscribe(func(ev nodeMoved) {})
	bus.Subscribe(func(s string) {})
	bus.Clear()
	require.Equal(t, 0, bus.SubscribersCount())
}
