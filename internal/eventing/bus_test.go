package eventing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicolas-rempulski/h-ubu/internal/hub"
	"github.com/nicolas-rempulski/h-ubu/internal/testutil/testlog"
)

func newBus(t *testing.T, names ...string) (*hub.Hub, *Bus, []hub.Component) {
	t.Helper()
	h := hub.New(hub.WithoutGlobalExtensions(), hub.WithExtension(Name, func(h *hub.Hub) any { return New(h) }))
	comps := make([]hub.Component, 0, len(names))
	for _, name := range names {
		c := &hub.ComponentFunc{ID: name}
		require.NoError(t, h.RegisterComponent(c, nil))
		comps = append(comps, c)
	}
	return h, From(h), comps
}

func all(*Event) bool { return true }

func TestSendEventSkipsSourceAndStampsIt(t *testing.T) {
	testlog.Start(t)
	_, bus, comps := newBus(t, "a", "b")
	a, b := comps[0], comps[1]

	var fromA []*Event
	_, err := bus.RegisterListener(a, all, func(ev *Event) { fromA = append(fromA, ev) })
	require.NoError(t, err)
	var atB []*Event
	_, err = bus.RegisterListener(b, all, func(ev *Event) { atB = append(atB, ev) })
	require.NoError(t, err)

	ev := &Event{Payload: map[string]any{"n": 1}}
	assert.True(t, bus.SendEvent(a, ev))
	require.Len(t, atB, 1)
	assert.Empty(t, fromA, "a component never receives its own events")
	assert.Equal(t, a, atB[0].Source)
	assert.Nil(t, ev.Source, "the original event is not stamped")

	atB[0].Payload["n"] = 42
	assert.Equal(t, 1, ev.Payload["n"], "listeners receive a copy")
}

func TestSendEventReportsMatches(t *testing.T) {
	testlog.Start(t)
	_, bus, comps := newBus(t, "a", "b")
	_, err := bus.RegisterListener(comps[1], func(ev *Event) bool { return ev.Get("kind") == "wanted" }, func(*Event) {})
	require.NoError(t, err)

	assert.False(t, bus.SendEvent(comps[0], &Event{Payload: map[string]any{"kind": "other"}}))
	assert.True(t, bus.SendEvent(comps[0], &Event{Payload: map[string]any{"kind": "wanted"}}))
	assert.False(t, bus.SendEvent(nil, &Event{}))
	assert.False(t, bus.SendEvent(comps[0], nil))
}

func TestRegisterListenerValidation(t *testing.T) {
	testlog.Start(t)
	_, bus, comps := newBus(t, "a")

	_, err := bus.RegisterListener(&hub.ComponentFunc{ID: "stranger"}, all, func(*Event) {})
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)
	_, err = bus.RegisterListener(comps[0], nil, func(*Event) {})
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)
	_, err = bus.RegisterListener(comps[0], all, nil)
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)
}

func TestTypedNilComponentsAreRejected(t *testing.T) {
	testlog.Start(t)
	_, bus, _ := newBus(t, "a")
	var missing *hub.ComponentFunc

	assert.NotPanics(t, func() {
		_, err := bus.RegisterListener(missing, all, func(*Event) {})
		assert.ErrorIs(t, err, hub.ErrInvalidOperation)
		_, err = bus.Subscribe(missing, "^t$", func(*Event) {}, nil)
		assert.ErrorIs(t, err, hub.ErrInvalidOperation)
		assert.False(t, bus.UnregisterListener(missing, nil))
		assert.False(t, bus.SendEvent(missing, &Event{Topic: "t"}))
	})
}

func TestUnregisterListener(t *testing.T) {
	testlog.Start(t)
	_, bus, comps := newBus(t, "a", "b")
	a, b := comps[0], comps[1]

	hits := 0
	first, err := bus.RegisterListener(b, all, func(*Event) { hits++ })
	require.NoError(t, err)
	_, err = bus.RegisterListener(b, all, func(*Event) { hits += 10 })
	require.NoError(t, err)

	assert.True(t, bus.UnregisterListener(b, first))
	bus.SendEvent(a, &Event{})
	assert.Equal(t, 10, hits)

	assert.True(t, bus.UnregisterListener(b, nil))
	assert.False(t, bus.SendEvent(a, &Event{}))
	assert.False(t, bus.UnregisterListener(b, nil), "nothing left to remove")
}

func TestSubscribeAndPublish(t *testing.T) {
	testlog.Start(t)
	_, bus, comps := newBus(t, "pub", "sub")
	pub, sub := comps[0], comps[1]

	var topics []string
	_, err := bus.Subscribe(sub, "^/orders/", func(ev *Event) { topics = append(topics, ev.Topic) }, nil)
	require.NoError(t, err)
	_, err = bus.Subscribe(sub, "^/orders/", func(ev *Event) { topics = append(topics, "big:"+ev.Topic) },
		func(ev *Event) bool { return ev.Get("amount") == 100 })
	require.NoError(t, err)

	assert.True(t, bus.Publish(pub, "/orders/new", &Event{Payload: map[string]any{"amount": 5}}))
	assert.True(t, bus.Publish(pub, "/orders/new", &Event{Payload: map[string]any{"amount": 100}}))
	assert.False(t, bus.Publish(pub, "/users/new", &Event{}))
	assert.False(t, bus.Publish(pub, "/orders/new", nil))

	assert.Equal(t, []string{"/orders/new", "/orders/new", "big:/orders/new"}, topics)

	_, err = bus.Subscribe(sub, "([", func(*Event) {}, nil)
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)
}

func TestUnsubscribe(t *testing.T) {
	testlog.Start(t)
	_, bus, comps := newBus(t, "pub", "sub")
	l, err := bus.Subscribe(comps[1], "x", func(*Event) {}, nil)
	require.NoError(t, err)
	assert.True(t, bus.Unsubscribe(comps[1], l))
	assert.False(t, bus.Publish(comps[0], "x", &Event{}))
}

func TestListenerRemovedDuringDispatch(t *testing.T) {
	testlog.Start(t)
	_, bus, comps := newBus(t, "src", "a", "b")

	var second *Listener
	secondHits := 0
	_, err := bus.RegisterListener(comps[1], all, func(*Event) { bus.UnregisterListener(comps[2], second) })
	require.NoError(t, err)
	second, err = bus.RegisterListener(comps[2], all, func(*Event) { secondHits++ })
	require.NoError(t, err)

	bus.SendEvent(comps[0], &Event{})
	assert.Zero(t, secondHits)
}

func TestComponentDepartureDropsListeners(t *testing.T) {
	testlog.Start(t)
	h, bus, comps := newBus(t, "src", "gone")
	_, err := bus.RegisterListener(comps[1], all, func(*Event) {})
	require.NoError(t, err)

	require.NoError(t, h.UnregisterComponent(comps[1]))
	assert.False(t, bus.SendEvent(comps[0], &Event{}))
}

func TestFromPanicsWithoutExtension(t *testing.T) {
	testlog.Start(t)
	h := hub.New(hub.WithoutGlobalExtensions())
	assert.Panics(t, func() { From(h) })
}

func TestGlobalExtensionIsRegistered(t *testing.T) {
	testlog.Start(t)
	h := hub.New()
	assert.NotNil(t, From(h))
}
