package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicolas-rempulski/h-ubu/internal/contract"
	"github.com/nicolas-rempulski/h-ubu/internal/hub"
	"github.com/nicolas-rempulski/h-ubu/internal/testutil/testlog"
)

type pinger struct {
	hub.Base
	hits int
}

func (p *pinger) Ping() string {
	p.hits++
	return "pong"
}

var pingContract = contract.New("ping", map[string]any{"Ping": contract.Func})

func newPinger(t *testing.T, h *hub.Hub, name string) *pinger {
	t.Helper()
	p := &pinger{Base: hub.NewBase(name)}
	require.NoError(t, h.RegisterComponent(p, nil))
	return p
}

func newRegistry() (*hub.Hub, *Registry) {
	h := hub.New(hub.WithoutGlobalExtensions())
	return h, New(h)
}

type collector struct {
	events []Event
}

func (c *collector) ServiceChanged(ev Event) {
	c.events = append(c.events, ev)
}

func (c *collector) types() []EventType {
	out := make([]EventType, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestRegisterServiceStampsProperties(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")

	reg, err := r.RegisterService(p, pingContract, Properties{"zone": "a"}, nil)
	require.NoError(t, err)

	ref := reg.Reference()
	assert.Equal(t, int64(1), ref.ID())
	assert.Equal(t, "a", ref.Property("zone"))
	assert.Same(t, pingContract, ref.Property(PropContract))
	assert.Equal(t, hub.Component(p), ref.Property(PropPublisher))
	assert.Equal(t, int64(1), ref.Property(PropID))
	assert.True(t, ref.Valid())

	reg2, err := r.RegisterService(p, pingContract, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reg2.ID(), "ids increase per registry")

	other := New(hub.New(hub.WithoutGlobalExtensions()))
	q := &pinger{Base: hub.NewBase("q")}
	require.NoError(t, other.Hub().RegisterComponent(q, nil))
	reg3, err := other.RegisterService(q, pingContract, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reg3.ID(), "registries do not share a counter")
}

func TestRegisterServiceMisconfiguration(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")

	_, err := r.RegisterService(p, nil, nil, nil)
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)

	_, err = r.RegisterService(nil, pingContract, nil, nil)
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)

	stranger := &pinger{Base: hub.NewBase("stranger")}
	_, err = r.RegisterService(stranger, pingContract, nil, nil)
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)

	_, err = r.RegisterService(p, pingContract, nil, map[string]any{"nope": 1})
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)
	assert.Empty(t, r.GetServiceReferences(nil, nil))
}

func TestGetServiceAndFactory(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")
	consumer := newPinger(t, h, "consumer")

	calls := 0
	factory := Factory(func(c hub.Component) any {
		calls++
		return "for:" + c.Name()
	})
	reg, err := r.RegisterService(p, pingContract, nil, factory)
	require.NoError(t, err)

	svc, err := r.GetService(consumer, reg.Reference())
	require.NoError(t, err)
	assert.Equal(t, "for:consumer", svc)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []hub.Component{consumer}, reg.UsingComponents())

	assert.True(t, r.UngetService(consumer, reg.Reference()))
	assert.False(t, r.UngetService(consumer, reg.Reference()))
	assert.Empty(t, reg.UsingComponents())

	_, err = r.GetService(consumer, nil)
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)

	require.NoError(t, r.UnregisterService(reg))
	svc, err = r.GetService(consumer, reg.Reference())
	require.NoError(t, err)
	assert.Nil(t, svc, "stale references resolve to nil")
	assert.False(t, reg.Reference().Valid())
}

type sliceComponent []string

func (sliceComponent) Name() string { return "slice" }
func (sliceComponent) Configure(*hub.Hub, hub.Config) error { return nil }
func (sliceComponent) Start() error { return nil }
func (sliceComponent) Stop() error { return nil }

func TestUsageIgnoresUntrackableConsumers(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")
	reg, err := r.RegisterService(p, pingContract, nil, nil)
	require.NoError(t, err)

	var missing *pinger
	for _, consumer := range []hub.Component{sliceComponent{"x"}, missing} {
		require.NotPanics(t, func() {
			svc, err := r.GetService(consumer, reg.Reference())
			require.NoError(t, err)
			assert.Same(t, p, svc)
			assert.False(t, r.UngetService(consumer, reg.Reference()))
		})
	}
	assert.Empty(t, reg.UsingComponents())

	_, err = r.RegisterService(missing, pingContract, nil, nil)
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)
}

func TestUnregisterServiceUnknown(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")
	reg, err := r.RegisterService(p, pingContract, nil, nil)
	require.NoError(t, err)

	require.NoError(t, r.UnregisterService(reg))
	assert.ErrorIs(t, r.UnregisterService(reg), hub.ErrInvalidOperation)
	assert.ErrorIs(t, r.UnregisterService(nil), hub.ErrInvalidOperation)
}

func TestGetServiceReferencesFiltering(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")
	otherContract := contract.New("other", map[string]any{"Ping": contract.Func})

	a, _ := r.RegisterService(p, pingContract, Properties{"rank": 1}, nil)
	b, _ := r.RegisterService(p, pingContract, Properties{"rank": 2}, nil)
	c, _ := r.RegisterService(p, otherContract, nil, nil)

	assert.Equal(t, []*Reference{a.Reference(), b.Reference(), c.Reference()}, r.GetServiceReferences(nil, nil))
	assert.Equal(t, []*Reference{a.Reference(), b.Reference()}, r.GetServiceReferences(pingContract, nil))

	rank2 := func(ref *Reference) bool { return ref.Property("rank") == 2 }
	assert.Equal(t, []*Reference{b.Reference()}, r.GetServiceReferences(pingContract, rank2))
	assert.Same(t, a.Reference(), r.GetServiceReference(pingContract, nil))
	assert.Nil(t, r.GetServiceReference(otherContract, rank2))
}

func TestListenerReceivesLifecycleEvents(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")

	all := &collector{}
	_, err := r.RegisterServiceListener(ListenerConfig{Listener: all})
	require.NoError(t, err)

	reg, err := r.RegisterService(p, pingContract, Properties{"x": 1}, nil)
	require.NoError(t, err)
	require.NoError(t, reg.SetProperties(Properties{"x": 2}))
	require.NoError(t, r.UnregisterService(reg))

	assert.Equal(t, []EventType{Registered, Modified, Unregistering}, all.types())
	modified := all.events[1]
	assert.Equal(t, 1, modified.Prior.Property("x"))
	assert.Equal(t, 2, modified.Reference.Property("x"))
	assert.Equal(t, int64(1), modified.Reference.Property(PropID), "reserved keys survive property changes")
}

func TestModifiedEndMatch(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")

	blue := &collector{}
	_, err := r.RegisterServiceListener(ListenerConfig{
		Contract: pingContract,
		Filter:   func(ref *Reference) bool { return ref.Property("color") == "blue" },
		Listener: blue,
	})
	require.NoError(t, err)

	reg, err := r.RegisterService(p, pingContract, Properties{"color": "blue"}, nil)
	require.NoError(t, err)
	require.NoError(t, reg.SetProperties(Properties{"color": "red"}))
	require.NoError(t, reg.SetProperties(Properties{"color": "green"}))
	require.NoError(t, reg.SetProperties(Properties{"color": "blue"}))

	assert.Equal(t, []EventType{Registered, ModifiedEndMatch, Modified}, blue.types())
	assert.Same(t, reg.Reference(), blue.events[1].Reference)
}

func TestListenerValidationAndRemoval(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")

	_, err := r.RegisterServiceListener(ListenerConfig{})
	assert.ErrorIs(t, err, hub.ErrInvalidOperation)

	seen := 0
	l, err := r.RegisterServiceListener(ListenerConfig{Listener: ListenerFunc(func(Event) { seen++ })})
	require.NoError(t, err)
	assert.True(t, r.UnregisterServiceListener(l))
	assert.False(t, r.UnregisterServiceListener(l))

	_, err = r.RegisterService(p, pingContract, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, seen)
}

func TestListenerRemovedDuringDispatchIsSkipped(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")

	var second *ServiceListener
	secondCalls, lateCalls := 0, 0
	_, err := r.RegisterServiceListener(ListenerConfig{Listener: ListenerFunc(func(Event) {
		r.UnregisterServiceListener(second)
		_, _ = r.RegisterServiceListener(ListenerConfig{Listener: ListenerFunc(func(Event) { lateCalls++ })})
	})})
	require.NoError(t, err)
	second, err = r.RegisterServiceListener(ListenerConfig{Listener: ListenerFunc(func(Event) { secondCalls++ })})
	require.NoError(t, err)

	_, err = r.RegisterService(p, pingContract, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, secondCalls, "removed listeners must not receive the in-flight event")
	assert.Zero(t, lateCalls, "listeners added during dispatch wait for the next event")
}

func TestDispatchSnapshotsListenersAndServices(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")

	seen := map[string][]int64{}
	record := func(name string) Listener {
		return ListenerFunc(func(ev Event) {
			seen[name] = append(seen[name], ev.Reference.ID())
		})
	}
	nested := false
	_, err := r.RegisterServiceListener(ListenerConfig{Listener: ListenerFunc(func(ev Event) {
		seen["first"] = append(seen["first"], ev.Reference.ID())
		if nested {
			return
		}
		nested = true
		_, err := r.RegisterServiceListener(ListenerConfig{Listener: record("late")})
		require.NoError(t, err)
		_, err = r.RegisterService(p, pingContract, nil, nil)
		require.NoError(t, err)
	})})
	require.NoError(t, err)
	_, err = r.RegisterServiceListener(ListenerConfig{Listener: record("second")})
	require.NoError(t, err)

	_, err = r.RegisterService(p, pingContract, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, seen["first"])
	assert.Equal(t, []int64{2, 1}, seen["second"], "the nested event completes before the outer one resumes")
	assert.Equal(t, []int64{2}, seen["late"], "a listener added mid-dispatch only sees later events")
	assert.Len(t, r.GetServiceReferences(pingContract, nil), 2)
}

func TestUnregisterServicesByComponent(t *testing.T) {
	testlog.Start(t)
	h, r := newRegistry()
	p := newPinger(t, h, "p")
	q := newPinger(t, h, "q")

	_, _ = r.RegisterService(p, pingContract, nil, nil)
	_, _ = r.RegisterService(p, pingContract, nil, nil)
	keep, _ := r.RegisterService(q, pingContract, nil, nil)

	assert.Equal(t, 2, r.UnregisterServices(p))
	assert.Equal(t, []*Reference{keep.Reference()}, r.GetServiceReferences(nil, nil))
}
