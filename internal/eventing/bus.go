package eventing

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/contract"
	"github.com/nicolas-rempulski/h-ubu/internal/hub"
)

// Name is the extension name of the event bus.
const Name = "eventing"

func init() {
	hub.RegisterExtension(Name, func(h *hub.Hub) any {
		return New(h)
	})
}

// Event is delivered to listeners as a private copy.
type Event struct {
	Topic   string
	Source  hub.Component
	Payload map[string]any
}

// Get returns a payload value.
func (e *Event) Get(key string) any {
	return e.Payload[key]
}

func (e *Event) clone(source hub.Component) *Event {
	payload, _ := contract.Clone(e.Payload).(map[string]any)
	return &Event{Topic: e.Topic, Source: source, Payload: payload}
}

type (
	MatchFunc    func(ev *Event) bool
	CallbackFunc func(ev *Event)
)

// Listener is the handle returned on registration.
type Listener struct {
	component hub.Component
	match     MatchFunc
	callback  CallbackFunc
	active    bool
}

func (l *Listener) Component() hub.Component {
	return l.component
}

// Bus dispatches events between the components of one hub.
type Bus struct {
	hub       *hub.Hub
	listeners []*Listener
}

func New(h *hub.Hub) *Bus {
	return &Bus{hub: h}
}

// From returns the bus loaded on h. It panics when the extension is absent.
func From(h *hub.Hub) *Bus {
	b, ok := h.Extension(Name).(*Bus)
	if !ok {
		panic(fmt.Sprintf("eventing: extension not loaded on hub %q", h.Name()))
	}
	return b
}

// RegisterListener attaches match and callback to c.
func (b *Bus) RegisterListener(c hub.Component, match MatchFunc, callback CallbackFunc) (*Listener, error) {
	if !b.hub.IsPlugged(c) {
		return nil, hub.InvalidOperation("register listener", "component is not plugged to the hub", hub.Fields{"component": nameOf(c)})
	}
	if match == nil {
		return nil, hub.InvalidOperation("register listener", "match is required", hub.Fields{"component": c.Name()})
	}
	if callback == nil {
		return nil, hub.InvalidOperation("register listener", "callback is required", hub.Fields{"component": c.Name()})
	}
	l := &Listener{component: c, match: match, callback: callback, active: true}
	b.listeners = append(b.listeners, l)
	return l, nil
}

// UnregisterListener removes l, or every listener of c when l is nil.
func (b *Bus) UnregisterListener(c hub.Component, l *Listener) bool {
	removed := false
	b.listeners = slices.DeleteFunc(b.listeners, func(cur *Listener) bool {
		if cur.component != c || (l != nil && cur != l) {
			return false
		}
		cur.active = false
		removed = true
		return true
	})
	if !removed {
		log.Warn().Str("hub", b.hub.Name()).Str("component", nameOf(c)).Msg("no listener to unregister")
	}
	return removed
}

// SendEvent delivers a copy of ev to every listener not owned by source
// whose match accepts it. It reports whether any listener matched.
func (b *Bus) SendEvent(source hub.Component, ev *Event) bool {
	if hub.IsNil(source) {
		log.Warn().Str("hub", b.hub.Name()).Msg("cannot send an event without source")
		return false
	}
	if ev == nil {
		log.Warn().Str("hub", b.hub.Name()).Str("component", source.Name()).Msg("cannot send a nil event")
		return false
	}
	sent := false
	for _, l := range slices.Clone(b.listeners) {
		if !l.active || l.component == source {
			continue
		}
		copied := ev.clone(source)
		if !l.match(copied) {
			continue
		}
		sent = true
		l.callback(copied)
	}
	return sent
}

// Subscribe listens for events whose topic matches pattern and, when set,
// filter.
func (b *Bus) Subscribe(c hub.Component, pattern string, callback CallbackFunc, filter MatchFunc) (*Listener, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, hub.InvalidOperation("subscribe", "invalid topic pattern", hub.Fields{
			"component": nameOf(c),
			"pattern":   pattern,
			"error":     err.Error(),
		})
	}
	match := func(ev *Event) bool {
		if !re.MatchString(ev.Topic) {
			return false
		}
		return filter == nil || filter(ev)
	}
	return b.RegisterListener(c, match, callback)
}

func (b *Bus) Unsubscribe(c hub.Component, l *Listener) bool {
	return b.UnregisterListener(c, l)
}

// Publish stamps topic on a copy of ev and sends it from c.
func (b *Bus) Publish(c hub.Component, topic string, ev *Event) bool {
	if ev == nil {
		log.Warn().Str("hub", b.hub.Name()).Str("topic", topic).Msg("cannot publish a nil event")
		return false
	}
	stamped := *ev
	stamped.Topic = topic
	return b.SendEvent(c, &stamped)
}

func (b *Bus) ComponentUnregistered(c hub.Component) {
	b.listeners = slices.DeleteFunc(b.listeners, func(l *Listener) bool {
		if l.component != c {
			return false
		}
		l.active = false
		return true
	})
}

func (b *Bus) Reset() {
	for _, l := range b.listeners {
		l.active = false
	}
	b.listeners = nil
}

func nameOf(c hub.Component) string {
	if hub.IsNil(c) {
		return ""
	}
	return c.Name()
}
