package registry

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/contract"
	"github.com/nicolas-rempulski/h-ubu/internal/hub"
)

// listenerContract is the shape object-form listeners must expose.
var listenerContract = contract.Of[Listener]()

// Registration is the publisher-side handle of one published service.
type Registration struct {
	registry  *Registry
	id        int64
	component hub.Component
	contract  *contract.Contract
	props     Properties
	service   any
	factory   Factory
	ref       *Reference
	users     map[hub.Component]int

	registered bool
}

func (r *Registration) ID() int64 {
	return r.id
}

func (r *Registration) Reference() *Reference {
	return r.ref
}

func (r *Registration) Component() hub.Component {
	return r.component
}

func (r *Registration) Contract() *contract.Contract {
	return r.contract
}

func (r *Registration) Properties() Properties {
	return maps.Clone(r.props)
}

func (r *Registration) IsRegistered() bool {
	return r.registered
}

// UsingComponents lists the consumers currently holding the service.
func (r *Registration) UsingComponents() []hub.Component {
	out := make([]hub.Component, 0, len(r.users))
	for c := range r.users {
		out = append(out, c)
	}
	return out
}

// SetProperties replaces the custom properties and fires Modified when the
// registration is active.
func (r *Registration) SetProperties(props Properties) error {
	return r.registry.SetProperties(r, props)
}

func (r *Registration) stampProperties(props Properties) {
	next := make(Properties, len(props)+3)
	for k, v := range props {
		next[k] = v
	}
	next[PropContract] = r.contract
	next[PropPublisher] = r.component
	next[PropID] = r.id
	r.props = next
}

// ServiceListener is a registered listener and its match criteria.
type ServiceListener struct {
	contract *contract.Contract
	filter   Filter
	listener Listener
	active   bool
}

// Matches reports whether ref satisfies the listener's contract and filter.
func (l *ServiceListener) Matches(ref *Reference) bool {
	return matches(ref, l.contract, l.filter)
}

type ListenerConfig struct {
	Contract *contract.Contract
	Filter   Filter
	Listener Listener
}

// Registry holds the service registrations of one hub.
type Registry struct {
	hub           *hub.Hub
	nextID        int64
	registrations []*Registration
	listeners     []*ServiceListener
}

func New(h *hub.Hub) *Registry {
	return &Registry{hub: h}
}

func (r *Registry) Hub() *hub.Hub {
	return r.hub
}

// RegisterService publishes svc under ctr on behalf of c. A nil svc
// publishes c itself; a Factory is invoked per consumer.
func (r *Registry) RegisterService(c hub.Component, ctr *contract.Contract, props Properties, svc any) (*Registration, error) {
	if ctr == nil {
		return nil, hub.InvalidOperation("register service", "contract is required", nil)
	}
	if hub.IsNil(c) {
		return nil, hub.InvalidOperation("register service", "component is required", hub.Fields{"contract": ctr.Name()})
	}
	if !r.hub.IsPlugged(c) {
		return nil, hub.InvalidOperation("register service", "component is not plugged to the hub", hub.Fields{
			"component": c.Name(),
			"contract":  ctr.Name(),
		})
	}

	reg := &Registration{
		registry:  r,
		component: c,
		contract:  ctr,
		users:     make(map[hub.Component]int),
	}
	switch f := svc.(type) {
	case Factory:
		reg.factory = f
	case func(hub.Component) any:
		reg.factory = f
	case nil:
		reg.service = c
	default:
		reg.service = svc
	}
	if reg.factory == nil && !contract.Conforms(reg.service, ctr) {
		return nil, hub.InvalidOperation("register service", "service does not conform to contract", hub.Fields{
			"component": c.Name(),
			"contract":  ctr.Name(),
			"service":   fmt.Sprintf("%T", reg.service),
		})
	}

	r.nextID++
	reg.id = r.nextID
	reg.stampProperties(props)
	reg.ref = &Reference{reg: reg}
	reg.registered = true
	r.registrations = append(r.registrations, reg)

	log.Debug().
		Str("hub", r.hub.Name()).
		Str("component", c.Name()).
		Str("contract", ctr.Name()).
		Int64("service_id", reg.id).
		Msg("service registered")
	r.FireServiceEvent(Event{Type: Registered, Reference: reg.ref}, nil)
	return reg, nil
}

// UnregisterService withdraws reg and fires Unregistering.
func (r *Registry) UnregisterService(reg *Registration) error {
	if reg == nil {
		return hub.InvalidOperation("unregister service", "registration is required", nil)
	}
	i := slices.Index(r.registrations, reg)
	if i < 0 {
		return hub.InvalidOperation("unregister service", "unknown registration", hub.Fields{
			"service_id": reg.id,
			"contract":   reg.contract.Name(),
		})
	}
	r.registrations = slices.Delete(r.registrations, i, i+1)

	log.Debug().
		Str("hub", r.hub.Name()).
		Str("contract", reg.contract.Name()).
		Int64("service_id", reg.id).
		Msg("service unregistering")
	r.FireServiceEvent(Event{Type: Unregistering, Reference: reg.ref}, nil)
	reg.registered = false
	clear(reg.users)
	return nil
}

// UnregisterServices withdraws every registration published by c.
func (r *Registry) UnregisterServices(c hub.Component) int {
	n := 0
	for _, reg := range slices.Clone(r.registrations) {
		if reg.component != c || !slices.Contains(r.registrations, reg) {
			continue
		}
		if err := r.UnregisterService(reg); err == nil {
			n++
		}
	}
	return n
}

// SetProperties replaces reg's custom properties. The reserved keys are kept.
func (r *Registry) SetProperties(reg *Registration, props Properties) error {
	if reg == nil {
		return hub.InvalidOperation("set properties", "registration is required", nil)
	}
	prior := &Reference{reg: reg, snapshot: maps.Clone(reg.props)}
	reg.stampProperties(props)
	if reg.registered {
		r.FireServiceEvent(Event{Type: Modified, Reference: reg.ref, Prior: prior}, prior)
	}
	return nil
}

// GetServiceReferences returns the live references matching ctr and filter
// in registration order. Both are optional.
func (r *Registry) GetServiceReferences(ctr *contract.Contract, filter Filter) []*Reference {
	var out []*Reference
	for _, reg := range slices.Clone(r.registrations) {
		if matches(reg.ref, ctr, filter) {
			out = append(out, reg.ref)
		}
	}
	return out
}

// GetServiceReference returns the first matching reference, or nil.
func (r *Registry) GetServiceReference(ctr *contract.Contract, filter Filter) *Reference {
	for _, reg := range r.registrations {
		if matches(reg.ref, ctr, filter) {
			return reg.ref
		}
	}
	return nil
}

// GetService resolves ref for consumer. A stale reference yields nil.
func (r *Registry) GetService(consumer hub.Component, ref *Reference) (any, error) {
	if ref == nil {
		return nil, hub.InvalidOperation("get service", "reference is required", nil)
	}
	reg := ref.reg
	if !reg.registered {
		log.Warn().
			Str("hub", r.hub.Name()).
			Int64("service_id", reg.id).
			Msg("cannot get service from a stale reference")
		return nil, nil
	}
	if trackable(consumer) {
		reg.users[consumer]++
	}
	if reg.factory != nil {
		return reg.factory(consumer), nil
	}
	return reg.service, nil
}

// UngetService releases one use of ref by consumer.
func (r *Registry) UngetService(consumer hub.Component, ref *Reference) bool {
	if ref == nil || !trackable(consumer) {
		return false
	}
	reg := ref.reg
	n := reg.users[consumer]
	if n == 0 {
		return false
	}
	if n == 1 {
		delete(reg.users, consumer)
	} else {
		reg.users[consumer] = n - 1
	}
	return true
}

// RegisterServiceListener adds a listener notified of events on matching
// references.
func (r *Registry) RegisterServiceListener(cfg ListenerConfig) (*ServiceListener, error) {
	if cfg.Listener == nil {
		return nil, hub.InvalidOperation("register service listener", "listener is required", nil)
	}
	if !contract.Conforms(cfg.Listener, listenerContract) {
		return nil, hub.InvalidOperation("register service listener", "listener does not conform", hub.Fields{
			"listener": fmt.Sprintf("%T", cfg.Listener),
		})
	}
	l := &ServiceListener{
		contract: cfg.Contract,
		filter:   cfg.Filter,
		listener: cfg.Listener,
		active:   true,
	}
	r.listeners = append(r.listeners, l)
	return l, nil
}

// UnregisterServiceListener removes l. Unknown listeners are logged.
func (r *Registry) UnregisterServiceListener(l *ServiceListener) bool {
	i := slices.Index(r.listeners, l)
	if l == nil || i < 0 {
		log.Info().Str("hub", r.hub.Name()).Msg("service listener not registered")
		return false
	}
	l.active = false
	r.listeners = slices.Delete(r.listeners, i, i+1)
	return true
}

// FireServiceEvent delivers ev to every matching listener. A Modified event
// that no longer matches a listener is delivered as ModifiedEndMatch when
// prior did match.
func (r *Registry) FireServiceEvent(ev Event, prior *Reference) {
	for _, l := range slices.Clone(r.listeners) {
		if !l.active {
			continue
		}
		if l.Matches(ev.Reference) {
			l.listener.ServiceChanged(ev)
			continue
		}
		if ev.Type == Modified && prior != nil && l.Matches(prior) {
			l.listener.ServiceChanged(Event{Type: ModifiedEndMatch, Reference: ev.Reference, Prior: prior})
		}
	}
}

// Reset drops all registrations and listeners without firing events.
func (r *Registry) Reset() {
	for _, reg := range r.registrations {
		reg.registered = false
	}
	for _, l := range r.listeners {
		l.active = false
	}
	r.registrations = nil
	r.listeners = nil
}

// trackable reports whether consumer can key the usage map.
func trackable(consumer hub.Component) bool {
	return !hub.IsNil(consumer) && reflect.TypeOf(consumer).Comparable()
}

func matches(ref *Reference, ctr *contract.Contract, filter Filter) bool {
	if ref == nil {
		return false
	}
	if ctr != nil && ref.Contract() != ctr {
		return false
	}
	return filter == nil || filter(ref)
}
