package soc

import (
	"reflect"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/contract"
	"github.com/nicolas-rempulski/h-ubu/internal/hub"
	"github.com/nicolas-rempulski/h-ubu/internal/registry"
)

type DependencyState int

const (
	Unresolved DependencyState = iota
	Resolved
)

func (s DependencyState) String() string {
	if s == Resolved {
		return "RESOLVED"
	}
	return "UNRESOLVED"
}

// Requirement declares that Component needs services of Contract. Field,
// Bind or both must be set.
type Requirement struct {
	Component hub.Component
	Contract  *contract.Contract
	Filter    registry.Filter
	Aggregate bool
	Optional  bool
	Field     string
	Bind      Hook[BindFunc]
	Unbind    Hook[BindFunc]
}

type match struct {
	ref      *registry.Reference
	svc      any
	injected bool
}

// Dependency tracks the references matching one requirement. Matches are
// kept in arrival order; a scalar dependency stays bound to its earliest
// match until that match departs.
type Dependency struct {
	sc        *ServiceComponent
	contract  *contract.Contract
	filter    registry.Filter
	aggregate bool
	optional  bool
	fieldName string
	field     reflect.Value
	bind      BindFunc
	unbind    BindFunc

	state    DependencyState
	matches  []*match
	listener *registry.ServiceListener
	tracking bool
}

func newDependency(req Requirement) (*Dependency, error) {
	c := req.Component
	if req.Field == "" && req.Bind.IsZero() {
		return nil, hub.InvalidOperation("require service", "field or bind is required", hub.Fields{"component": c.Name()})
	}
	d := &Dependency{
		contract:  req.Contract,
		filter:    req.Filter,
		aggregate: req.Aggregate,
		optional:  req.Optional,
		fieldName: req.Field,
	}
	if req.Field != "" {
		fv, err := fieldOf(c, req.Field, req.Aggregate)
		if err != nil {
			return nil, err
		}
		d.field = fv
	}
	var err error
	if d.bind, _, err = req.Bind.resolve("require service", "bind", c); err != nil {
		return nil, err
	}
	if d.unbind, _, err = req.Unbind.resolve("require service", "unbind", c); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dependency) State() DependencyState {
	return d.state
}

func (d *Dependency) IsResolved() bool {
	return d.state == Resolved
}

func (d *Dependency) Contract() *contract.Contract {
	return d.contract
}

func (d *Dependency) IsAggregate() bool {
	return d.aggregate
}

func (d *Dependency) IsOptional() bool {
	return d.optional
}

func (d *Dependency) Field() string {
	return d.fieldName
}

// References lists the tracked references in arrival order.
func (d *Dependency) References() []*registry.Reference {
	out := make([]*registry.Reference, 0, len(d.matches))
	for _, m := range d.matches {
		out = append(out, m.ref)
	}
	return out
}

// Services lists the injected service objects in arrival order.
func (d *Dependency) Services() []any {
	var out []any
	for _, m := range d.matches {
		if m.injected {
			out = append(out, m.svc)
		}
	}
	return out
}

func (d *Dependency) start() {
	if d.tracking {
		return
	}
	reg := d.sc.ext.registry
	l, err := reg.RegisterServiceListener(registry.ListenerConfig{
		Contract: d.contract,
		Filter:   d.filter,
		Listener: registry.ListenerFunc(d.serviceChanged),
	})
	if err != nil {
		log.Error().Err(err).Str("component", d.sc.name()).Msg("dependency listener rejected")
		return
	}
	d.listener = l
	d.tracking = true
	for _, ref := range reg.GetServiceReferences(d.contract, d.filter) {
		if !d.tracking {
			return
		}
		d.arrival(ref)
	}
	d.computeState()
}

func (d *Dependency) stop() {
	if !d.tracking {
		return
	}
	d.tracking = false
	d.sc.ext.registry.UnregisterServiceListener(d.listener)
	d.listener = nil
	for _, m := range slices.Clone(d.matches) {
		if m.injected {
			d.eject(m)
		}
	}
	d.matches = nil
	d.state = Unresolved
}

func (d *Dependency) serviceChanged(ev registry.Event) {
	if !d.tracking {
		return
	}
	switch ev.Type {
	case registry.Registered:
		d.arrival(ev.Reference)
	case registry.Modified:
		if d.indexOf(ev.Reference) < 0 {
			d.arrival(ev.Reference)
		}
	case registry.Unregistering, registry.ModifiedEndMatch:
		d.departure(ev.Reference)
	}
}

func (d *Dependency) arrival(ref *registry.Reference) {
	if !ref.Valid() || d.indexOf(ref) >= 0 {
		return
	}
	m := &match{ref: ref}
	d.matches = append(d.matches, m)
	if (d.aggregate || len(d.matches) == 1) && !d.inject(m) {
		d.drop(m)
		if !d.aggregate {
			d.rebind()
		}
	}
	d.computeState()
}

func (d *Dependency) departure(ref *registry.Reference) {
	i := d.indexOf(ref)
	if i < 0 {
		return
	}
	m := d.matches[i]
	d.matches = slices.Delete(d.matches, i, i+1)
	if m.injected {
		d.eject(m)
		if !d.aggregate {
			d.rebind()
		}
	}
	d.computeState()
}

// rebind injects the earliest remaining match into a scalar dependency,
// dropping matches whose service cannot be injected.
func (d *Dependency) rebind() {
	for len(d.matches) > 0 {
		if d.matches[0].injected || d.inject(d.matches[0]) {
			return
		}
		d.drop(d.matches[0])
	}
}

// drop forgets a match that could not be injected. It comes back with its
// next Modified event.
func (d *Dependency) drop(m *match) {
	if i := slices.Index(d.matches, m); i >= 0 {
		d.matches = slices.Delete(d.matches, i, i+1)
	}
	log.Warn().
		Str("component", d.sc.name()).
		Int64("service_id", m.ref.ID()).
		Msg("service cannot be injected, match ignored")
}

func (d *Dependency) inject(m *match) bool {
	reg := d.sc.ext.registry
	svc, err := reg.GetService(d.sc.component, m.ref)
	if err != nil || svc == nil {
		return false
	}
	if d.field.IsValid() && !injectField(d.field, d.aggregate, svc) {
		reg.UngetService(d.sc.component, m.ref)
		return false
	}
	m.svc = svc
	m.injected = true
	if d.bind != nil {
		d.bind(svc, m.ref)
	}
	log.Debug().
		Str("component", d.sc.name()).
		Int64("service_id", m.ref.ID()).
		Msg("service injected")
	return true
}

func (d *Dependency) eject(m *match) {
	svc := m.svc
	m.injected = false
	m.svc = nil
	if d.field.IsValid() {
		ejectField(d.field, d.aggregate, svc)
	}
	if d.unbind != nil {
		d.unbind(svc, m.ref)
	}
	d.sc.ext.registry.UngetService(d.sc.component, m.ref)
	log.Debug().
		Str("component", d.sc.name()).
		Int64("service_id", m.ref.ID()).
		Msg("service released")
}

func (d *Dependency) computeState() {
	prev := d.state
	if d.optional || len(d.matches) > 0 {
		d.state = Resolved
	} else {
		d.state = Unresolved
	}
	if prev != d.state {
		d.sc.computeState()
	}
}

func (d *Dependency) indexOf(ref *registry.Reference) int {
	return slices.IndexFunc(d.matches, func(m *match) bool { return m.ref == ref })
}
