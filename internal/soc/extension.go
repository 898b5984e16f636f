package soc

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/contract"
	"github.com/nicolas-rempulski/h-ubu/internal/hub"
	"github.com/nicolas-rempulski/h-ubu/internal/registry"
)

// Name is the extension name of the service orientation layer.
const Name = "soc"

func init() {
	hub.RegisterExtension(Name, func(h *hub.Hub) any {
		return New(h)
	})
}

// Extension wires components together through the service registry of
// its hub.
type Extension struct {
	hub        *hub.Hub
	registry   *registry.Registry
	components []*ServiceComponent
}

func New(h *hub.Hub) *Extension {
	return &Extension{hub: h, registry: registry.New(h)}
}

// From returns the extension loaded on h. It panics when it is absent.
func From(h *hub.Hub) *Extension {
	e, ok := h.Extension(Name).(*Extension)
	if !ok {
		panic(fmt.Sprintf("soc: extension not loaded on hub %q", h.Name()))
	}
	return e
}

func (e *Extension) Registry() *registry.Registry {
	return e.registry
}

// RequireService declares a dependency of req.Component.
func (e *Extension) RequireService(req Requirement) (*Dependency, error) {
	if err := e.checkPlugged("require service", req.Component); err != nil {
		return nil, err
	}
	d, err := newDependency(req)
	if err != nil {
		return nil, err
	}
	d.sc = e.serviceComponent(req.Component, true)
	d.sc.AddRequiredService(d)
	return d, nil
}

// ProvideService declares a service published by p.Component while it is
// valid.
func (e *Extension) ProvideService(p Provision) (*ProvidedService, error) {
	if err := e.checkPlugged("provide service", p.Component); err != nil {
		return nil, err
	}
	if p.Contract == nil {
		return nil, hub.InvalidOperation("provide service", "contract is required", hub.Fields{"component": p.Component.Name()})
	}
	if !contract.Conforms(p.Component, p.Contract) {
		return nil, hub.InvalidOperation("provide service", "component does not conform to contract", hub.Fields{
			"component": p.Component.Name(),
			"contract":  p.Contract.Name(),
		})
	}
	ps, err := newProvidedService(p)
	if err != nil {
		return nil, err
	}
	ps.sc = e.serviceComponent(p.Component, true)
	ps.sc.AddProvidedService(ps)
	return ps, nil
}

// ServiceComponent returns the record of c, or nil when c never declared
// a dependency or provision.
func (e *Extension) ServiceComponent(c hub.Component) *ServiceComponent {
	return e.serviceComponent(c, false)
}

func (e *Extension) RegisterService(c hub.Component, ctr *contract.Contract, props registry.Properties, svc any) (*registry.Registration, error) {
	return e.registry.RegisterService(c, ctr, props, svc)
}

func (e *Extension) UnregisterService(reg *registry.Registration) error {
	return e.registry.UnregisterService(reg)
}

func (e *Extension) GetServiceReferences(ctr *contract.Contract, filter registry.Filter) []*registry.Reference {
	return e.registry.GetServiceReferences(ctr, filter)
}

func (e *Extension) GetServiceReference(ctr *contract.Contract, filter registry.Filter) *registry.Reference {
	return e.registry.GetServiceReference(ctr, filter)
}

func (e *Extension) GetService(consumer hub.Component, ref *registry.Reference) (any, error) {
	return e.registry.GetService(consumer, ref)
}

func (e *Extension) UngetService(consumer hub.Component, ref *registry.Reference) bool {
	return e.registry.UngetService(consumer, ref)
}

func (e *Extension) RegisterServiceListener(cfg registry.ListenerConfig) (*registry.ServiceListener, error) {
	return e.registry.RegisterServiceListener(cfg)
}

func (e *Extension) UnregisterServiceListener(l *registry.ServiceListener) bool {
	return e.registry.UnregisterServiceListener(l)
}

// ComponentUnregistered stops the departing component's record and withdraws
// whatever it still publishes.
func (e *Extension) ComponentUnregistered(c hub.Component) {
	if sc := e.serviceComponent(c, false); sc != nil {
		sc.onStop()
		e.components = slices.DeleteFunc(e.components, func(cur *ServiceComponent) bool { return cur == sc })
	}
	if n := e.registry.UnregisterServices(c); n > 0 {
		log.Debug().Str("hub", e.hub.Name()).Str("component", c.Name()).Int("services", n).Msg("withdrew services of departing component")
	}
}

func (e *Extension) Start() error {
	for _, sc := range slices.Clone(e.components) {
		sc.onStart()
	}
	return nil
}

func (e *Extension) Stop() error {
	for _, sc := range slices.Clone(e.components) {
		sc.onStop()
	}
	return nil
}

func (e *Extension) Reset() {
	for _, sc := range slices.Clone(e.components) {
		sc.onStop()
	}
	e.components = nil
	e.registry.Reset()
}

func (e *Extension) checkPlugged(op string, c hub.Component) error {
	if hub.IsNil(c) {
		return hub.InvalidOperation(op, "component is required", nil)
	}
	if !e.hub.IsPlugged(c) {
		return hub.InvalidOperation(op, "component is not plugged to the hub", hub.Fields{"component": c.Name()})
	}
	return nil
}

func (e *Extension) serviceComponent(c hub.Component, create bool) *ServiceComponent {
	for _, sc := range e.components {
		if sc.component == c {
			return sc
		}
	}
	if !create {
		return nil
	}
	sc := &ServiceComponent{ext: e, component: c}
	e.components = append(e.components, sc)
	if e.hub.Started() {
		sc.onStart()
	}
	return sc
}
