package soc

import (
	"maps"

	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/contract"
	"github.com/nicolas-rempulski/h-ubu/internal/hub"
	"github.com/nicolas-rempulski/h-ubu/internal/registry"
)

// Provision declares that Component publishes Contract while it is valid.
type Provision struct {
	Component          hub.Component
	Contract           *contract.Contract
	Properties         registry.Properties
	PreRegistration    Hook[NotifyFunc]
	PostRegistration   Hook[RegistrationFunc]
	PreUnregistration  Hook[RegistrationFunc]
	PostUnregistration Hook[NotifyFunc]
}

// ProvidedService owns at most one registration of its provision.
type ProvidedService struct {
	sc       *ServiceComponent
	contract *contract.Contract
	props    registry.Properties

	preRegistration    NotifyFunc
	postRegistration   RegistrationFunc
	preUnregistration  RegistrationFunc
	postUnregistration NotifyFunc

	registration *registry.Registration
}

func newProvidedService(p Provision) (*ProvidedService, error) {
	const op = "provide service"
	ps := &ProvidedService{
		contract: p.Contract,
		props:    maps.Clone(p.Properties),
	}
	var err error
	if ps.preRegistration, _, err = p.PreRegistration.resolve(op, "preRegistration", p.Component); err != nil {
		return nil, err
	}
	if ps.postRegistration, _, err = p.PostRegistration.resolve(op, "postRegistration", p.Component); err != nil {
		return nil, err
	}
	if ps.preUnregistration, _, err = p.PreUnregistration.resolve(op, "preUnregistration", p.Component); err != nil {
		return nil, err
	}
	if ps.postUnregistration, _, err = p.PostUnregistration.resolve(op, "postUnregistration", p.Component); err != nil {
		return nil, err
	}
	return ps, nil
}

func (p *ProvidedService) Contract() *contract.Contract {
	return p.contract
}

// Registration is the active registration, or nil.
func (p *ProvidedService) Registration() *registry.Registration {
	return p.registration
}

func (p *ProvidedService) IsRegistered() bool {
	return p.registration != nil
}

// Properties returns the properties used for the next registration.
func (p *ProvidedService) Properties() registry.Properties {
	return maps.Clone(p.props)
}

// SetProperties updates the published properties, firing Modified when the
// service is registered.
func (p *ProvidedService) SetProperties(props registry.Properties) error {
	p.props = maps.Clone(props)
	if p.registration == nil {
		return nil
	}
	return p.registration.SetProperties(p.props)
}

func (p *ProvidedService) register() error {
	if p.registration != nil {
		return nil
	}
	if p.preRegistration != nil {
		p.preRegistration()
	}
	proxy, err := contract.NewProxy(p.contract, p.sc.component)
	if err != nil {
		return hub.InvalidOperation("provide service", err.Error(), hub.Fields{
			"component": p.sc.name(),
			"contract":  p.contract.Name(),
		})
	}
	reg, err := p.sc.ext.registry.RegisterService(p.sc.component, p.contract, p.props, proxy)
	if err != nil {
		return err
	}
	p.registration = reg
	if p.postRegistration != nil {
		p.postRegistration(reg)
	}
	return nil
}

func (p *ProvidedService) unregister() {
	if p.registration == nil {
		return
	}
	reg := p.registration
	if p.preUnregistration != nil {
		p.preUnregistration(reg)
	}
	if reg.IsRegistered() {
		if err := p.sc.ext.registry.UnregisterService(reg); err != nil {
			log.Debug().Err(err).Str("component", p.sc.name()).Msg("provided service already withdrawn")
		}
	}
	p.registration = nil
	if p.postUnregistration != nil {
		p.postUnregistration()
	}
}

func (p *ProvidedService) onValidation() {
	if err := p.register(); err != nil {
		log.Error().Err(err).
			Str("component", p.sc.name()).
			Str("contract", p.contract.Name()).
			Msg("cannot register provided service")
	}
}

func (p *ProvidedService) onInvalidation() {
	p.unregister()
}

func (p *ProvidedService) onStop() {
	p.unregister()
}
