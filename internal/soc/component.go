package soc

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/hub"
)

type State int

const (
	Stopped State = iota
	Invalid
	Valid
)

func (s State) String() string {
	switch s {
	case Invalid:
		return "INVALID"
	case Valid:
		return "VALID"
	default:
		return "STOPPED"
	}
}

// ServiceComponent is valid when every required dependency is resolved.
// Provided services are registered exactly while it is valid.
type ServiceComponent struct {
	ext       *Extension
	component hub.Component
	state     State
	required  []*Dependency
	provided  []*ProvidedService
}

func (sc *ServiceComponent) Component() hub.Component {
	return sc.component
}

func (sc *ServiceComponent) State() State {
	return sc.state
}

func (sc *ServiceComponent) IsValid() bool {
	return sc.state == Valid
}

func (sc *ServiceComponent) Required() []*Dependency {
	return slices.Clone(sc.required)
}

func (sc *ServiceComponent) Provided() []*ProvidedService {
	return slices.Clone(sc.provided)
}

// AddRequiredService attaches d, starting it when the component is running.
func (sc *ServiceComponent) AddRequiredService(d *Dependency) {
	sc.required = append(sc.required, d)
	if sc.state != Stopped {
		d.start()
		sc.computeState()
	}
}

// RemoveRequiredService stops tracking d.
func (sc *ServiceComponent) RemoveRequiredService(d *Dependency) bool {
	i := slices.Index(sc.required, d)
	if i < 0 {
		return false
	}
	sc.required = slices.Delete(sc.required, i, i+1)
	d.stop()
	sc.computeState()
	return true
}

// AddProvidedService attaches p, registering it when the component is valid.
func (sc *ServiceComponent) AddProvidedService(p *ProvidedService) {
	sc.provided = append(sc.provided, p)
	if sc.state == Valid {
		p.onValidation()
	}
}

// RemoveProvidedService withdraws p.
func (sc *ServiceComponent) RemoveProvidedService(p *ProvidedService) bool {
	i := slices.Index(sc.provided, p)
	if i < 0 {
		return false
	}
	sc.provided = slices.Delete(sc.provided, i, i+1)
	p.unregister()
	return true
}

func (sc *ServiceComponent) computeState() {
	if sc.state == Stopped {
		return
	}
	valid := true
	for _, d := range sc.required {
		if !d.IsResolved() {
			valid = false
			break
		}
	}
	switch {
	case valid && sc.state != Valid:
		sc.state = Valid
		log.Debug().Str("component", sc.name()).Msg("service component valid")
		for _, p := range slices.Clone(sc.provided) {
			p.onValidation()
		}
	case !valid && sc.state == Valid:
		sc.state = Invalid
		log.Debug().Str("component", sc.name()).Msg("service component invalid")
		for _, p := range slices.Clone(sc.provided) {
			p.onInvalidation()
		}
	}
}

func (sc *ServiceComponent) onStart() {
	if sc.state != Stopped {
		return
	}
	for _, d := range slices.Clone(sc.required) {
		d.start()
	}
	sc.state = Invalid
	sc.computeState()
}

func (sc *ServiceComponent) onStop() {
	for _, p := range slices.Clone(sc.provided) {
		p.onStop()
	}
	for _, d := range slices.Clone(sc.required) {
		d.stop()
	}
	sc.state = Stopped
}

func (sc *ServiceComponent) name() string {
	if n := sc.ext.hub.NameOf(sc.component); n != "" {
		return n
	}
	return sc.component.Name()
}
