package registry

import (
	"maps"

	"github.com/nicolas-rempulski/h-ubu/internal/contract"
	"github.com/nicolas-rempulski/h-ubu/internal/hub"
)

// Reserved property keys stamped on every registration.
const (
	PropContract  = "service.contract"
	PropPublisher = "service.publisher"
	PropID        = "service.id"
)

// EventType values are bit flags.
type EventType int

const (
	Registered       EventType = 1
	Modified         EventType = 2
	Unregistering    EventType = 4
	ModifiedEndMatch EventType = 8
)

func (t EventType) String() string {
	switch t {
	case Registered:
		return "REGISTERED"
	case Modified:
		return "MODIFIED"
	case Unregistering:
		return "UNREGISTERING"
	case ModifiedEndMatch:
		return "MODIFIED_ENDMATCH"
	default:
		return "UNKNOWN"
	}
}

type Properties map[string]any

// Event describes a change of a registration. Prior carries the property
// snapshot taken before a Modified change.
type Event struct {
	Type      EventType
	Reference *Reference
	Prior     *Reference
}

// Filter selects references.
type Filter func(ref *Reference) bool

// Factory produces a service object per consumer.
type Factory func(consumer hub.Component) any

// Listener receives service events.
type Listener interface {
	ServiceChanged(ev Event)
}

type ListenerFunc func(ev Event)

func (f ListenerFunc) ServiceChanged(ev Event) {
	f(ev)
}

// Reference is the consumer-side handle of a registration.
type Reference struct {
	reg      *Registration
	snapshot Properties
}

func (r *Reference) ID() int64 {
	return r.reg.id
}

func (r *Reference) Contract() *contract.Contract {
	return r.reg.contract
}

// Publisher is the component that registered the service.
func (r *Reference) Publisher() hub.Component {
	return r.reg.component
}

func (r *Reference) Property(key string) any {
	return r.props()[key]
}

// Properties returns a copy of the property map.
func (r *Reference) Properties() Properties {
	return maps.Clone(r.props())
}

// Valid reports whether the backing registration is still registered.
func (r *Reference) Valid() bool {
	return r.reg.registered
}

func (r *Reference) props() Properties {
	if r.snapshot != nil {
		return r.snapshot
	}
	return r.reg.props
}
