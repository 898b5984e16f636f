package observability

import (
	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/hub"
	"github.com/nicolas-rempulski/h-ubu/internal/registry"
	"github.com/nicolas-rempulski/h-ubu/internal/soc"
)

// ExtensionName is the name of the metrics extension.
const ExtensionName = "metrics"

func init() {
	hub.RegisterExtension(ExtensionName, func(h *hub.Hub) any {
		return NewMetricsExtension(h)
	})
}

// MetricsExtension records hub activity into the prometheus collectors.
type MetricsExtension struct {
	hub      *hub.Hub
	listener *registry.ServiceListener
	registry *registry.Registry
}

func NewMetricsExtension(h *hub.Hub) *MetricsExtension {
	return &MetricsExtension{hub: h}
}

// ComponentRegistered subscribes before the component can declare services.
func (m *MetricsExtension) ComponentRegistered(c hub.Component) {
	RecordComponentEvent(m.hub.Name(), "registered")
	if err := m.subscribe(); err != nil {
		log.Warn().Err(err).Str("hub", m.hub.Name()).Msg("metrics: service listener rejected")
	}
}

func (m *MetricsExtension) ComponentUnregistered(c hub.Component) {
	RecordComponentEvent(m.hub.Name(), "unregistered")
}

// Start subscribes to service events if no component did it earlier.
func (m *MetricsExtension) Start() error {
	return m.subscribe()
}

// subscribe registers the catch-all service listener and seeds the gauge
// with the services already published.
func (m *MetricsExtension) subscribe() error {
	if m.listener != nil {
		return nil
	}
	ext, ok := m.hub.Extension(soc.Name).(*soc.Extension)
	if !ok {
		log.Debug().Str("hub", m.hub.Name()).Msg("metrics: no service registry on hub")
		return nil
	}
	reg := ext.Registry()
	l, err := reg.RegisterServiceListener(registry.ListenerConfig{
		Listener: registry.ListenerFunc(func(ev registry.Event) {
			RecordServiceEvent(m.hub.Name(), ev.Type.String(), m.liveServices())
		}),
	})
	if err != nil {
		return err
	}
	m.registry = reg
	m.listener = l
	SetRegisteredServices(m.hub.Name(), m.liveServices())
	return nil
}

func (m *MetricsExtension) Stop() error {
	return nil
}

func (m *MetricsExtension) Reset() {
	if m.listener != nil {
		m.registry.UnregisterServiceListener(m.listener)
	}
	m.listener = nil
	m.registry = nil
}

// liveServices counts registrations once the event has taken effect.
func (m *MetricsExtension) liveServices() int {
	return len(m.registry.GetServiceReferences(nil, nil))
}
