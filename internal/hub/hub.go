package hub

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultName = "hub"
	RootName    = "root"
)

type entry struct {
	component Component
	name      string
}

// Hub owns an ordered component list and a set of extensions, and drives
// their lifecycle. A Hub is not safe for concurrent use.
type Hub struct {
	name       string
	parent     *Hub
	components []*entry
	started    bool

	useGlobal  bool
	local      []extensionDef
	loaded     bool
	extensions []loadedExtension
}

type Option func(*Hub)

func WithName(name string) Option {
	return func(h *Hub) {
		h.name = name
	}
}

// WithExtension adds an extension local to this hub, loaded after the
// process-wide ones.
func WithExtension(name string, factory ExtensionFactory) Option {
	return func(h *Hub) {
		h.local = append(h.local, extensionDef{name: name, factory: factory})
	}
}

// WithoutGlobalExtensions keeps extensions registered with RegisterExtension
// out of this hub.
func WithoutGlobalExtensions() Option {
	return func(h *Hub) {
		h.useGlobal = false
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{name: DefaultName, useGlobal: true}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var (
	defaultOnce sync.Once
	defaultHub  *Hub
)

// Default returns the process root hub.
func Default() *Hub {
	defaultOnce.Do(func() {
		defaultHub = New(WithName(RootName))
	})
	return defaultHub
}

// Name is the hub's own component name.
func (h *Hub) Name() string {
	return h.name
}

func (h *Hub) SetName(name string) {
	h.name = name
}

// Parent is the hub this hub is plugged into as a component, if any.
func (h *Hub) Parent() *Hub {
	return h.parent
}

// Configure lets a hub be plugged into another hub. A name in cfg replaces
// the current one and survives Reset.
func (h *Hub) Configure(parent *Hub, cfg Config) error {
	h.parent = parent
	if name, ok := cfg.String(ConfigName); ok {
		h.name = name
	}
	return nil
}

func (h *Hub) Started() bool {
	return h.started
}

// RegisterComponent plugs c into the hub. Registering a name that is
// already present is a no-op.
func (h *Hub) RegisterComponent(c Component, cfg Config) error {
	if IsNil(c) {
		return InvalidComponent("register component", "component is nil", nil)
	}
	if !reflect.TypeOf(c).Comparable() {
		return InvalidComponent("register component", "component type is not comparable", Fields{"type": fmt.Sprintf("%T", c)})
	}
	name := c.Name()
	override, hasOverride := cfg.String(ConfigName)
	if hasOverride {
		name = override
	}
	if name == "" {
		return InvalidComponent("register component", "component has no name", Fields{"type": fmt.Sprintf("%T", c)})
	}
	if existing := h.GetComponent(name); existing != nil {
		log.Info().Str("hub", h.name).Str("component", name).Msg("component already registered")
		return nil
	}
	if c == Component(h) {
		return InvalidComponent("register component", "hub cannot contain itself", Fields{"hub": h.name})
	}

	h.loadExtensions()
	if hasOverride {
		if r, ok := c.(Renamer); ok {
			r.SetName(name)
		}
	}
	h.components = append(h.components, &entry{component: c, name: name})
	if ha, ok := c.(HubAware); ok && ha.Hub() == nil {
		ha.SetHub(h)
	}
	for _, le := range h.extensionSnapshot() {
		if o, ok := le.ext.(RegisterObserver); ok {
			o.ComponentRegistered(c)
		}
	}

	if cfg == nil {
		cfg = Config{}
	}
	if err := c.Configure(h, cfg); err != nil {
		return fmt.Errorf("configure %q: %w", name, err)
	}
	log.Debug().Str("hub", h.name).Str("component", name).Msg("component registered")

	if h.started && h.IsPlugged(c) {
		if err := c.Start(); err != nil {
			return fmt.Errorf("start %q: %w", name, err)
		}
	}
	return nil
}

// UnregisterComponent unplugs c. Unknown components are ignored.
func (h *Hub) UnregisterComponent(c Component) error {
	if IsNil(c) {
		return InvalidComponent("unregister component", "component is nil", nil)
	}
	e := h.find(c)
	if e == nil {
		log.Debug().Str("hub", h.name).Str("component", c.Name()).Msg("component not plugged, nothing to unregister")
		return nil
	}
	return h.unregister(e)
}

// UnregisterComponentByName unplugs the component registered under name.
func (h *Hub) UnregisterComponentByName(name string) error {
	for _, e := range h.components {
		if e.name == name {
			return h.unregister(e)
		}
	}
	log.Debug().Str("hub", h.name).Str("component", name).Msg("component not plugged, nothing to unregister")
	return nil
}

func (h *Hub) unregister(e *entry) error {
	for _, le := range h.extensionSnapshot() {
		if o, ok := le.ext.(UnregisterObserver); ok {
			o.ComponentUnregistered(e.component)
		}
	}
	if err := e.component.Stop(); err != nil {
		return fmt.Errorf("stop %q: %w", e.name, err)
	}
	for i, cur := range h.components {
		if cur == e {
			h.components = append(h.components[:i:i], h.components[i+1:]...)
			break
		}
	}
	log.Debug().Str("hub", h.name).Str("component", e.name).Msg("component unregistered")
	return nil
}

// Start starts extensions, then every component in registration order.
func (h *Hub) Start() error {
	if h.started {
		return nil
	}
	h.loadExtensions()
	for _, le := range h.extensionSnapshot() {
		if l, ok := le.ext.(Lifecycle); ok {
			if err := l.Start(); err != nil {
				return fmt.Errorf("start extension %q: %w", le.name, err)
			}
		}
	}
	h.started = true
	log.Info().Str("hub", h.name).Int("components", len(h.components)).Msg("hub starting")
	for _, e := range h.snapshot() {
		if h.find(e.component) == nil {
			continue
		}
		if err := e.component.Start(); err != nil {
			return fmt.Errorf("start %q: %w", e.name, err)
		}
	}
	return nil
}

// Stop stops every component in registration order, then extensions.
func (h *Hub) Stop() error {
	if !h.started {
		return nil
	}
	h.started = false
	for _, e := range h.snapshot() {
		if h.find(e.component) == nil {
			continue
		}
		if err := e.component.Stop(); err != nil {
			return fmt.Errorf("stop %q: %w", e.name, err)
		}
	}
	for _, le := range h.extensionSnapshot() {
		if l, ok := le.ext.(Lifecycle); ok {
			if err := l.Stop(); err != nil {
				return fmt.Errorf("stop extension %q: %w", le.name, err)
			}
		}
	}
	log.Info().Str("hub", h.name).Msg("hub stopped")
	return nil
}

// Reset stops the hub and drops every component and extension. The hub
// name is kept.
func (h *Hub) Reset() error {
	stopErr := h.Stop()
	for _, le := range h.extensionSnapshot() {
		if r, ok := le.ext.(Resetter); ok {
			r.Reset()
		}
	}
	h.components = nil
	h.extensions = nil
	h.loaded = false
	h.started = false
	if stopErr != nil {
		return fmt.Errorf("reset %q: %w", h.name, stopErr)
	}
	return nil
}

// GetComponent returns the component registered under name, or nil.
func (h *Hub) GetComponent(name string) Component {
	for _, e := range h.components {
		if e.name == name {
			return e.component
		}
	}
	return nil
}

// GetComponents returns a copy of the component list in registration order.
func (h *Hub) GetComponents() []Component {
	out := make([]Component, 0, len(h.components))
	for _, e := range h.components {
		out = append(out, e.component)
	}
	return out
}

// NameOf returns the name c is registered under, or "" when unplugged.
func (h *Hub) NameOf(c Component) string {
	if e := h.find(c); e != nil {
		return e.name
	}
	return ""
}

// IsPlugged reports whether c is registered on this hub.
func (h *Hub) IsPlugged(c Component) bool {
	return !IsNil(c) && h.find(c) != nil
}

func (h *Hub) find(c Component) *entry {
	if c == nil || !reflect.TypeOf(c).Comparable() {
		return nil
	}
	for _, e := range h.components {
		if e.component == c {
			return e
		}
	}
	return nil
}

func (h *Hub) snapshot() []*entry {
	return append([]*entry(nil), h.components...)
}
