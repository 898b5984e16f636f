package hub

import (
	"reflect"
	"strings"
)

// ConfigName is the configuration key overriding a component's name.
const ConfigName = "name"

// Config is the per-registration configuration handed to Configure.
type Config map[string]any

// String returns the trimmed string stored under key.
func (c Config) String(key string) (string, bool) {
	v, ok := c[key].(string)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Strings returns key as a string list, accepting []string or []any.
func (c Config) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Component is a unit managed by a Hub. The dynamic type must be comparable;
// pointer receivers are the norm.
type Component interface {
	Name() string
	Configure(h *Hub, cfg Config) error
	Start() error
	Stop() error
}

// HubAware components receive a back-reference on registration when they
// do not hold one yet.
type HubAware interface {
	Hub() *Hub
	SetHub(h *Hub)
}

// Renamer components accept the name override from their configuration.
type Renamer interface {
	SetName(name string)
}

// Base is an embeddable no-op component.
type Base struct {
	name string
	hub  *Hub
}

func NewBase(name string) Base {
	return Base{name: name}
}

func (b *Base) Name() string { return b.name }
func (b *Base) SetName(name string) { b.name = name }
func (b *Base) Hub() *Hub { return b.hub }
func (b *Base) SetHub(h *Hub) { b.hub = h }
func (b *Base) Configure(_ *Hub, _ Config) error { return nil }
func (b *Base) Start() error { return nil }
func (b *Base) Stop() error { return nil }

// ComponentFunc adapts optional callbacks into a Component. Use it through a
// pointer.
type ComponentFunc struct {
	ID          string
	ConfigureFn func(h *Hub, cfg Config) error
	StartFn     func() error
	StopFn      func() error

	hub *Hub
}

func (c *ComponentFunc) Name() string { return c.ID }
func (c *ComponentFunc) SetName(name string) { c.ID = name }
func (c *ComponentFunc) Hub() *Hub { return c.hub }
func (c *ComponentFunc) SetHub(h *Hub) { c.hub = h }

func (c *ComponentFunc) Configure(h *Hub, cfg Config) error {
	if c.ConfigureFn == nil {
		return nil
	}
	return c.ConfigureFn(h, cfg)
}

func (c *ComponentFunc) Start() error {
	if c.StartFn == nil {
		return nil
	}
	return c.StartFn()
}

func (c *ComponentFunc) Stop() error {
	if c.StopFn == nil {
		return nil
	}
	return c.StopFn()
}

// IsNil reports whether c is nil or a typed nil.
func IsNil(c Component) bool {
	if c == nil {
		return true
	}
	rv := reflect.ValueOf(c)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
