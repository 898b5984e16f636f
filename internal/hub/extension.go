package hub

import (
	"fmt"
	"sync"
)

// ExtensionFactory builds one extension instance bound to h.
type ExtensionFactory func(h *Hub) any

// Extensions opt into kernel notifications by implementing any of the
// interfaces below.
type (
	RegisterObserver interface {
		ComponentRegistered(c Component)
	}
	UnregisterObserver interface {
		ComponentUnregistered(c Component)
	}
	Lifecycle interface {
		Start() error
		Stop() error
	}
	Resetter interface {
		Reset()
	}
)

type extensionDef struct {
	name    string
	factory ExtensionFactory
}

type loadedExtension struct {
	name string
	ext  any
}

var (
	extensionsMu sync.Mutex
	extensions   []extensionDef
)

// RegisterExtension adds a process-wide extension loaded by every hub that
// does not opt out. Call it from init; a duplicate name panics.
func RegisterExtension(name string, factory ExtensionFactory) {
	extensionsMu.Lock()
	defer extensionsMu.Unlock()
	if factory == nil {
		panic(fmt.Sprintf("hub: nil factory for extension %q", name))
	}
	for _, def := range extensions {
		if def.name == name {
			panic(fmt.Sprintf("hub: extension %q registered twice", name))
		}
	}
	extensions = append(extensions, extensionDef{name: name, factory: factory})
}

// RegisteredExtensions lists the process-wide extension names in load order.
func RegisteredExtensions() []string {
	extensionsMu.Lock()
	defer extensionsMu.Unlock()
	names := make([]string, 0, len(extensions))
	for _, def := range extensions {
		names = append(names, def.name)
	}
	return names
}

func globalExtensions() []extensionDef {
	extensionsMu.Lock()
	defer extensionsMu.Unlock()
	return append([]extensionDef(nil), extensions...)
}

// Extension returns the named extension, loading extensions if needed.
func (h *Hub) Extension(name string) any {
	h.loadExtensions()
	for _, le := range h.extensions {
		if le.name == name {
			return le.ext
		}
	}
	return nil
}

func (h *Hub) loadExtensions() {
	if h.loaded {
		return
	}
	h.loaded = true
	var defs []extensionDef
	if h.useGlobal {
		defs = globalExtensions()
	}
	defs = append(defs, h.local...)
	for _, def := range defs {
		ext := def.factory(h)
		if ext == nil {
			continue
		}
		h.extensions = append(h.extensions, loadedExtension{name: def.name, ext: ext})
	}
}

func (h *Hub) extensionSnapshot() []loadedExtension {
	return append([]loadedExtension(nil), h.extensions...)
}
