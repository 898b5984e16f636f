package soc

import (
	"fmt"
	"reflect"

	"github.com/nicolas-rempulski/h-ubu/internal/hub"
	"github.com/nicolas-rempulski/h-ubu/internal/registry"
)

// Hook signatures.
type (
	BindFunc         = func(svc any, ref *registry.Reference)
	RegistrationFunc = func(reg *registry.Registration)
	NotifyFunc       = func()
)

// Hook is either a function or the name of a method on the owning
// component. It is resolved once, when the requirement or provision is
// declared.
type Hook[F any] struct {
	fn     F
	method string
	isFunc bool
}

// Func wraps f as a hook.
func Func[F any](f F) Hook[F] {
	return Hook[F]{fn: f, isFunc: true}
}

// Method names a method of the owning component with signature F.
func Method[F any](name string) Hook[F] {
	return Hook[F]{method: name}
}

func (h Hook[F]) IsZero() bool {
	return !h.isFunc && h.method == ""
}

func (h Hook[F]) String() string {
	switch {
	case h.isFunc:
		return "func"
	case h.method != "":
		return "method " + h.method
	default:
		return "none"
	}
}

// resolve returns the callable, or ok=false for an empty hook.
func (h Hook[F]) resolve(op, field string, owner hub.Component) (fn F, ok bool, err error) {
	if h.isFunc {
		if reflect.ValueOf(h.fn).IsNil() {
			return fn, false, nil
		}
		return h.fn, true, nil
	}
	if h.method == "" {
		return fn, false, nil
	}
	m := reflect.ValueOf(owner).MethodByName(h.method)
	if !m.IsValid() {
		return fn, false, hub.InvalidOperation(op, "unknown hook method", hub.Fields{
			"component": owner.Name(),
			"hook":      field,
			"method":    h.method,
		})
	}
	resolved, typed := m.Interface().(F)
	if !typed {
		return fn, false, hub.InvalidOperation(op, "hook method has the wrong signature", hub.Fields{
			"component": owner.Name(),
			"hook":      field,
			"method":    h.method,
			"signature": m.Type().String(),
			"want":      fmt.Sprintf("%T", fn),
		})
	}
	return resolved, true, nil
}
