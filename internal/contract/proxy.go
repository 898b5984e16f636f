package contract

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeFor[error]()

// Proxy exposes exactly the members of a contract over a target object.
// Operations stay bound to the target; data members are copied when the
// proxy is built.
type Proxy struct {
	contract *Contract
	funcs    map[string]reflect.Value
	values   map[string]any
}

// NewProxy builds the dispatch table for obj restricted to c.
func NewProxy(c *Contract, obj any) (*Proxy, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil contract", ErrNotConform)
	}
	if !Conforms(obj, c) {
		return nil, fmt.Errorf("%w: %T does not satisfy %s", ErrNotConform, obj, c.name)
	}
	p := &Proxy{
		contract: c,
		funcs:    make(map[string]reflect.Value),
		values:   make(map[string]any),
	}
	for _, key := range c.keys {
		value, ok := lookup(obj, key)
		if !ok {
			continue
		}
		if KindOf(value) == KindFunction {
			p.funcs[key] = reflect.ValueOf(value)
			continue
		}
		p.values[key] = Clone(value)
	}
	return p, nil
}

func (p *Proxy) Contract() *Contract {
	return p.contract
}

func (p *Proxy) Keys() []string {
	return p.contract.Keys()
}

// Has reports whether name is a member of the proxied contract.
func (p *Proxy) Has(name string) bool {
	_, ok := p.contract.members[name]
	return ok
}

// Value returns the member as a plain value. Operations are returned as
// bound method values.
func (p *Proxy) Value(name string) (any, bool) {
	if fn, ok := p.funcs[name]; ok {
		return fn.Interface(), true
	}
	v, ok := p.values[name]
	return v, ok
}

// Call invokes the operation name with args and returns its results.
func (p *Proxy) Call(name string, args ...any) ([]any, error) {
	fn, ok := p.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, p.contract.name, name)
	}
	ft := fn.Type()
	if ft.IsVariadic() {
		if len(args) < ft.NumIn()-1 {
			return nil, fmt.Errorf("%w: %s.%s wants at least %d args, got %d", ErrBadCall, p.contract.name, name, ft.NumIn()-1, len(args))
		}
	} else if len(args) != ft.NumIn() {
		return nil, fmt.Errorf("%w: %s.%s wants %d args, got %d", ErrBadCall, p.contract.name, name, ft.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := paramType(ft, i)
		if arg == nil {
			in[i] = reflect.Zero(pt)
			continue
		}
		av := reflect.ValueOf(arg)
		if !av.Type().AssignableTo(pt) {
			return nil, fmt.Errorf("%w: %s.%s arg %d is %s, want %s", ErrBadCall, p.contract.name, name, i, av.Type(), pt)
		}
		in[i] = av
	}

	out := fn.Call(in)
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

func paramType(ft reflect.Type, i int) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		return ft.In(ft.NumIn() - 1).Elem()
	}
	return ft.In(i)
}

// Invoke calls name on p and converts the first result to R. A trailing
// non-nil error result is returned as the error.
func Invoke[R any](p *Proxy, name string, args ...any) (R, error) {
	var zero R
	out, err := p.Call(name, args...)
	if err != nil {
		return zero, err
	}
	if n := len(out); n > 0 {
		fn := p.funcs[name]
		if fn.Type().Out(n-1) == errorType {
			if e, _ := out[n-1].(error); e != nil {
				return zero, e
			}
			out = out[:n-1]
		}
	}
	if len(out) == 0 {
		return zero, nil
	}
	if out[0] == nil {
		return zero, nil
	}
	r, ok := out[0].(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s.%s returned %T", ErrBadCall, p.contract.name, name, out[0])
	}
	return r, nil
}
