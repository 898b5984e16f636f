package contract

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotConform    = errors.New("contract: object does not conform")
	ErrUnknownMember = errors.New("contract: unknown member")
	ErrBadCall       = errors.New("contract: bad call")
)

// Func is the exemplar used for operation members.
var Func any = func() {}

// Contract is a named structural shape: member name to zero-value exemplar.
// Contracts compare by pointer identity.
type Contract struct {
	name    string
	keys    []string
	members map[string]any
}

// New builds a contract from a member map. A nil exemplar declares a member
// that is exposed by proxies but never checked.
func New(name string, members map[string]any) *Contract {
	c := &Contract{
		name:    name,
		keys:    make([]string, 0, len(members)),
		members: make(map[string]any, len(members)),
	}
	for key, exemplar := range members {
		c.keys = append(c.keys, key)
		c.members[key] = exemplar
	}
	sort.Strings(c.keys)
	return c
}

// Of derives a contract from the method set of interface type T.
func Of[T any]() *Contract {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Interface {
		panic(fmt.Sprintf("contract.Of: %s is not an interface type", t))
	}
	members := make(map[string]any, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		members[t.Method(i).Name] = Func
	}
	return New(t.String(), members)
}

func (c *Contract) Name() string {
	return c.name
}

// Keys returns the member names in sorted order.
func (c *Contract) Keys() []string {
	return append([]string(nil), c.keys...)
}

func (c *Contract) Member(key string) (any, bool) {
	exemplar, ok := c.members[key]
	return exemplar, ok
}

func (c *Contract) String() string {
	return c.name
}

// Conforms reports whether obj exposes a non-nil value of the exemplar's kind
// for every member with a non-nil exemplar. The first mismatch is logged.
func Conforms(obj any, c *Contract) bool {
	if c == nil {
		return false
	}
	if obj == nil {
		log.Warn().Str("contract", c.name).Msg("nil object cannot conform to contract")
		return false
	}
	for _, key := range c.keys {
		exemplar := c.members[key]
		if exemplar == nil {
			continue
		}
		value, ok := lookup(obj, key)
		if !ok || KindOf(value) == KindNull {
			log.Warn().
				Str("contract", c.name).
				Str("member", key).
				Str("object", fmt.Sprintf("%T", obj)).
				Msg("contract member missing")
			return false
		}
		if want, got := KindOf(exemplar), KindOf(value); want != got {
			log.Warn().
				Str("contract", c.name).
				Str("member", key).
				Stringer("want", want).
				Stringer("got", got).
				Msg("contract member kind mismatch")
			return false
		}
	}
	return true
}

// lookup resolves name on obj as a proxy member, a method, an exported struct
// field or a string map key, in that order.
func lookup(obj any, name string) (any, bool) {
	switch o := obj.(type) {
	case *Proxy:
		return o.Value(name)
	case map[string]any:
		v, ok := o[name]
		return v, ok
	}

	rv := reflect.ValueOf(obj)
	if m := rv.MethodByName(name); m.IsValid() {
		return m.Interface(), true
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	sf, ok := rv.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return nil, false
	}
	fv, err := rv.FieldByIndexErr(sf.Index)
	if err != nil {
		return nil, false
	}
	return fv.Interface(), true
}
