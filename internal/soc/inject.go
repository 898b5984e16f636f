package soc

import (
	"fmt"
	"reflect"

	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/contract"
	"github.com/nicolas-rempulski/h-ubu/internal/hub"
)

// proxyType is what provided services are published as.
var proxyType = reflect.TypeFor[*contract.Proxy]()

// fieldOf returns the settable exported field name of the struct behind c.
func fieldOf(c hub.Component, name string, aggregate bool) (reflect.Value, error) {
	rv := reflect.ValueOf(c)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, hub.InvalidOperation("require service", "field injection needs a struct pointer component", hub.Fields{
			"component": c.Name(),
			"type":      fmt.Sprintf("%T", c),
			"field":     name,
		})
	}
	sf, ok := rv.Elem().Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return reflect.Value{}, hub.InvalidOperation("require service", "unknown or unexported field", hub.Fields{
			"component": c.Name(),
			"field":     name,
		})
	}
	fv, err := rv.Elem().FieldByIndexErr(sf.Index)
	if err != nil || !fv.CanSet() {
		return reflect.Value{}, hub.InvalidOperation("require service", "field is not settable", hub.Fields{
			"component": c.Name(),
			"field":     name,
		})
	}
	if aggregate && fv.Kind() != reflect.Slice {
		return reflect.Value{}, hub.InvalidOperation("require service", "aggregate dependency needs a slice field", hub.Fields{
			"component": c.Name(),
			"field":     name,
			"kind":      fv.Kind().String(),
		})
	}
	if want := elemType(fv, aggregate); !proxyType.AssignableTo(want) {
		return reflect.Value{}, hub.InvalidOperation("require service", "field cannot hold a service proxy", hub.Fields{
			"component": c.Name(),
			"field":     name,
			"type":      want.String(),
		})
	}
	return fv, nil
}

func elemType(field reflect.Value, aggregate bool) reflect.Type {
	if aggregate {
		return field.Type().Elem()
	}
	return field.Type()
}

func injectField(field reflect.Value, aggregate bool, svc any) bool {
	v := reflect.ValueOf(svc)
	if !v.IsValid() || !v.Type().AssignableTo(elemType(field, aggregate)) {
		log.Warn().
			Str("field_type", field.Type().String()).
			Str("service", fmt.Sprintf("%T", svc)).
			Msg("service cannot be assigned to dependency field")
		return false
	}
	if aggregate {
		field.Set(reflect.Append(field, v))
		return true
	}
	field.Set(v)
	return true
}

func ejectField(field reflect.Value, aggregate bool, svc any) {
	if !aggregate {
		field.Set(reflect.Zero(field.Type()))
		return
	}
	if svc == nil || !reflect.TypeOf(svc).Comparable() {
		return
	}
	n := field.Len()
	for i := 0; i < n; i++ {
		if field.Index(i).Interface() != svc {
			continue
		}
		out := reflect.MakeSlice(field.Type(), 0, n-1)
		out = reflect.AppendSlice(out, field.Slice(0, i))
		out = reflect.AppendSlice(out, field.Slice(i+1, n))
		field.Set(out)
		return
	}
}
