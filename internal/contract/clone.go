package contract

import (
	"reflect"
	"regexp"
	"slices"
)

// Clone deep-copies maps, slices and arrays reachable from v. Times are
// copied and patterns recompiled; other values are returned as is.
// Excluded keys are dropped from a top-level string-keyed map.
func Clone(v any, excluded ...string) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String && len(excluded) > 0 {
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if slices.Contains(excluded, iter.Key().String()) {
				continue
			}
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out.Interface()
	}
	return cloneValue(rv).Interface()
}

func cloneValue(rv reflect.Value) reflect.Value {
	if rv.Type() == regexpType {
		if rv.IsNil() {
			return rv
		}
		re := rv.Interface().(*regexp.Regexp)
		return reflect.ValueOf(regexp.MustCompile(re.String()))
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}
		return cloneValue(rv.Elem())
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), assignable(cloneValue(iter.Value()), rv.Type().Elem()))
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(assignable(cloneValue(rv.Index(i)), rv.Type().Elem()))
		}
		return out
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(assignable(cloneValue(rv.Index(i)), rv.Type().Elem()))
		}
		return out
	default:
		return rv
	}
}

// assignable turns an invalid or nil interface result back into the zero
// value of t so it can be stored.
func assignable(v reflect.Value, t reflect.Type) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(t)
	}
	return v
}

// IndexOf returns the position of the first v in s, or -1.
func IndexOf[T comparable](s []T, v T) int {
	return slices.Index(s, v)
}

// RemoveFirst drops the first v from s.
func RemoveFirst[T comparable](s []T, v T) ([]T, bool) {
	i := slices.Index(s, v)
	if i < 0 {
		return s, false
	}
	return slices.Delete(s, i, i+1), true
}
