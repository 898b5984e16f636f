package contract

import (
	"reflect"
	"regexp"
	"time"
)

// Kind is the coarse classification used for contract conformance.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindFunction
	KindArray
	KindDate
	KindRegexp
	KindObject
)

var (
	timeType   = reflect.TypeFor[time.Time]()
	regexpType = reflect.TypeFor[*regexp.Regexp]()
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	case KindArray:
		return "array"
	case KindDate:
		return "date"
	case KindRegexp:
		return "regexp"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// KindOf classifies v. Nil pointers, funcs, maps, slices and interfaces are
// reported as KindNull.
func KindOf(v any) Kind {
	if v == nil {
		return KindNull
	}
	rv := reflect.ValueOf(v)
	switch rv.Type() {
	case timeType:
		return KindDate
	case regexpType:
		if rv.IsNil() {
			return KindNull
		}
		return KindRegexp
	}

	switch rv.Kind() {
	case reflect.Bool:
		return KindBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return KindNumber
	case reflect.String:
		return KindString
	case reflect.Func:
		if rv.IsNil() {
			return KindNull
		}
		return KindFunction
	case reflect.Slice:
		if rv.IsNil() {
			return KindNull
		}
		return KindArray
	case reflect.Array:
		return KindArray
	case reflect.Pointer:
		if rv.IsNil() {
			return KindNull
		}
		if rv.Elem().Type() == timeType {
			return KindDate
		}
		return KindObject
	case reflect.Map, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		if rv.IsNil() {
			return KindNull
		}
		return KindObject
	default:
		return KindObject
	}
}
