package hub

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidComponent = errors.New("invalid component")
	ErrInvalidOperation = errors.New("invalid operation")
)

// Fields carries the offending values of a misconfiguration.
type Fields map[string]any

// Error is a misconfiguration failure. Kind is one of the sentinel errors
// above and is what errors.Is matches against.
type Error struct {
	Op     string
	Kind   error
	Msg    string
	Fields Fields
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Fields[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func InvalidComponent(op, msg string, fields Fields) error {
	return &Error{Op: op, Kind: ErrInvalidComponent, Msg: msg, Fields: fields}
}

func InvalidOperation(op, msg string, fields Fields) error {
	return &Error{Op: op, Kind: ErrInvalidOperation, Msg: msg, Fields: fields}
}
