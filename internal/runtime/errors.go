package runtime

import (
	"errors"
	"fmt"
)

// Exception is a thrown script value travelling up the Go call stack as an
// error. Native functions return it; callers that catch script exceptions
// use AsException.
type Exception struct {
	Value Value
}

// Error implements the error interface.
func (e *Exception) Error() string {
	return "Uncaught " + describeThrown(e.Value)
}

// Throw wraps v as an exception error.
func Throw(v Value) error {
	return &Exception{Value: v}
}

// AsException unwraps err into an Exception.
// Uses errors.As to handle wrapped errors.
func AsException(err error) (*Exception, bool) {
	var ex *Exception
	if errors.As(err, &ex) {
		return ex, true
	}
	return nil, false
}

// IsException reports whether err carries a thrown script value.
func IsException(err error) bool {
	_, ok := AsException(err)
	return ok
}

// describeThrown renders a thrown value without running script code.
func describeThrown(v Value) string {
	o, ok := v.(*Object)
	if !ok {
		s, err := ToString(nil, v)
		if err != nil {
			return TypeOf(v)
		}
		return s
	}
	name, _ := o.dataValue(Key("name"))
	msg, _ := o.dataValue(Key("message"))
	n, nok := name.(String)
	m, mok := msg.(String)
	switch {
	case nok && mok && m != "":
		return fmt.Sprintf("%s: %s", n, m)
	case nok:
		return string(n)
	}
	return "[object " + o.class + "]"
}

// NewError creates an error object with the given prototype and message.
func (c *Context) NewError(proto *Object, message string) *Object {
	o := NewObject(proto)
	o.class = "Error"
	o.defineOwn(Key("message"), &Property{Value: String(message), Writable: true, Configurable: true})
	return o
}

// NewTypeError returns a thrown TypeError.
func (c *Context) NewTypeError(format string, args ...any) *Exception {
	if c == nil {
		return &Exception{Value: String("TypeError: " + fmt.Sprintf(format, args...))}
	}
	return &Exception{Value: c.NewError(c.TypeErrorPrototype, fmt.Sprintf(format, args...))}
}

// NewRangeError returns a thrown RangeError.
func (c *Context) NewRangeError(format string, args ...any) *Exception {
	if c == nil {
		return &Exception{Value: String("RangeError: " + fmt.Sprintf(format, args...))}
	}
	return &Exception{Value: c.NewError(c.RangeErrorPrototype, fmt.Sprintf(format, args...))}
}

// ErrorName reports the "name" of a thrown error object ("TypeError", ...).
func ErrorName(v Value) string {
	o, ok := v.(*Object)
	if !ok {
		return ""
	}
	name, _ := o.dataValue(Key("name"))
	if s, ok := name.(String); ok {
		return string(s)
	}
	return ""
}
