// Package assert provides precondition checks that return errors instead of panicking.
// Every exported function in the ledger guards its inputs with these helpers.
package assert

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrAssertion is wrapped by every error produced in this package.
var ErrAssertion = errors.New("assertion failed")

// Check returns an error wrapping ErrAssertion when cond is false.
func Check(cond bool, format string, args ...interface{}) error {
	if cond {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAssertion, fmt.Sprintf(format, args...))
}

// NotNil fails for nil interfaces and typed nil pointers, maps, slices, chans and funcs.
func NotNil(v interface{}, name string) error {
	if v == nil {
		return fmt.Errorf("%w: %s must not be nil", ErrAssertion, name)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if rv.IsNil() {
			return fmt.Errorf("%w: %s must not be nil", ErrAssertion, name)
		}
	}
	return nil
}

// InRange checks lo <= v <= hi.
func InRange(v, lo, hi int, name string) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s out of range: %d not in [%d, %d]", ErrAssertion, name, v, lo, hi)
	}
	return nil
}
