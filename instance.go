package dyneval

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"time"

	"github.com/ezachrisen/dyneval/scriptapi"
)

// Instance is a constructed entry value inside a module.
type Instance struct {
	// Identity the instance is cached under. Empty for uncached instances.
	Identity string
	Created  time.Time

	module     *Module
	handle     string
	capability scriptapi.Capability
}

// Capability returns the entry value's view of the host contract.
func (in *Instance) Capability() scriptapi.Capability {
	return in.capability
}

// Env is shorthand for Capability().Env().
func (in *Instance) Env() *scriptapi.Env {
	return in.capability.Env()
}

// Module returns the module the instance was created from.
func (in *Instance) Module() *Module {
	return in.module
}

// Call invokes the exported method on the entry value.
//
// Arguments are converted to the method's parameter types where Go allows
// it. A method returning (T, error) or (error) has its error returned; a
// panic in the script is returned as an error.
func (in *Instance) Call(ctx context.Context, method string, args ...interface{}) (result interface{}, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !token.IsIdentifier(method) || !token.IsExported(method) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	fn, err := in.module.eval(in.handle + "." + method)
	if err != nil {
		if errors.Is(err, ErrBoundaryClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, in.module.EntryName(), method)
	}
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s.%s is not a method", ErrUnknownMethod, in.module.EntryName(), method)
	}

	in2, err := convertArgs(fn.Type(), args)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%s panicked: %v", method, r)
		}
	}()
	return results(fn.Call(in2))
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// results unpacks a method's return values.
func results(out []reflect.Value) (interface{}, error) {
	if len(out) == 0 {
		return nil, nil
	}
	last := out[len(out)-1]
	if last.Type() == errType {
		var err error
		if !last.IsNil() {
			err = last.Interface().(error)
		}
		if len(out) == 1 {
			return nil, err
		}
		return value(out[0]), err
	}
	return value(out[0]), nil
}

func value(v reflect.Value) interface{} {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// convertArgs matches args to the parameters of ft.
func convertArgs(ft reflect.Type, args []interface{}) ([]reflect.Value, error) {
	n := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < n-1 {
			return nil, fmt.Errorf("want at least %d arguments, got %d", n-1, len(args))
		}
	} else if len(args) != n {
		return nil, fmt.Errorf("want %d arguments, got %d", n, len(args))
	}

	out := make([]reflect.Value, len(args))
	for i, a := range args {
		var t reflect.Type
		if ft.IsVariadic() && i >= n-1 {
			t = ft.In(n - 1).Elem()
		} else {
			t = ft.In(i)
		}
		v, err := convertArg(a, t)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func convertArg(a interface{}, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a %s", t)
	}
	v := reflect.ValueOf(a)
	switch {
	case v.Type().AssignableTo(t):
		return v, nil
	case v.Type().ConvertibleTo(t) && sameClass(v.Kind(), t.Kind()):
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%T is not a %s", a, t)
}

// sameClass keeps conversions between kinds that mean the same thing, so
// an int is never silently turned into a string.
func sameClass(a, b reflect.Kind) bool {
	return class(a) == class(b) && class(a) != 0
}

func class(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 1
	case reflect.String:
		return 2
	case reflect.Slice:
		return 3
	case reflect.Map:
		return 4
	case reflect.Bool:
		return 5
	}
	return 0
}
