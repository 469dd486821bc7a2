package cel

import (
	"errors"
	"fmt"
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// importDeclarations turns the exported surface of v into CEL declarations:
// one function per method and one constant per representable field.
func importDeclarations(name string, v reflect.Value) ([]celgo.EnvOption, error) {
	if !v.IsValid() {
		return nil, errors.New("nil import")
	}

	var opts []celgo.EnvOption
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		opt, ok := methodFunction(name+"."+m.Name, v.Method(i))
		if ok {
			opts = append(opts, opt)
		}
	}

	s := v
	for s.Kind() == reflect.Ptr && !s.IsNil() {
		s = s.Elem()
	}
	if s.Kind() != reflect.Struct {
		return opts, nil
	}
	for i := 0; i < s.NumField(); i++ {
		f := s.Type().Field(i)
		if !f.IsExported() {
			continue
		}
		val := types.DefaultTypeAdapter.NativeToValue(s.Field(i).Interface())
		if types.IsError(val) {
			continue
		}
		opts = append(opts, celgo.Constant(name+"."+f.Name, celType(f.Type), val))
	}
	return opts, nil
}

// methodFunction declares fn as a CEL function. Variadic methods and methods
// whose results are not (T), (T, error) or () are not importable.
func methodFunction(name string, fn reflect.Value) (celgo.EnvOption, bool) {
	ft := fn.Type()
	if ft.IsVariadic() {
		return nil, false
	}

	var ret *celgo.Type
	switch {
	case ft.NumOut() == 0:
		ret = celgo.NullType
	case ft.NumOut() == 1:
		ret = celType(ft.Out(0))
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
		ret = celType(ft.Out(0))
	default:
		return nil, false
	}

	params := make([]*celgo.Type, ft.NumIn())
	for i := range params {
		params[i] = celType(ft.In(i))
	}

	return celgo.Function(name,
		celgo.Overload(overloadID(name, ft.NumIn()), params, ret,
			celgo.FunctionBinding(methodWrapper(name, fn)))), true
}

// methodWrapper converts CEL arguments to the method's parameter types,
// calls it, and converts the result back.
func methodWrapper(name string, fn reflect.Value) func(args ...ref.Val) ref.Val {
	ft := fn.Type()
	return func(args ...ref.Val) ref.Val {
		if len(args) != ft.NumIn() {
			return types.NewErr("%s: want %d arguments, got %d", name, ft.NumIn(), len(args))
		}
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			v, err := toArg(a, ft.In(i))
			if err != nil {
				return types.NewErr("%s argument %d: %v", name, i+1, err)
			}
			in[i] = v
		}

		out := fn.Call(in)
		switch len(out) {
		case 0:
			return types.NullValue
		case 2:
			if err, _ := out[1].Interface().(error); err != nil {
				return types.NewErr("%s: %v", name, err)
			}
		}
		return types.DefaultTypeAdapter.NativeToValue(out[0].Interface())
	}
}

func overloadID(name string, arity int) string {
	return fmt.Sprintf("%s_%d", name, arity)
}
