package cel

// This file converts between Go values and CEL values.

import (
	"fmt"
	"reflect"
	"time"

	"fortio.org/safecast"
	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	bytesType    = reflect.TypeOf([]byte(nil))
)

// celType maps a Go type to the CEL type used in declarations.
// Anything without a direct counterpart is dyn.
func celType(t reflect.Type) *celgo.Type {
	switch t {
	case timeType:
		return celgo.TimestampType
	case durationType:
		return celgo.DurationType
	case bytesType:
		return celgo.BytesType
	}

	switch t.Kind() {
	case reflect.Bool:
		return celgo.BoolType
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return celgo.IntType
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return celgo.UintType
	case reflect.Float32, reflect.Float64:
		return celgo.DoubleType
	case reflect.String:
		return celgo.StringType
	case reflect.Slice, reflect.Array:
		return celgo.ListType(celType(t.Elem()))
	case reflect.Map:
		return celgo.MapType(celType(t.Key()), celType(t.Elem()))
	default:
		return celgo.DynType
	}
}

// toArg converts a CEL value to a Go value assignable to t.
// Integer narrowing fails rather than wrapping.
func toArg(v ref.Val, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Interface {
		n, err := native(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if n == nil {
			return reflect.Zero(t), nil
		}
		rv := reflect.ValueOf(n)
		if !rv.Type().AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("%T is not assignable to %s", n, t)
		}
		return rv, nil
	}

	var (
		x   interface{}
		err error
	)
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := v.Value().(int64)
		if !ok {
			return reflect.Value{}, fmt.Errorf("want int, got %s", v.Type().TypeName())
		}
		x, err = narrowInt(n, t.Kind())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		switch u := v.Value().(type) {
		case uint64:
			n = u
		case int64:
			n, err = safecast.Conv[uint64](u)
		default:
			return reflect.Value{}, fmt.Errorf("want uint, got %s", v.Type().TypeName())
		}
		if err == nil {
			x, err = narrowUint(n, t.Kind())
		}
	default:
		x, err = v.ConvertToNative(t)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(x).Convert(t), nil
}

func narrowInt(n int64, k reflect.Kind) (interface{}, error) {
	switch k {
	case reflect.Int8:
		return safecast.Conv[int8](n)
	case reflect.Int16:
		return safecast.Conv[int16](n)
	case reflect.Int32:
		return safecast.Conv[int32](n)
	case reflect.Int:
		return safecast.Conv[int](n)
	}
	return n, nil
}

func narrowUint(n uint64, k reflect.Kind) (interface{}, error) {
	switch k {
	case reflect.Uint8:
		return safecast.Conv[uint8](n)
	case reflect.Uint16:
		return safecast.Conv[uint16](n)
	case reflect.Uint32:
		return safecast.Conv[uint32](n)
	case reflect.Uint:
		return safecast.Conv[uint](n)
	}
	return n, nil
}

// native converts an evaluation result to plain Go values: null becomes nil,
// lists become []interface{} and maps become map[string]interface{} when
// every key is a string, map[interface{}]interface{} otherwise.
func native(v ref.Val) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if types.IsError(v) {
		return nil, fmt.Errorf("%v", v)
	}

	switch x := v.(type) {
	case types.Null:
		return nil, nil
	case traits.Lister:
		size, ok := x.Size().(types.Int)
		if !ok {
			return nil, fmt.Errorf("list has no size")
		}
		out := make([]interface{}, 0, int(size))
		for i := types.Int(0); i < size; i++ {
			e, err := native(x.Get(i))
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	case traits.Mapper:
		keys := map[interface{}]interface{}{}
		strKeys := map[string]interface{}{}
		allStrings := true
		it := x.Iterator()
		for it.HasNext() == types.True {
			k := it.Next()
			kv, err := native(k)
			if err != nil {
				return nil, err
			}
			ev, err := native(x.Get(k))
			if err != nil {
				return nil, err
			}
			keys[kv] = ev
			if s, ok := kv.(string); ok {
				strKeys[s] = ev
			} else {
				allStrings = false
			}
		}
		if allStrings {
			return strKeys, nil
		}
		return keys, nil
	}
	return v.Value(), nil
}
