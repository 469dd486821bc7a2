package cel_test

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ezachrisen/dyneval/cel"
)

type mathx struct {
	Pi      float64
	Version string
	secret  int
}

func (mathx) Sqrt(x float64) float64 { return math.Sqrt(x) }
func (mathx) Twice(n int32) int32    { return n * 2 }
func (mathx) Join(a, b string) string {
	return a + "-" + b
}

func (mathx) Div(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errors.New("divide by zero")
	}
	return a / b, nil
}

func (mathx) Sum(xs ...int) int { return len(xs) }

func TestArithmetic(t *testing.T) {
	is := is.New(t)

	e := cel.NewEvaluator()
	v, err := e.Evaluate("1 + 2 * 3")
	is.NoErr(err)
	is.Equal(v, int64(7))

	v, err = e.Evaluate(`"a" + "b"`)
	is.NoErr(err)
	is.Equal(v, "ab")

	v, err = e.Evaluate("0.5 * 4.0")
	is.NoErr(err)
	is.Equal(v, 2.0)
}

func TestNumberFormat(t *testing.T) {
	is := is.New(t)

	e := cel.NewEvaluator()
	_, err := e.Evaluate(".5 + 1.0")
	is.True(errors.Is(err, cel.ErrNumberFormat))

	_, err = e.Evaluate("2.0 * (.5)")
	is.True(errors.Is(err, cel.ErrNumberFormat))

	// inside a string literal it is just text
	v, err := e.Evaluate(`".5"`)
	is.NoErr(err)
	is.Equal(v, ".5")
}

func TestVariables(t *testing.T) {
	is := is.New(t)

	e := cel.NewEvaluator()
	e.SetVariable("x", 10)
	e.SetVariable("name", "ada")

	v, err := e.Evaluate("x * 2")
	is.NoErr(err)
	is.Equal(v, int64(20))

	v, err = e.Evaluate(`name + "!"`)
	is.NoErr(err)
	is.Equal(v, "ada!")

	// same name, new value: the cached program sees it
	e.SetVariable("x", 21)
	v, err = e.Evaluate("x * 2")
	is.NoErr(err)
	is.Equal(v, int64(42))

	e.RemoveVariable("x")
	_, err = e.Evaluate("x * 2")
	is.True(err != nil)

	e.ClearVariables()
	is.Equal(len(e.Variables()), 0)
}

func TestImport(t *testing.T) {
	is := is.New(t)

	e := cel.NewEvaluator()
	is.NoErr(e.RegisterImport("mathx", mathx{Pi: math.Pi, Version: "v1", secret: 7}))

	v, err := e.Evaluate("mathx.Sqrt(16.0)")
	is.NoErr(err)
	is.Equal(v, 4.0)

	v, err = e.Evaluate("mathx.Pi > 3.14")
	is.NoErr(err)
	is.Equal(v, true)

	v, err = e.Evaluate(`mathx.Join(mathx.Version, "beta")`)
	is.NoErr(err)
	is.Equal(v, "v1-beta")

	v, err = e.Evaluate("mathx.Twice(21)")
	is.NoErr(err)
	is.Equal(v, int64(42))

	v, err = e.Evaluate("mathx.Div(9, 2)")
	is.NoErr(err)
	is.Equal(v, int64(4))

	_, err = e.Evaluate("mathx.Div(1, 0)")
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "divide by zero"))

	// unexported fields and variadic methods are not visible
	_, err = e.Evaluate("mathx.secret")
	is.True(err != nil)
	_, err = e.Evaluate("mathx.Sum(1, 2)")
	is.True(err != nil)
}

func TestImportNarrowingOverflow(t *testing.T) {
	is := is.New(t)

	e := cel.NewEvaluator()
	is.NoErr(e.RegisterImport("mathx", mathx{}))
	_, err := e.Evaluate("mathx.Twice(9999999999)")
	is.True(err != nil)
}

func TestImportNil(t *testing.T) {
	is := is.New(t)
	is.True(cel.NewEvaluator().RegisterImport("nothing", nil) != nil)
}

func TestCollections(t *testing.T) {
	is := is.New(t)

	e := cel.NewEvaluator()
	v, err := e.Evaluate(`[1, 2, 3].map(x, x * 10)`)
	is.NoErr(err)
	is.Equal(v, []interface{}{int64(10), int64(20), int64(30)})

	v, err = e.Evaluate(`{"a": 1, "b": [true, null]}`)
	is.NoErr(err)
	is.Equal(v, map[string]interface{}{
		"a": int64(1),
		"b": []interface{}{true, nil},
	})

	v, err = e.Evaluate(`{1: "one"}`)
	is.NoErr(err)
	is.Equal(v, map[interface{}]interface{}{int64(1): "one"})

	v, err = e.Evaluate("null")
	is.NoErr(err)
	is.Equal(v, nil)
}

func TestCompileOnceEvaluateMany(t *testing.T) {
	is := is.New(t)

	e := cel.NewEvaluator()
	e.SetVariable("n", 0)
	p, err := e.Compile("n + 1")
	is.NoErr(err)

	for i := 0; i < 5; i++ {
		e.SetVariable("n", i)
		v, err := e.EvaluateProgram(p)
		is.NoErr(err)
		is.Equal(v, int64(i+1))
	}
}

func TestCompileError(t *testing.T) {
	is := is.New(t)

	_, err := cel.NewEvaluator().Compile("1 +")
	is.True(err != nil)

	_, err = cel.NewEvaluator().EvaluateProgram(nil)
	is.True(err != nil)
}

func TestProtoVariable(t *testing.T) {
	is := is.New(t)

	e := cel.NewEvaluator()
	e.RegisterProtoTypes(&timestamppb.Timestamp{})
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e.SetVariable("ts", timestamppb.New(ts))

	v, err := e.Evaluate("ts.getFullYear()")
	is.NoErr(err)
	is.Equal(v, int64(2024))
}

func TestConcurrentEvaluate(t *testing.T) {
	is := is.New(t)

	e := cel.NewEvaluator(cel.CacheSize(4))
	is.NoErr(e.RegisterImport("mathx", mathx{}))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			expr := fmt.Sprintf("mathx.Twice(%d)", i%8)
			v, err := e.Evaluate(expr)
			if err != nil {
				errs <- err
				return
			}
			if v != int64(2*(i%8)) {
				errs <- fmt.Errorf("%s = %v", expr, v)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		is.NoErr(err)
	}
}

func ExampleEvaluator_Evaluate() {
	e := cel.NewEvaluator()
	e.SetVariable("price", 12.5)
	e.SetVariable("qty", 4)

	v, err := e.Evaluate("price * double(qty)")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(v)
	// Output: 50
}
