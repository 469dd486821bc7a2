// Package cel evaluates single expressions written in Google's Common
// Expression Language (CEL).
//
// See https://github.com/google/cel-go and https://github.com/google/cel-spec
// for the expression language itself.
//
// Imports
//
// Any Go value can be imported under a name. Its exported methods become
// functions callable as name.Method(args) and its exported fields become
// constants readable as name.Field:
//
//     type mathx struct{ Pi float64 }
//     func (mathx) Sqrt(x float64) float64 { return math.Sqrt(x) }
//
//     e := cel.NewEvaluator()
//     e.RegisterImport("mathx", mathx{Pi: math.Pi})
//     v, err := e.Evaluate("mathx.Sqrt(16.0) + mathx.Pi")
//
// Methods that return (T, error) surface the error as an evaluation error.
// Variadic methods are not imported.
//
// Variables
//
// Variables set with SetVariable are visible to every later evaluation until
// removed. They are declared as dyn, so a variable can change type between
// evaluations without invalidating compiled expressions.
//
// Results
//
// Results are plain Go values: int64, uint64, float64, bool, string, []byte,
// time.Time, time.Duration, []interface{}, maps and proto messages. CEL null
// is returned as nil.
//
// Number literals
//
// A decimal literal must have a digit before the decimal point: 0.5 is
// accepted, .5 is rejected with ErrNumberFormat.
package cel
