package macro_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"

	"github.com/ezachrisen/dyneval/macro"
)

func TestCallSnippet(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "DOUBLE", Arity: 1, Template: "(<p1>*2)"})
	out, err := e.Parse("x=DOUBLE(5)")
	is.NoErr(err)
	is.Equal(out, "x=(5*2)")
}

func TestPlaceholderSnippet(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "#TODAY#", Template: "2024-01-01", Placeholder: true})

	out, err := e.Parse("date is #TODAY#")
	is.NoErr(err)
	is.Equal(out, "date is 2024-01-01")

	out, err = e.Parse("date is #today#, again #ToDay#")
	is.NoErr(err)
	is.Equal(out, "date is 2024-01-01, again 2024-01-01")
}

func TestCallNameIsCaseInsensitive(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "DOUBLE", Arity: 1, Template: "(<p1>*2)"})
	out, err := e.Parse("double(3) + Double(4)")
	is.NoErr(err)
	is.Equal(out, "(3*2) + (4*2)")
}

func TestMultipleArguments(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "CLAMP", Arity: 3, Template: "min(max(<p1>,<p2>),<p3>)"})
	out, err := e.Parse("v = CLAMP(x,0,10);")
	is.NoErr(err)
	is.Equal(out, "v = min(max(x,0),10);")
}

func TestNestedParenthesesStayInArgument(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "SQ", Arity: 2, Template: "(<p1>)*(<p2>)"})
	out, err := e.Parse("SQ(f(a, b),g((c)))")
	is.NoErr(err)
	is.Equal(out, "(f(a, b))*(g((c)))")
}

func TestArityZeroUsesTemplateVerbatim(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "NOW", Template: "time.Now()"})
	out, err := e.Parse("t := NOW()")
	is.NoErr(err)
	is.Equal(out, "t := time.Now()")
}

func TestTemplateWithoutMarkersIgnoresArguments(t *testing.T) {
	is := is.New(t)

	// <pre> is not a marker
	e := macro.New(macro.Snippet{Name: "TAG", Arity: 1, Template: "<pre>x</pre>"})
	out, err := e.Parse("s := TAG(a, b)")
	is.NoErr(err)
	is.Equal(out, "s := <pre>x</pre>")
}

// Identical calls are all rewritten by one substitution step.
func TestIdenticalCallsRewrittenTogether(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "INC", Arity: 1, Template: "(<p1>+1)"})
	out, err := e.Parse("a=INC(x); b=INC(y); c=INC(x)")
	is.NoErr(err)
	is.Equal(out, "a=(x+1); b=(y+1); c=(x+1)")
}

// A snippet does not re-expand its own output within one Parse call.
func TestNestedSameSnippetExpandsOncePerPass(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "DOUBLE", Arity: 1, Template: "(<p1>*2)"})
	out, err := e.Parse("DOUBLE(DOUBLE(2))")
	is.NoErr(err)
	is.Equal(out, "(DOUBLE(2)*2)")

	// A second pass reduces the remaining call.
	out, err = e.Parse(out)
	is.NoErr(err)
	is.Equal(out, "((2*2)*2)")
}

func TestSelfReferencingTemplateTerminates(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "F", Arity: 1, Template: "F(<p1>)"})
	out, err := e.Parse("F(1)")
	is.NoErr(err)
	is.Equal(out, "F(1)")
}

// Later snippets see text rewritten by earlier ones.
func TestRegistrationOrder(t *testing.T) {
	is := is.New(t)

	e := macro.New(
		macro.Snippet{Name: "TWICE", Arity: 1, Template: "DOUBLE(<p1>)"},
		macro.Snippet{Name: "DOUBLE", Arity: 1, Template: "(<p1>*2)"},
	)
	out, err := e.Parse("TWICE(7)")
	is.NoErr(err)
	is.Equal(out, "(7*2)")

	// Reversed: DOUBLE runs first and never sees the output of TWICE.
	r := macro.New(
		macro.Snippet{Name: "DOUBLE", Arity: 1, Template: "(<p1>*2)"},
		macro.Snippet{Name: "TWICE", Arity: 1, Template: "DOUBLE(<p1>)"},
	)
	out, err = r.Parse("TWICE(7)")
	is.NoErr(err)
	is.Equal(out, "DOUBLE(7)")
}

func TestUnbalancedCall(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "DOUBLE", Arity: 1, Template: "(<p1>*2)"})
	_, err := e.Parse("x = DOUBLE((5)")
	is.True(errors.Is(err, macro.ErrUnbalanced))
}

func TestArityMismatch(t *testing.T) {
	is := is.New(t)

	e := macro.New(macro.Snippet{Name: "ADD", Arity: 2, Template: "<p1>+<p2>"})
	_, err := e.Parse("ADD(1)")
	is.True(errors.Is(err, macro.ErrArity))
}

func TestMarkersAboveNine(t *testing.T) {
	is := is.New(t)

	tmpl := "<p10>-<p1>"
	e := macro.New(macro.Snippet{Name: "T", Arity: 10, Template: tmpl})
	out, err := e.Parse("T(a,b,c,d,e,f,g,h,i,j)")
	is.NoErr(err)
	is.Equal(out, "j-a")
}

func TestLoadBytes(t *testing.T) {
	is := is.New(t)

	src := `
snippet "DOUBLE" {
  arity    = 1
  template = "(<p1>*2)"
}

placeholder "#TODAY#" {
  template = "2024-01-01"
}
`
	snippets, diags := macro.LoadBytes([]byte(src), "lib.hcl")
	is.True(!diags.HasErrors())
	is.Equal(len(snippets), 2)
	is.Equal(snippets[0], macro.Snippet{Name: "DOUBLE", Arity: 1, Template: "(<p1>*2)"})
	is.True(snippets[1].Placeholder)

	out, err := macro.New(snippets...).Parse("DOUBLE(1) on #TODAY#")
	is.NoErr(err)
	is.Equal(out, "(1*2) on 2024-01-01")
}

func TestLoadBytesRejectsNegativeArity(t *testing.T) {
	is := is.New(t)

	_, diags := macro.LoadBytes([]byte(`snippet "X" {
  arity = -1
  template = "x"
}`), "bad.hcl")
	is.True(diags.HasErrors())
}

func ExampleExpander_Parse() {
	e := macro.New(
		macro.Snippet{Name: "DOUBLE", Arity: 1, Template: "(<p1>*2)"},
		macro.Snippet{Name: "#TODAY#", Template: "2024-01-01", Placeholder: true},
	)
	out, err := e.Parse("x=DOUBLE(5) // #today#")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(out)
	// Output: x=(5*2) // 2024-01-01
}
