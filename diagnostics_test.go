package dyneval_test

import (
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ezachrisen/dyneval"
)

func TestDiagnostics(t *testing.T) {
	is := is.New(t)

	ds := dyneval.Diagnostics{
		{Severity: dyneval.Warning, Message: "duplicate reference \"mathx\"", Source: "refs"},
		{Severity: dyneval.Error, Message: "expected '}'", Line: 9, Column: 2, Source: "parse"},
	}
	is.True(ds.HasErrors())
	is.Equal(len(ds.Errors()), 1)
	is.Equal(len(ds.Warnings()), 1)
	is.Equal(ds.Err().Error(), "9:2: error: expected '}'")

	s := ds.String()
	is.True(strings.Contains(s, "COMPILE DIAGNOSTICS"))
	is.True(strings.Contains(s, "9:2"))
	is.True(strings.Contains(s, "duplicate reference"))
}

func TestDiagnosticsNoErrors(t *testing.T) {
	is := is.New(t)

	var ds dyneval.Diagnostics
	is.True(!ds.HasErrors())
	is.NoErr(ds.Err())

	ds = append(ds, dyneval.Diagnostic{Severity: dyneval.Warning, Message: "w"})
	is.True(!ds.HasErrors())
	is.Equal(ds[0].String(), "warning: w")
}
