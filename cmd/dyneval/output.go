package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"

	"github.com/ezachrisen/dyneval"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	okColor      = color.New(color.FgGreen)
	faintColor   = color.New(color.Faint)
)

// printDiagnostics writes one line per diagnostic in the file:line:col form
// editors understand, followed by a summary.
func printDiagnostics(w io.Writer, file string, diags dyneval.Diagnostics) {
	for _, d := range diags {
		pos := file
		if d.Line > 0 {
			pos = fmt.Sprintf("%s:%d:%d", file, d.Line, d.Column)
		}
		sev := warningColor.Sprint(d.Severity)
		if d.Severity == dyneval.Error {
			sev = errorColor.Sprint(d.Severity)
		}
		fmt.Fprintf(w, "%s: %s: %s %s\n", pos, sev, d.Message, faintColor.Sprintf("[%s]", d.Source))
	}
}

func printSummary(w io.Writer, file string, diags dyneval.Diagnostics) {
	errs, warns := len(diags.Errors()), len(diags.Warnings())
	if errs == 0 {
		fmt.Fprintf(w, "%s %s (%s)\n", okColor.Sprint("ok"), file, plural(warns, "warning"))
		return
	}
	fmt.Fprintf(w, "%s %s (%s, %s)\n", errorColor.Sprint("FAIL"), file, plural(errs, "error"), plural(warns, "warning"))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// printValue writes v as indented JSON, or with %v when it cannot be encoded.
func printValue(w io.Writer, v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%v\n", v)
		return
	}
	fmt.Fprintln(w, string(b))
}

// parseValue interprets a command-line value as JSON when it parses and as
// a plain string otherwise, so 42, true and [1,2] keep their types.
func parseValue(s string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return normalize(v)
}

// normalize turns whole numbers decoded from JSON into int64.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
	case []interface{}:
		for i := range x {
			x[i] = normalize(x[i])
		}
	case map[string]interface{}:
		for k := range x {
			x[k] = normalize(x[k])
		}
	}
	return v
}

// parseVars parses name=value pairs.
func parseVars(pairs []string) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("variable %q: expected name=value", p)
		}
		vars[k] = parseValue(v)
	}
	return vars, nil
}
