package dyneval

import (
	"errors"
	"fmt"
	"go/scanner"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Severity of a diagnostic.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Diagnostic is one issue reported while compiling user source.
// Line and Column are 1-based; zero means the position is unknown.
type Diagnostic struct {
	Severity Severity `json:"severity" msgpack:"severity"`
	Message  string   `json:"message" msgpack:"message"`
	Line     int      `json:"line,omitempty" msgpack:"line"`
	Column   int      `json:"column,omitempty" msgpack:"column"`
	// Source names the stage that reported the diagnostic: parse, lint,
	// compile, init, macro, refs or options.
	Source string `json:"source" msgpack:"source"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Diagnostics is the ordered result of a compilation. It is data, not an
// error: a compile that fails because of the user's source returns
// Diagnostics with at least one Error entry and a nil error.
type Diagnostics []Diagnostic

// HasErrors reports whether any entry has Error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns only the Error entries.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the Warning entries.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == Warning {
			out = append(out, d)
		}
	}
	return out
}

// Err joins the Error entries into a single error, for callers that want
// to treat a failed compile as an error. It returns nil when there are none.
func (ds Diagnostics) Err() error {
	errs := ds.Errors()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, d := range errs {
		msgs[i] = d.String()
	}
	return errors.New(strings.Join(msgs, "\n"))
}

// escalate turns every warning into an error.
func (ds Diagnostics) escalate() Diagnostics {
	out := make(Diagnostics, len(ds))
	for i, d := range ds {
		if d.Severity == Warning {
			d.Severity = Error
			d.Message = "(warning as error) " + d.Message
		}
		out[i] = d
	}
	return out
}

// String renders the diagnostics as a table.
func (ds Diagnostics) String() string {
	tw := table.NewWriter()
	tw.SetTitle("COMPILE DIAGNOSTICS")
	tw.AppendHeader(table.Row{"Loc", "Severity", "Stage", "Message"})
	for _, d := range ds {
		loc := ""
		if d.Line > 0 {
			loc = fmt.Sprintf("%d:%d", d.Line, d.Column)
		}
		tw.AppendRow(table.Row{loc, d.Severity, d.Source, d.Message})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, WidthMax: 80},
	})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

// fromError converts an error from the Go parser or the interpreter into
// diagnostics, keeping positions where the error carries them.
func fromError(source string, err error) Diagnostics {
	var list scanner.ErrorList
	if errors.As(err, &list) {
		out := make(Diagnostics, 0, len(list))
		for _, e := range list {
			out = append(out, Diagnostic{
				Severity: Error,
				Message:  e.Msg,
				Line:     e.Pos.Line,
				Column:   e.Pos.Column,
				Source:   source,
			})
		}
		return out
	}
	return Diagnostics{positioned(source, err.Error())}
}

// positioned parses a "file:line:col: message" prefix, as the interpreter
// produces, into a diagnostic.
func positioned(source, msg string) Diagnostic {
	d := Diagnostic{Severity: Error, Message: msg, Source: source}
	parts := strings.SplitN(msg, ":", 4)
	if len(parts) == 4 {
		var line, col int
		if _, err := fmt.Sscanf(parts[1]+" "+parts[2], "%d %d", &line, &col); err == nil {
			d.Line, d.Column = line, col
			d.Message = strings.TrimSpace(parts[3])
		}
	}
	return d
}
