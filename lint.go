package dyneval

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// lintRule is a tree-sitter query whose captures named @report become
// warnings. check, when set, filters matches on the captured node.
type lintRule struct {
	query   string
	message string
	check   func(n *sitter.Node, src []byte) bool
}

var lintRules = []lintRule{
	{
		// var x []T without a value
		query: `(var_declaration (var_spec name: (identifier) type: (slice_type)) @report)`,
		check: func(n *sitter.Node, _ []byte) bool {
			for i := 0; i < int(n.ChildCount()); i++ {
				if n.FieldNameForChild(i) == "value" {
					return false
				}
			}
			return true
		},
		message: "nil slice declaration; results crossing into the host are nil, not empty",
	},
	{
		query: `(call_expression function: (identifier) @report)`,
		check: func(n *sitter.Node, src []byte) bool {
			return n.Content(src) == "panic"
		},
		message: "panic in script code aborts the host call",
	},
	{
		query: `(import_spec path: (interpreted_string_literal) @report)`,
		check: func(n *sitter.Node, src []byte) bool {
			return n.Content(src) == `"unsafe"`
		},
		message: `import of "unsafe"`,
	},
}

// lint runs the tree-sitter rules over src and returns their findings as
// warnings. Syntax errors are left to the Go parser.
func lint(ctx context.Context, src []byte) (Diagnostics, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var diags Diagnostics
	for _, r := range lintRules {
		q, err := sitter.NewQuery([]byte(r.query), golang.GetLanguage())
		if err != nil {
			return nil, err
		}
		qc := sitter.NewQueryCursor()
		qc.Exec(q, tree.RootNode())
		for {
			m, ok := qc.NextMatch()
			if !ok {
				break
			}
			for _, c := range m.Captures {
				if r.check != nil && !r.check(c.Node, src) {
					continue
				}
				p := c.Node.StartPoint()
				diags = append(diags, Diagnostic{
					Severity: Warning,
					Message:  r.message,
					Line:     int(p.Row) + 1,
					Column:   int(p.Column) + 1,
					Source:   "lint",
				})
			}
		}
		qc.Close()
		q.Close()
	}
	return diags, nil
}
