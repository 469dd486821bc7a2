package macro

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// libraryFile is the root schema of a snippet library:
//
//	snippet "DOUBLE" {
//	  arity    = 1
//	  template = "(<p1>*2)"
//	}
//
//	placeholder "#TODAY#" {
//	  template = "2024-01-01"
//	}
type libraryFile struct {
	Snippets     []*hclSnippet     `hcl:"snippet,block"`
	Placeholders []*hclPlaceholder `hcl:"placeholder,block"`
}

type hclSnippet struct {
	Name     string `hcl:"name,label"`
	Arity    int    `hcl:"arity,optional"`
	Template string `hcl:"template"`
}

type hclPlaceholder struct {
	Name     string `hcl:"name,label"`
	Template string `hcl:"template"`
}

// LoadFile reads a snippet library written in HCL. Snippets are returned in
// file order, call-style snippets before placeholders.
func LoadFile(path string) ([]Snippet, hcl.Diagnostics) {
	f, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, diags
	}
	return decode(f.Body)
}

// LoadBytes parses a snippet library held in memory. filename is used in diagnostics.
func LoadBytes(src []byte, filename string) ([]Snippet, hcl.Diagnostics) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}
	return decode(f.Body)
}

func decode(body hcl.Body) ([]Snippet, hcl.Diagnostics) {
	var lib libraryFile
	diags := gohcl.DecodeBody(body, nil, &lib)
	if diags.HasErrors() {
		return nil, diags
	}

	out := make([]Snippet, 0, len(lib.Snippets)+len(lib.Placeholders))
	for _, s := range lib.Snippets {
		if s.Arity < 0 {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid snippet arity",
				Detail:   "snippet " + s.Name + " has a negative arity",
			})
			continue
		}
		out = append(out, Snippet{Name: s.Name, Arity: s.Arity, Template: s.Template})
	}
	for _, p := range lib.Placeholders {
		out = append(out, Snippet{Name: p.Name, Template: p.Template, Placeholder: true})
	}
	if diags.HasErrors() {
		return nil, diags
	}
	return out, diags
}
