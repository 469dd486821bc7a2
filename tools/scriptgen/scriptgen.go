// Package scriptgen renders the skeleton of a new script: a package holding
// an entry type with stub methods, ready to be filled in and compiled.
//
// Note: the rendering approach follows PaceDev's OTO framework.
package scriptgen

import (
	"go/token"
	"html/template"
	"strings"

	"github.com/gobuffalo/plush"
	"github.com/markbates/inflect"
	"github.com/pkg/errors"
	"golang.org/x/tools/imports"
	"mvdan.cc/gofumpt/format"

	"github.com/ezachrisen/dyneval"
	"github.com/ezachrisen/dyneval/refs"
)

// Skeleton describes the script to generate.
type Skeleton struct {
	// Name is a human name such as "order discount". It becomes the
	// doc comment and, camelized, the suggested file name.
	Name string

	// Namespace is the package name.
	// Default: scripts
	Namespace string

	// TypeName is the entry type.
	// Default: Entry
	TypeName string

	// Methods are stub methods to add. Names are camelized, so
	// "apply discount" becomes ApplyDiscount.
	Methods []string

	// References become //@: directives at the top of the file.
	References []string
}

// method is a stub as seen by the template.
type method struct {
	Name string
	Doc  string
}

// FileName returns the suggested file name, e.g. order_discount.go.
func (s Skeleton) FileName() string {
	n := inflect.Underscore(inflect.Camelize(s.Name))
	if n == "" {
		n = "script"
	}
	return n + ".go"
}

// Render returns the formatted source of the skeleton.
func Render(s Skeleton) ([]byte, error) {
	if s.Namespace == "" {
		s.Namespace = dyneval.DefaultEntryNamespace
	}
	if s.TypeName == "" {
		s.TypeName = dyneval.DefaultEntryTypeName
	}
	if !token.IsIdentifier(s.Namespace) || !token.IsIdentifier(s.TypeName) {
		return nil, errors.Errorf("invalid namespace %q or type %q", s.Namespace, s.TypeName)
	}

	var methods []method
	seen := map[string]bool{}
	for _, m := range s.Methods {
		name := inflect.Camelize(strings.ReplaceAll(strings.TrimSpace(m), " ", "_"))
		if !token.IsIdentifier(name) {
			return nil, errors.Errorf("invalid method name %q", m)
		}
		if seen[name] {
			return nil, errors.Errorf("duplicate method %s", name)
		}
		seen[name] = true
		methods = append(methods, method{Name: name, Doc: strings.ToLower(inflect.Humanize(inflect.Underscore(name)))})
	}

	tpl, err := plush.Parse(skeletonTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "parsing template")
	}
	ctx := plush.NewContext()
	ctx.Set("directive", refs.DirectivePrefix)
	ctx.Set("references", s.References)
	ctx.Set("namespace", s.Namespace)
	ctx.Set("typeName", s.TypeName)
	ctx.Set("receiver", receiver(s.TypeName))
	ctx.Set("name", s.Name)
	ctx.Set("methods", methods)
	ctx.Set("scriptapi", "github.com/ezachrisen/dyneval/scriptapi")
	ctx.Set("text", func(v string) template.HTML { return template.HTML(v) })
	out, err := tpl.Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "rendering template")
	}

	b, err := imports.Process(s.FileName(), []byte(out), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "formatting generated source\n%s", out)
	}
	b, err = format.Source(b, format.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "gofumpt")
	}
	return b, nil
}

func receiver(typeName string) string {
	return strings.ToLower(typeName[:1])
}

const skeletonTemplate = `<%= for (r) in references { %><%= text(directive) %><%= text(r) %>
<% } %>
<%= if (name != "") { %>// Package <%= namespace %> implements <%= text(name) %>.
<% } %>package <%= namespace %>

import (
	"errors"

	"<%= scriptapi %>"
)

var errNotImplemented = errors.New("not implemented")

// <%= typeName %> is created once per instance and keeps its state between calls.
type <%= typeName %> struct {
	scriptapi.Base
}
<%= for (m) in methods { %>
// <%= m.Name %> handles <%= text(m.Doc) %>.
func (<%= receiver %> *<%= typeName %>) <%= m.Name %>(args ...interface{}) (interface{}, error) {
	return nil, errNotImplemented
}
<% } %>`
