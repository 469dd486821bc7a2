package dyneval

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"github.com/traefik/yaegi/stdlib/syscall"
	"github.com/traefik/yaegi/stdlib/unsafe"

	"github.com/ezachrisen/dyneval/internal/logctx"
	"github.com/ezachrisen/dyneval/macro"
	"github.com/ezachrisen/dyneval/placeholder"
	"github.com/ezachrisen/dyneval/refs"
)

const (
	DefaultEntryNamespace = "scripts"
	DefaultEntryTypeName  = "Entry"

	// scriptFile is the file name compiled source is reported under.
	scriptFile = "script.go"
)

// fixedReferences are always available to a script and need no resolving.
// Naming one of them again is reported as a duplicate.
var fixedReferences = []string{"stdlib", scriptapiPath}

// CompileOptions control a single compilation.
type CompileOptions struct {
	// EntryNamespace is the package that holds the entry type.
	// Default: scripts
	EntryNamespace string

	// EntryTypeName is the type the host instantiates.
	// Default: Entry
	EntryTypeName string

	// ExtraReferences are reference names added to those found in
	// //@: directives.
	ExtraReferences []string

	// ForceRecompile makes Host.GetOrCompile compile even when the
	// identity is already cached, replacing the cached instance.
	ForceRecompile bool

	// Placeholders, when set, are applied to the source after snippet
	// expansion and before references are collected.
	Placeholders *placeholder.Registry

	// SearchPaths are probed for bare reference names before the
	// default locations.
	SearchPaths []string

	// WarningsAsErrors escalates every warning to an error.
	WarningsAsErrors bool

	// Variables seed the variable bag of every instance created from
	// this compilation.
	Variables map[string]interface{}
}

func (o CompileOptions) withDefaults() CompileOptions {
	if o.EntryNamespace == "" {
		o.EntryNamespace = DefaultEntryNamespace
	}
	if o.EntryTypeName == "" {
		o.EntryTypeName = DefaultEntryTypeName
	}
	return o
}

// validate reports entry names that are not Go identifiers.
func (o CompileOptions) validate() Diagnostics {
	var diags Diagnostics
	for _, n := range []string{o.EntryNamespace, o.EntryTypeName} {
		if !token.IsIdentifier(n) {
			diags = append(diags, Diagnostic{
				Severity: Error,
				Message:  fmt.Sprintf("entry name %q is not an identifier", n),
				Source:   "options",
			})
		}
	}
	return diags
}

// EntryName is the qualified name of the entry type, e.g. scripts.Entry.
func (o CompileOptions) EntryName() string {
	o = o.withDefaults()
	return o.EntryNamespace + "." + o.EntryTypeName
}

// Compiler turns source text into a loaded module.
//
// A failure caused by the source itself is reported in the returned
// Diagnostics with a nil module and a nil error. The error is reserved for
// failures of the caller or the environment: a cancelled context, a failing
// placeholder producer, or a closed boundary.
type Compiler interface {
	Compile(ctx context.Context, src string, opts CompileOptions, b *Boundary) (*Module, Diagnostics, error)
}

// See the functional definitions below for the meaning.
type CompilerOptions struct {
	Logger      *slog.Logger
	Macros      *macro.Expander
	SearchPaths []string
	Stdout      io.Writer
	Stderr      io.Writer
}

type CompilerOption func(f *CompilerOptions)

func applyCompilerOptions(o *CompilerOptions, opts ...CompilerOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// Logger used when the context carries none.
// Default: slog.Default()
func CompilerLogger(l *slog.Logger) CompilerOption {
	return func(f *CompilerOptions) {
		f.Logger = l
	}
}

// Expand snippets in the source before placeholders are applied.
// Default: no expansion
func Macros(e *macro.Expander) CompilerOption {
	return func(f *CompilerOptions) {
		f.Macros = e
	}
}

// Search these directories for bare reference names, after the
// directories given in CompileOptions.SearchPaths.
func SearchPaths(dirs ...string) CompilerOption {
	return func(f *CompilerOptions) {
		f.SearchPaths = append(f.SearchPaths, dirs...)
	}
}

// Send interpreted programs' standard output and error here.
// Default: discarded
func Output(stdout, stderr io.Writer) CompilerOption {
	return func(f *CompilerOptions) {
		f.Stdout = stdout
		f.Stderr = stderr
	}
}

// SourceCompiler compiles Go source with an embedded interpreter. Each
// compilation gets its own interpreter, so modules never share state.
type SourceCompiler struct {
	opts CompilerOptions
}

// NewCompiler returns a SourceCompiler.
func NewCompiler(opts ...CompilerOption) *SourceCompiler {
	c := &SourceCompiler{
		opts: CompilerOptions{Stdout: io.Discard, Stderr: io.Discard},
	}
	applyCompilerOptions(&c.opts, opts...)
	return c
}

// Compile runs the full pipeline over src: snippet expansion, placeholder
// substitution, reference assembly and resolution, parsing, linting, and
// loading into a fresh interpreter. When b is not nil the module belongs to
// the boundary and is released when the boundary is closed.
func (c *SourceCompiler) Compile(ctx context.Context, src string, opts CompileOptions, b *Boundary) (*Module, Diagnostics, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if b != nil && b.Closed() {
		return nil, nil, fmt.Errorf("%w: %s", ErrBoundaryClosed, b.ID)
	}
	start := time.Now()
	opts = opts.withDefaults()
	log := logctx.FromContext(ctx, c.opts.Logger)

	if d := opts.validate(); d != nil {
		return nil, d, nil
	}

	text := src
	if c.opts.Macros != nil {
		var err error
		text, err = c.opts.Macros.Parse(text)
		if err != nil {
			return nil, Diagnostics{{Severity: Error, Message: err.Error(), Source: "macro"}}, nil
		}
	}

	text, err := opts.Placeholders.Apply(text)
	if err != nil {
		return nil, nil, err
	}

	names, diags := referenceSet(text, opts.ExtraReferences)

	resolver := refs.NewResolver(append(append([]string{}, opts.SearchPaths...), c.opts.SearchPaths...)...)
	mounted, missing, err := refs.Mount(resolver.Resolve(names))
	if err != nil {
		diags = append(diags, Diagnostic{Severity: Error, Message: err.Error(), Source: "refs"})
		return nil, diags, nil
	}

	i := interp.New(interp.Options{
		GoPath:               ".",
		SourcecodeFilesystem: mounted,
		Stdout:               c.opts.Stdout,
		Stderr:               c.opts.Stderr,
	})
	for _, exports := range symbolSets(text) {
		if err := i.Use(exports); err != nil {
			return nil, nil, fmt.Errorf("loading symbols: %w", err)
		}
	}

	file, err := parser.ParseFile(i.FileSet(), scriptFile, text, parser.AllErrors|parser.ParseComments)
	if err != nil {
		diags = append(diags, fromError("parse", err)...)
		return nil, append(diags, unresolved(nil, nil, missing)...), nil
	}

	diags = append(diags, unresolved(i.FileSet(), file, missing)...)

	warnings, err := lint(ctx, []byte(text))
	if err != nil {
		log.Warn("lint skipped", "error", err)
	}
	diags = append(diags, warnings...)

	if opts.WarningsAsErrors {
		diags = diags.escalate()
	}
	if diags.HasErrors() {
		return nil, diags, nil
	}

	if stage, err := load(i, file); err != nil {
		return nil, append(diags, fromError(stage, err)...), nil
	}

	m := &Module{
		ID:          uuid.NewString(),
		Namespace:   opts.EntryNamespace,
		TypeName:    opts.EntryTypeName,
		Source:      src,
		Diagnostics: diags,
		Created:     time.Now(),
		interp:      i,
		ctors:       map[string]*constructor{},
	}
	if b != nil {
		if err := b.adopt(m); err != nil {
			return nil, nil, err
		}
	}

	log.Debug("compiled module",
		"module", m.ID,
		"size", humanize.Bytes(uint64(len(text))),
		"references", len(names),
		"warnings", len(diags.Warnings()),
		"elapsed", time.Since(start))
	return m, diags, nil
}

// referenceSet assembles the bare reference names for a compilation:
// the extra references followed by the directive names. A name that repeats
// an earlier one, or one of the fixed references, yields a warning.
func referenceSet(text string, extra []string) ([]string, Diagnostics) {
	seen := map[string]bool{}
	for _, r := range fixedReferences {
		seen[r] = true
	}

	var names []string
	var diags Diagnostics
	for _, n := range append(append([]string{}, extra...), refs.ScanDirectives(text)...) {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if seen[n] {
			diags = append(diags, Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("duplicate reference %q", n),
				Source:   "refs",
			})
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	return names, diags
}

// symbolSets returns the binary packages a script may import: the standard
// library and scriptapi always, unsafe and syscall only when the source
// imports them.
func symbolSets(text string) []interp.Exports {
	sets := []interp.Exports{stdlib.Symbols, Symbols}
	if strings.Contains(text, `"unsafe"`) {
		sets = append(sets, unsafe.Symbols)
	}
	if strings.Contains(text, `"syscall"`) {
		sets = append(sets, syscall.Symbols)
	}
	return sets
}

// unresolved reports each reference that could not be found, at the
// position of the import that uses it when there is one.
func unresolved(fset *token.FileSet, file *ast.File, missing []refs.Reference) Diagnostics {
	var diags Diagnostics
	for _, r := range missing {
		d := Diagnostic{
			Severity: Error,
			Message:  fmt.Sprintf("reference %q could not be resolved", r.Name),
			Source:   "refs",
		}
		if file == nil {
			diags = append(diags, d)
			continue
		}
		for _, imp := range file.Imports {
			if p, err := strconv.Unquote(imp.Path.Value); err == nil && p == r.Name {
				d.Message = fmt.Sprintf("import %q: reference could not be resolved", r.Name)
				pos := fset.Position(imp.Pos())
				d.Line, d.Column = pos.Line, pos.Column
				break
			}
		}
		diags = append(diags, d)
	}
	return diags
}

// load compiles and runs the parsed file. It returns the stage that failed,
// and turns an interpreter panic into an error of that stage.
func load(i *interp.Interpreter, file *ast.File) (stage string, err error) {
	stage = "compile"
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interpreter panic: %v", r)
		}
	}()
	prog, err := i.CompileAST(file)
	if err != nil {
		return stage, err
	}
	stage = "init"
	_, err = i.Execute(prog)
	return stage, err
}
