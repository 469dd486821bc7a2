package cel

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	celgo "github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/protobuf/proto"
)

// ErrNumberFormat is returned for number literals without a digit before the decimal point.
var ErrNumberFormat = errors.New("a digit is required before the decimal point")

const defaultCacheSize = 512

// Evaluator compiles and evaluates single CEL expressions against a set of
// imports and named variables. It is safe for concurrent use.
type Evaluator struct {
	mu sync.RWMutex

	// imports in registration order, with their compiled declarations
	imports     map[string][]celgo.EnvOption
	importOrder []string
	protos      []proto.Message

	// vars holds the variable values. Every name is declared as dyn, so
	// the environment only needs rebuilding when the set of names changes.
	vars map[string]interface{}

	// env is nil when it must be rebuilt before the next compile.
	env *celgo.Env
	gen uint64

	programs *lru.Cache[string, *Program]
	opts     options
}

// Program is a compiled expression, ready to be evaluated repeatedly.
type Program struct {
	Expr string
	prg  celgo.Program
	gen  uint64
}

type options struct {
	cacheSize int
	logger    *slog.Logger
}

// Option configures an Evaluator.
type Option func(o *options)

// CacheSize sets how many compiled expressions Evaluate keeps.
// Default: 512
func CacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// Logger sets the logger used for debug output.
func Logger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewEvaluator returns an evaluator with no imports and no variables.
func NewEvaluator(opts ...Option) *Evaluator {
	o := options{cacheSize: defaultCacheSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize <= 0 {
		o.cacheSize = defaultCacheSize
	}
	cache, _ := lru.New[string, *Program](o.cacheSize)
	return &Evaluator{
		imports:  map[string][]celgo.EnvOption{},
		vars:     map[string]interface{}{},
		programs: cache,
		opts:     o,
	}
}

// RegisterImport makes v's exported methods callable as name.Method(...)
// and its exported fields readable as name.Field inside expressions.
// Registering the same name again replaces the earlier import.
func (e *Evaluator) RegisterImport(name string, v interface{}) error {
	decls, err := importDeclarations(name, reflect.ValueOf(v))
	if err != nil {
		return fmt.Errorf("importing %s: %w", name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.imports[name]; !ok {
		e.importOrder = append(e.importOrder, name)
	}
	e.imports[name] = decls
	e.invalidate()
	return nil
}

// RegisterProtoTypes makes protocol buffer message types usable in variables
// and in object construction inside expressions.
func (e *Evaluator) RegisterProtoTypes(msgs ...proto.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.protos = append(e.protos, msgs...)
	e.invalidate()
}

// SetVariable binds name to value for all subsequent evaluations.
func (e *Evaluator) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.vars[name]; !ok {
		e.invalidate()
	}
	e.vars[name] = value
}

// RemoveVariable unbinds name.
func (e *Evaluator) RemoveVariable(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.vars[name]; ok {
		delete(e.vars, name)
		e.invalidate()
	}
}

// ClearVariables unbinds every variable.
func (e *Evaluator) ClearVariables() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.vars) > 0 {
		e.vars = map[string]interface{}{}
		e.invalidate()
	}
}

// Variables returns a copy of the current bindings.
func (e *Evaluator) Variables() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot()
}

// Compile parses and checks expr, returning a handle that can be evaluated
// repeatedly without parsing again.
func (e *Evaluator) Compile(expr string) (*Program, error) {
	if err := checkNumbers(expr); err != nil {
		return nil, err
	}

	env, gen, err := e.environment()
	if err != nil {
		return nil, err
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compiling %q: %w", expr, iss.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("generating program %q: %w", expr, err)
	}
	return &Program{Expr: expr, prg: prg, gen: gen}, nil
}

// Evaluate compiles expr, or reuses a cached compilation, and evaluates it.
func (e *Evaluator) Evaluate(expr string) (interface{}, error) {
	e.mu.RLock()
	gen := e.gen
	e.mu.RUnlock()

	p, ok := e.programs.Get(expr)
	if !ok || p.gen != gen {
		var err error
		p, err = e.Compile(expr)
		if err != nil {
			return nil, err
		}
		e.programs.Add(expr, p)
	}
	return e.EvaluateProgram(p)
}

// EvaluateProgram evaluates a compiled handle against the current variables.
func (e *Evaluator) EvaluateProgram(p *Program) (interface{}, error) {
	if p == nil || p.prg == nil {
		return nil, errors.New("evaluating nil program")
	}

	e.mu.RLock()
	data := e.snapshot()
	e.mu.RUnlock()

	out, _, err := p.prg.Eval(data)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", p.Expr, err)
	}
	return native(out)
}

// environment returns the current CEL environment, rebuilding it if needed.
func (e *Evaluator) environment() (*celgo.Env, uint64, error) {
	e.mu.RLock()
	env, gen := e.env, e.gen
	e.mu.RUnlock()
	if env != nil {
		return env, gen, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.env != nil {
		return e.env, e.gen, nil
	}

	var opts []celgo.EnvOption
	for _, name := range e.importOrder {
		opts = append(opts, e.imports[name]...)
	}
	if len(e.protos) > 0 {
		types := make([]interface{}, 0, len(e.protos))
		for _, m := range e.protos {
			types = append(types, m)
		}
		opts = append(opts, celgo.Types(types...))
	}
	names := make([]string, 0, len(e.vars))
	for k := range e.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, n := range names {
		opts = append(opts, celgo.Variable(n, celgo.DynType))
	}

	env, err := celgo.NewEnv(opts...)
	if err != nil {
		return nil, 0, fmt.Errorf("building expression environment: %w", err)
	}
	e.env = env
	e.opts.logger.Debug("expression environment rebuilt",
		"imports", len(e.importOrder), "variables", len(names), "generation", e.gen)
	return e.env, e.gen, nil
}

// invalidate forces a rebuild before the next compile. Caller holds e.mu.
func (e *Evaluator) invalidate() {
	e.env = nil
	e.gen++
	e.programs.Purge()
}

// snapshot copies the variables. Caller holds e.mu.
func (e *Evaluator) snapshot() map[string]interface{} {
	m := make(map[string]interface{}, len(e.vars))
	for k, v := range e.vars {
		m[k] = v
	}
	return m
}

// checkNumbers rejects number literals such as .5 that lack a leading digit.
// String literals are skipped.
func checkNumbers(expr string) error {
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
		case c == '.' && i+1 < len(expr) && isDigit(expr[i+1]):
			if i == 0 || !isWord(expr[i-1]) {
				return fmt.Errorf("%w: offset %d in %q", ErrNumberFormat, i, expr)
			}
		}
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWord(c byte) bool {
	return isDigit(c) || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
