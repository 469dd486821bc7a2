package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/ezachrisen/dyneval"
	"github.com/ezachrisen/dyneval/cel"
	"github.com/ezachrisen/dyneval/internal/logctx"
	"github.com/ezachrisen/dyneval/macro"
	"github.com/ezachrisen/dyneval/store"
)

// ScriptService implements Scripts on a Host. When Store is set, each source
// the host compiles and caches is saved with its report, and Execute compiles
// a stored script on demand when its identity is not cached.
type ScriptService struct {
	Host    *dyneval.Host
	Store   *store.Store
	Options dyneval.CompileOptions
	Logger  *slog.Logger
}

func (s *ScriptService) Compile(ctx context.Context, r CompileRequest) (*CompileResponse, error) {
	id := r.Identity
	if id == "" {
		id = dyneval.NewIdentity()
	}
	opts := s.Options
	opts.ForceRecompile = r.Force
	opts.WarningsAsErrors = opts.WarningsAsErrors || r.WarningsAsErrors
	log := logctx.FromContext(ctx, s.Logger)

	in, diags, err := s.Host.GetOrCompile(ctx, r.Source, id, opts, nil)
	if err != nil {
		return &CompileResponse{Identity: id, Error: err.Error()}, nil
	}
	ok := in != nil
	// Without Force a cached instance comes back as is; it may hold
	// other source than this request's.
	if ok && s.Store != nil && in.Module().Source == r.Source {
		if err := s.save(ctx, id, r.Name, in.Module()); err != nil {
			return nil, err
		}
	}
	log.Info("compile", "identity", id, "ok", ok, "diagnostics", len(diags))
	return &CompileResponse{Identity: id, OK: ok, Diagnostics: diags}, nil
}

// save stores source the host has compiled and cached. A source that
// failed to compile is never stored, so a restart reloads the last good one.
func (s *ScriptService) save(ctx context.Context, id, name string, m *dyneval.Module) error {
	if err := s.Store.Put(ctx, id, name, m.Source); err != nil {
		return err
	}
	return s.Store.RecordCompile(ctx, id, true, m.Diagnostics)
}

func (s *ScriptService) Execute(ctx context.Context, r ExecuteRequest) (*ExecuteResponse, error) {
	if err := s.load(ctx, r.Identity); err != nil {
		return &ExecuteResponse{Error: err.Error()}, nil
	}
	args := make([]interface{}, len(r.Args))
	for i, a := range r.Args {
		args[i] = normalize(a)
	}
	out, err := s.Host.Execute(ctx, r.Identity, r.Method, args...)
	if err != nil {
		return &ExecuteResponse{Error: err.Error()}, nil
	}
	v, err := jsonValue(out)
	if err != nil {
		return &ExecuteResponse{Error: err.Error()}, nil
	}
	return &ExecuteResponse{Result: v}, nil
}

// load compiles the stored script for identity if it is not cached.
func (s *ScriptService) load(ctx context.Context, identity string) error {
	if s.Store == nil {
		return nil
	}
	if _, ok := s.Host.Lookup(identity); ok {
		return nil
	}
	sc, err := s.Store.Get(ctx, identity)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, diags, err := s.Host.GetOrCompile(ctx, sc.Source, identity, s.Options, nil)
	if err != nil {
		return err
	}
	if diags.HasErrors() {
		return fmt.Errorf("stored script %s does not compile:\n%w", identity, diags.Err())
	}
	return nil
}

func (s *ScriptService) Evict(ctx context.Context, r EvictRequest) (*EvictResponse, error) {
	return &EvictResponse{Evicted: s.Host.Evict(r.Identity)}, nil
}

// ExpressionService implements Expressions on a cel.Evaluator. Request
// variables are bound for the duration of the call and removed afterwards;
// calls are serialised so they cannot see each other's variables.
type ExpressionService struct {
	Evaluator *cel.Evaluator

	mu sync.Mutex
}

func (s *ExpressionService) Evaluate(ctx context.Context, r EvaluateRequest) (*EvaluateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range r.Variables {
		s.Evaluator.SetVariable(k, normalize(v))
	}
	defer func() {
		for k := range r.Variables {
			s.Evaluator.RemoveVariable(k)
		}
	}()

	out, err := s.Evaluator.Evaluate(r.Expression)
	if err != nil {
		return &EvaluateResponse{Error: err.Error()}, nil
	}
	v, err := jsonValue(out)
	if err != nil {
		return &EvaluateResponse{Error: err.Error()}, nil
	}
	return &EvaluateResponse{Value: v}, nil
}

// MacroService implements Macros on an Expander.
type MacroService struct {
	Expander *macro.Expander
}

func (s *MacroService) Expand(ctx context.Context, r ExpandRequest) (*ExpandResponse, error) {
	out, err := s.Expander.Parse(r.Text)
	if err != nil {
		return &ExpandResponse{Error: err.Error()}, nil
	}
	return &ExpandResponse{Text: out}, nil
}

// normalize turns whole JSON numbers into int64 so that CEL integer
// arithmetic works on them, recursing into lists and objects.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	}
	return v
}

// jsonValue prepares a result for JSON encoding. Protocol buffer messages
// are encoded with their canonical JSON mapping.
func jsonValue(v interface{}) (interface{}, error) {
	if m, ok := v.(proto.Message); ok {
		b, err := protojson.Marshal(m)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v), nil
	}
	return v, nil
}
