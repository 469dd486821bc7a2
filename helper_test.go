package dyneval_test

import (
	"context"
	"sync/atomic"

	"github.com/ezachrisen/dyneval"
	"github.com/ezachrisen/dyneval/internal/logctx"
)

// -------------------------------------------------- COUNTING COMPILER
// countingCompiler wraps the real compiler and records how often it is called.
type countingCompiler struct {
	inner dyneval.Compiler
	calls atomic.Int64
}

func newCountingCompiler(opts ...dyneval.CompilerOption) *countingCompiler {
	opts = append([]dyneval.CompilerOption{dyneval.CompilerLogger(logctx.Discard())}, opts...)
	return &countingCompiler{inner: dyneval.NewCompiler(opts...)}
}

func (c *countingCompiler) Compile(ctx context.Context, src string, opts dyneval.CompileOptions, b *dyneval.Boundary) (*dyneval.Module, dyneval.Diagnostics, error) {
	c.calls.Add(1)
	return c.inner.Compile(ctx, src, opts, b)
}

// gatedCompiler holds compiles of the gate source until release is closed.
type gatedCompiler struct {
	inner   dyneval.Compiler
	gate    string
	started chan struct{}
	release chan struct{}
}

func newGatedCompiler(gate string) *gatedCompiler {
	return &gatedCompiler{
		inner:   dyneval.NewCompiler(dyneval.CompilerLogger(logctx.Discard())),
		gate:    gate,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *gatedCompiler) Compile(ctx context.Context, src string, opts dyneval.CompileOptions, b *dyneval.Boundary) (*dyneval.Module, dyneval.Diagnostics, error) {
	if src == c.gate {
		close(c.started)
		<-c.release
	}
	return c.inner.Compile(ctx, src, opts, b)
}

func newHost(c dyneval.Compiler) *dyneval.Host {
	return dyneval.NewHost(c, dyneval.HostLogger(logctx.Discard()))
}

const greeter = `package scripts

import (
	"errors"
	"strings"

	"github.com/ezachrisen/dyneval/scriptapi"
)

type Entry struct {
	scriptapi.Base
	calls int
}

func (e *Entry) Greet(name string) string {
	e.calls++
	e.Log("greeting " + name)
	return "hello " + strings.ToUpper(name)
}

func (e *Entry) Add(a, b int) int { return a + b }

func (e *Entry) Div(a, b int) (int, error) {
	if b == 0 {
		return 0, errors.New("divide by zero")
	}
	return a / b, nil
}

func (e *Entry) Calls() int { return e.calls }

func (e *Entry) Var(name string) interface{} {
	v, _ := e.Env().Get(name)
	return v
}

func (e *Entry) Boom() { panic("boom") }
`

// syntaxError is missing the closing brace of Greet.
const syntaxError = `package scripts

import "github.com/ezachrisen/dyneval/scriptapi"

type Entry struct {
	scriptapi.Base
}

func (e *Entry) Greet(name string) string {
	return "broken " + name
`

// noCapability defines the entry type without embedding scriptapi.Base.
const noCapability = `package scripts

type Entry struct{}

func (e *Entry) Greet(name string) string { return name }
`

// versioned returns a script whose Version method returns v.
func versioned(v string) string {
	return `package scripts

import "github.com/ezachrisen/dyneval/scriptapi"

type Entry struct {
	scriptapi.Base
}

func (e *Entry) Version() string { return "` + v + `" }
`
}
