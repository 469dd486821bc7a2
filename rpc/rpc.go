// Package rpc exposes the host over HTTP as oto-style JSON services:
//
//	POST /oto/Scripts.Compile
//	POST /oto/Scripts.Execute
//	POST /oto/Scripts.Evict
//	POST /oto/Expressions.Evaluate
//	POST /oto/Macros.Expand
//
// Every response carries an error field; transport failures are reported
// through otohttp's error handler.
package rpc

import (
	"context"

	"github.com/ezachrisen/dyneval"
)

// Scripts compiles, caches and runs Go scripts.
type Scripts interface {
	Compile(context.Context, CompileRequest) (*CompileResponse, error)
	Execute(context.Context, ExecuteRequest) (*ExecuteResponse, error)
	Evict(context.Context, EvictRequest) (*EvictResponse, error)
}

// Expressions evaluates single CEL expressions.
type Expressions interface {
	Evaluate(context.Context, EvaluateRequest) (*EvaluateResponse, error)
}

// Macros expands snippets in text.
type Macros interface {
	Expand(context.Context, ExpandRequest) (*ExpandResponse, error)
}

type CompileRequest struct {
	// Identity to cache the instance under. Generated when empty.
	Identity         string `json:"identity"`
	Name             string `json:"name"`
	Source           string `json:"source"`
	Force            bool   `json:"force"`
	WarningsAsErrors bool   `json:"warningsAsErrors"`
}

type CompileResponse struct {
	Identity    string              `json:"identity"`
	OK          bool                `json:"ok"`
	Diagnostics dyneval.Diagnostics `json:"diagnostics"`
	Error       string              `json:"error,omitempty"`
}

type ExecuteRequest struct {
	Identity string        `json:"identity"`
	Method   string        `json:"method"`
	Args     []interface{} `json:"args"`
}

type ExecuteResponse struct {
	Result interface{} `json:"result"`
	Error  string      `json:"error,omitempty"`
}

type EvictRequest struct {
	Identity string `json:"identity"`
}

type EvictResponse struct {
	Evicted bool   `json:"evicted"`
	Error   string `json:"error,omitempty"`
}

type EvaluateRequest struct {
	Expression string                 `json:"expression"`
	Variables  map[string]interface{} `json:"variables"`
}

type EvaluateResponse struct {
	Value interface{} `json:"value"`
	Error string      `json:"error,omitempty"`
}

type ExpandRequest struct {
	Text string `json:"text"`
}

type ExpandResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}
