// Package scriptapi defines the capability every compiled entry type must
// provide to the host: a variable bag and a log sink.
//
// Scripts satisfy the capability by embedding Base:
//
//	package scripts
//
//	import "github.com/ezachrisen/dyneval/scriptapi"
//
//	type Entry struct {
//		scriptapi.Base
//	}
//
//	func (e *Entry) Greet(name string) string {
//		e.Log("greeting " + name)
//		return "hello " + name
//	}
package scriptapi

import (
	"sort"
	"sync"
)

// Capability is implemented by every entry type the host instantiates.
type Capability interface {
	// Env returns the instance's variable bag. The host seeds it with
	// the variables given in the compile options and binds its log sink.
	Env() *Env

	// Log writes a message to the instance's log sink.
	Log(msg string)
}

// Sink receives messages logged by a script.
type Sink func(msg string)

// Env is a concurrency-safe variable bag with an attached log sink.
// The zero value is ready to use; messages logged before a sink is
// bound are dropped.
type Env struct {
	mu   sync.RWMutex
	vars map[string]interface{}
	sink Sink
}

// Set stores the value under name, replacing any previous value.
func (e *Env) Set(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vars == nil {
		e.vars = map[string]interface{}{}
	}
	e.vars[name] = value
}

// Get returns the value stored under name.
func (e *Env) Get(name string) (interface{}, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[name]
	return v, ok
}

// Delete removes name from the bag.
func (e *Env) Delete(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vars, name)
}

// Names returns the variable names in sorted order.
func (e *Env) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.vars))
	for k := range e.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Bind attaches the log sink.
func (e *Env) Bind(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = s
}

func (e *Env) log(msg string) {
	e.mu.RLock()
	s := e.sink
	e.mu.RUnlock()
	if s != nil {
		s(msg)
	}
}

// Base implements Capability. Embed it in an entry type.
type Base struct {
	env Env
}

// Env returns the variable bag.
func (b *Base) Env() *Env {
	return &b.env
}

// Log sends msg to the bound sink.
func (b *Base) Log(msg string) {
	b.env.log(msg)
}
