// Package placeholder holds the key → text-producer map consulted once per
// compilation to rewrite placeholder keys in raw source.
//
// The registry is owned by the application and passed explicitly to the
// compiler; there is no package-level registry.
package placeholder

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gobuffalo/plush"
)

// Producer returns the text that replaces a key.
type Producer func() (string, error)

// Registry maps placeholder keys to producers. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	producers map[string]Producer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{producers: map[string]Producer{}}
}

// Register adds or replaces the producer for key.
func (r *Registry) Register(key string, p Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.producers == nil {
		r.producers = map[string]Producer{}
	}
	r.producers[key] = p
}

// Static registers a fixed replacement text.
func (r *Registry) Static(key, text string) {
	r.Register(key, func() (string, error) { return text, nil })
}

// Template registers a plush template rendered each time the key is applied.
// data is available to the template as variables.
func (r *Registry) Template(key, tmpl string, data map[string]interface{}) {
	r.Register(key, func() (string, error) {
		ctx := plush.NewContext()
		for k, v := range data {
			ctx.Set(k, v)
		}
		return plush.Render(tmpl, ctx)
	})
}

// Remove deletes key.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, key)
}

// Keys returns the registered keys, longest first, ties in lexical order.
// This is also the order Apply substitutes them in, so a key that is a
// prefix of another never clobbers it.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.producers))
	for k := range r.producers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Apply replaces every occurrence of every key in text. Each producer runs
// at most once per call, and only when its key occurs in text.
// A nil registry returns text unchanged.
func (r *Registry) Apply(text string) (string, error) {
	if r == nil {
		return text, nil
	}
	for _, k := range r.Keys() {
		if k == "" || !strings.Contains(text, k) {
			continue
		}
		r.mu.RLock()
		p := r.producers[k]
		r.mu.RUnlock()
		if p == nil {
			continue
		}
		v, err := p()
		if err != nil {
			return "", fmt.Errorf("placeholder %s: %w", k, err)
		}
		text = strings.ReplaceAll(text, k, v)
	}
	return text, nil
}
