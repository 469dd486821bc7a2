package dyneval

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Boundary owns modules that are loaded into it and releases them together.
// Instances created inside a boundary are never cached by a Host; once the
// boundary is closed every call on them fails with ErrBoundaryClosed and
// their interpreters can be reclaimed.
type Boundary struct {
	ID string

	mu      sync.Mutex
	modules []*Module
	closed  bool
}

// NewBoundary returns an open boundary.
func NewBoundary() *Boundary {
	return &Boundary{ID: uuid.NewString()}
}

func (b *Boundary) adopt(m *Module) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("%w: %s", ErrBoundaryClosed, b.ID)
	}
	m.boundary = b
	b.modules = append(b.modules, m)
	return nil
}

// Len returns the number of modules loaded into the boundary.
func (b *Boundary) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.modules)
}

// Closed reports whether Close has been called.
func (b *Boundary) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close releases every module in the boundary. It is safe to call more
// than once.
func (b *Boundary) Close() error {
	b.mu.Lock()
	mods := b.modules
	b.modules = nil
	b.closed = true
	b.mu.Unlock()

	for _, m := range mods {
		m.release()
	}
	return nil
}
