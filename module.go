package dyneval

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"

	"github.com/ezachrisen/dyneval/scriptapi"
)

// Module is compiled source loaded into its own interpreter.
type Module struct {
	ID        string
	Namespace string
	TypeName  string

	// Source is the text submitted for compilation, before expansion.
	Source string

	// Diagnostics holds the warnings reported by a successful compile.
	Diagnostics Diagnostics
	Created     time.Time

	// mu serialises access to the interpreter.
	mu       sync.Mutex
	interp   *interp.Interpreter
	boundary *Boundary
	released bool

	// ctors maps a qualified type name to the constructor declared for
	// it inside the interpreter.
	ctors   map[string]*constructor
	handles int
}

// EntryName is the qualified name of the entry type, e.g. scripts.Entry.
func (m *Module) EntryName() string {
	return m.Namespace + "." + m.TypeName
}

// Boundary returns the boundary that owns the module, or nil.
func (m *Module) Boundary() *Boundary {
	return m.boundary
}

// eval evaluates src in the module's interpreter.
func (m *Module) eval(src string) (reflect.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return reflect.Value{}, ErrBoundaryClosed
	}
	return m.evalLocked(src)
}

// evalLocked evaluates src, turning an interpreter panic into an error.
// Caller holds m.mu.
func (m *Module) evalLocked(src string) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = reflect.Value{}, fmt.Errorf("interpreter panic: %v", r)
		}
	}()
	return m.interp.Eval(src)
}

// release drops the interpreter. Every later use fails with ErrBoundaryClosed.
func (m *Module) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	m.interp = nil
	m.ctors = nil
}

// construct creates a new value of the named type and finds its
// scriptapi.Capability. It returns the interpreter variable holding the value.
func (m *Module) construct(typeName string) (string, scriptapi.Capability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return "", nil, ErrBoundaryClosed
	}

	ctor, err := m.constructor(typeName)
	if err != nil {
		return "", nil, err
	}

	m.handles++
	handle := fmt.Sprintf("__dyneval_entry_%d", m.handles)
	if _, err := m.evalLocked(fmt.Sprintf("var %s = %s()", handle, ctor.name)); err != nil {
		return "", nil, fmt.Errorf("constructing %s: %w", typeName, err)
	}
	v, err := m.evalLocked(handle)
	if err != nil {
		return "", nil, fmt.Errorf("constructing %s: %w", typeName, err)
	}

	if c := embeddedBase(v); c != nil {
		return handle, c, nil
	}
	c, err := m.capability(ctor, handle)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrCapability, typeName, err)
	}
	return handle, c, nil
}

// capability converts the value held in handle to scriptapi.Capability
// inside the interpreter, which wraps interpreted methods for the host.
// Caller holds m.mu.
func (m *Module) capability(ctor *constructor, handle string) (scriptapi.Capability, error) {
	if ctor.convert == "" {
		if _, err := m.evalLocked(`import "` + scriptapiPath + `"`); err != nil {
			return nil, err
		}
		name := ctor.name + "_capability"
		src := fmt.Sprintf("func %s(x *%s) scriptapi.Capability { return x }", name, ctor.typeName)
		if _, err := m.evalLocked(src); err != nil {
			return nil, err
		}
		ctor.convert = name
	}
	v, err := m.evalLocked(fmt.Sprintf("%s(%s)", ctor.convert, handle))
	if err != nil {
		return nil, err
	}
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() || !v.CanInterface() {
		return nil, errors.New("no value")
	}
	c, ok := v.Interface().(scriptapi.Capability)
	if !ok || c == nil {
		return nil, fmt.Errorf("%s is not a capability", v.Type())
	}
	return c, nil
}

var baseType = reflect.TypeOf(scriptapi.Base{})

// embeddedBase returns the scriptapi.Base embedded in the struct v points
// to, searching embedded structs breadth first, or nil.
func embeddedBase(v reflect.Value) scriptapi.Capability {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr) {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	queue := []reflect.Value{v}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if !s.IsValid() || s.Kind() != reflect.Struct {
			continue
		}
		for i := 0; i < s.NumField(); i++ {
			f := s.Field(i)
			sf := s.Type().Field(i)
			if f.Type() == baseType && f.CanAddr() && f.Addr().CanInterface() {
				if b, ok := f.Addr().Interface().(*scriptapi.Base); ok {
					return b
				}
			}
			if sf.Anonymous && f.Kind() == reflect.Struct {
				queue = append(queue, f)
			}
		}
	}
	return nil
}

// constructor is a factory declared inside the interpreter for one type.
type constructor struct {
	typeName string
	name     string
	convert  string
}

// constructor returns the constructor for typeName, declaring it on first
// use. Caller holds m.mu.
func (m *Module) constructor(typeName string) (*constructor, error) {
	if ctor, ok := m.ctors[typeName]; ok {
		return ctor, nil
	}
	ns, typ, ok := strings.Cut(typeName, ".")
	if !ok || !token.IsIdentifier(ns) || !token.IsIdentifier(typ) {
		return nil, fmt.Errorf("%w: %q is not a qualified type name", ErrEntryNotFound, typeName)
	}
	ctor := &constructor{typeName: typeName, name: fmt.Sprintf("__dyneval_new_%d", len(m.ctors)+1)}
	src := fmt.Sprintf("func %s() *%s { return new(%s) }", ctor.name, typeName, typeName)
	if _, err := m.evalLocked(src); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEntryNotFound, typeName, err)
	}
	m.ctors[typeName] = ctor
	return ctor, nil
}
