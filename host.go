package dyneval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ezachrisen/dyneval/internal/logctx"
)

var (
	// ErrEntryNotFound means the module has no type with the entry name.
	ErrEntryNotFound = errors.New("entry type not found")

	// ErrCapability means the entry type does not implement scriptapi.Capability.
	ErrCapability = errors.New("entry type does not implement scriptapi.Capability")

	// ErrUnknownIdentity means nothing is cached under the identity.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrUnknownMethod means the entry type has no such exported method.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrBoundaryClosed means the boundary owning the module has been closed.
	ErrBoundaryClosed = errors.New("boundary closed")
)

// NewIdentity returns a fresh identity for caching an instance.
func NewIdentity() string {
	return uuid.NewString()
}

// Host compiles source into instances, caches them by identity, and calls
// methods on them. It is safe for concurrent use.
type Host struct {
	compiler Compiler

	// identity → *Instance
	cache sync.Map
	group singleflight.Group

	opts HostOptions

	compiles atomic.Int64
	hits     atomic.Int64
	failures atomic.Int64
}

// NewHost returns a host compiling with c. A nil c means NewCompiler with
// the host's logger.
func NewHost(c Compiler, opts ...HostOption) *Host {
	h := &Host{compiler: c}
	applyHostOptions(&h.opts, opts...)
	if h.opts.Logger == nil {
		h.opts.Logger = slog.Default()
	}
	if h.compiler == nil {
		h.compiler = NewCompiler(CompilerLogger(h.opts.Logger))
	}
	return h
}

// See the functional definitions below for the meaning.
type HostOptions struct {
	Logger   *slog.Logger
	Defaults CompileOptions
}

type HostOption func(f *HostOptions)

func applyHostOptions(o *HostOptions, opts ...HostOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// Log host activity and script messages here.
// Default: slog.Default()
func HostLogger(l *slog.Logger) HostOption {
	return func(f *HostOptions) {
		f.Logger = l
	}
}

// Fill unset entry names and search paths of every CompileOptions from d.
func DefaultOptions(d CompileOptions) HostOption {
	return func(f *HostOptions) {
		f.Defaults = d
	}
}

func (h *Host) merge(o CompileOptions) CompileOptions {
	d := h.opts.Defaults
	if o.EntryNamespace == "" {
		o.EntryNamespace = d.EntryNamespace
	}
	if o.EntryTypeName == "" {
		o.EntryTypeName = d.EntryTypeName
	}
	if o.Placeholders == nil {
		o.Placeholders = d.Placeholders
	}
	o.SearchPaths = append(append([]string{}, o.SearchPaths...), d.SearchPaths...)
	o.WarningsAsErrors = o.WarningsAsErrors || d.WarningsAsErrors
	return o.withDefaults()
}

// TryCompile compiles src and instantiates its entry type without caching
// it. ok is false when the source has errors; they are in diags.
func (h *Host) TryCompile(ctx context.Context, src string, opts CompileOptions) (ok bool, diags Diagnostics, in *Instance, err error) {
	opts = h.merge(opts)
	m, diags, err := h.compile(ctx, src, opts, nil)
	if err != nil || m == nil {
		return false, diags, nil, err
	}
	in, err = h.Instantiate(ctx, m, opts)
	if err != nil {
		return false, diags, nil, err
	}
	return true, diags, in, nil
}

// Instantiate constructs the entry type named by opts in m.
// It fails with ErrEntryNotFound when m has no such type and with
// ErrCapability when the type does not implement scriptapi.Capability.
func (h *Host) Instantiate(ctx context.Context, m *Module, opts CompileOptions) (*Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = h.merge(opts)
	name := opts.EntryName()
	handle, c, err := m.construct(name)
	if err != nil {
		return nil, err
	}

	in := &Instance{
		Created:    time.Now(),
		module:     m,
		handle:     handle,
		capability: c,
	}
	env := c.Env()
	for k, v := range opts.Variables {
		env.Set(k, v)
	}
	log := logctx.FromContext(ctx, h.opts.Logger).With("module", m.ID, "entry", name)
	env.Bind(func(msg string) { log.Info(msg) })
	return in, nil
}

// GetOrCompile returns the instance cached under identity, compiling and
// caching it first when needed.
//
// A cached instance is returned as is unless opts.ForceRecompile is set, in
// which case a successful compile replaces it; calls already running on the
// old instance finish there. A compile with errors leaves the cache alone,
// and a plain compile never replaces an instance cached while it ran.
// An empty identity, or a non-nil boundary, compiles without caching.
func (h *Host) GetOrCompile(ctx context.Context, src, identity string, opts CompileOptions, b *Boundary) (*Instance, Diagnostics, error) {
	opts = h.merge(opts)
	log := logctx.FromContext(ctx, h.opts.Logger)

	if b != nil || identity == "" {
		return h.build(ctx, src, identity, opts, b)
	}

	if !opts.ForceRecompile {
		if in, ok := h.Lookup(identity); ok {
			h.hits.Add(1)
			log.Debug("cache hit", "identity", identity)
			return in, nil, nil
		}
	}

	key := identity
	if opts.ForceRecompile {
		key = "force\x00" + identity
	}
	type flight struct {
		in    *Instance
		diags Diagnostics
	}
	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		if !opts.ForceRecompile {
			if in, ok := h.Lookup(identity); ok {
				return flight{in: in}, nil
			}
		}
		in, diags, err := h.build(ctx, src, identity, opts, nil)
		if err != nil || in == nil {
			return flight{diags: diags}, err
		}
		if opts.ForceRecompile {
			h.cache.Store(identity, in)
		} else if prev, loaded := h.cache.LoadOrStore(identity, in); loaded {
			// a forced recompile finished first
			return flight{in: prev.(*Instance)}, nil
		}
		log.Info("cached instance", "identity", identity, "module", in.module.ID, "cached", humanize.Comma(int64(h.Len())))
		return flight{in: in, diags: diags}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	f := v.(flight)
	return f.in, f.diags, nil
}

// build compiles and instantiates without touching the cache.
func (h *Host) build(ctx context.Context, src, identity string, opts CompileOptions, b *Boundary) (*Instance, Diagnostics, error) {
	m, diags, err := h.compile(ctx, src, opts, b)
	if err != nil || m == nil {
		return nil, diags, err
	}
	in, err := h.Instantiate(ctx, m, opts)
	if err != nil {
		return nil, diags, err
	}
	in.Identity = identity
	return in, diags, nil
}

func (h *Host) compile(ctx context.Context, src string, opts CompileOptions, b *Boundary) (*Module, Diagnostics, error) {
	h.compiles.Add(1)
	m, diags, err := h.compiler.Compile(ctx, src, opts, b)
	if err != nil {
		return nil, nil, err
	}
	if m == nil || diags.HasErrors() {
		h.failures.Add(1)
		logctx.FromContext(ctx, h.opts.Logger).Debug("compile failed", "errors", len(diags.Errors()))
		return nil, diags, nil
	}
	return m, diags, nil
}

// Execute calls method on the instance cached under identity.
func (h *Host) Execute(ctx context.Context, identity, method string, args ...interface{}) (interface{}, error) {
	in, ok := h.Lookup(identity)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIdentity, identity)
	}
	return in.Call(ctx, method, args...)
}

// Lookup returns the instance cached under identity.
func (h *Host) Lookup(identity string) (*Instance, bool) {
	v, ok := h.cache.Load(identity)
	if !ok {
		return nil, false
	}
	return v.(*Instance), true
}

// Evict removes identity from the cache and reports whether it was there.
// Instances already handed out keep working.
func (h *Host) Evict(identity string) bool {
	_, ok := h.cache.LoadAndDelete(identity)
	return ok
}

// Len returns the number of cached instances.
func (h *Host) Len() int {
	n := 0
	h.cache.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Identities returns the cached identities in sorted order.
func (h *Host) Identities() []string {
	var ids []string
	h.cache.Range(func(k, _ interface{}) bool {
		ids = append(ids, k.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}

// HostStats counts host activity since creation.
type HostStats struct {
	Compiles int64
	Failures int64
	Hits     int64
	Cached   int
}

func (s HostStats) String() string {
	return fmt.Sprintf("%s compiles (%s failed), %s cache hits, %s cached",
		humanize.Comma(s.Compiles), humanize.Comma(s.Failures), humanize.Comma(s.Hits), humanize.Comma(int64(s.Cached)))
}

// Stats returns the host's counters.
func (h *Host) Stats() HostStats {
	return HostStats{
		Compiles: h.compiles.Load(),
		Failures: h.failures.Load(),
		Hits:     h.hits.Load(),
		Cached:   h.Len(),
	}
}
