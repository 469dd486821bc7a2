// Package refs resolves the references a script asks for into locations the
// loader can read.
//
// A reference is a bare name such as "mathx" or a path. Bare names are looked
// up in an ordered list of search directories; the first directory holding a
// package directory or a <name>.go file wins. Names that cannot be found are
// passed through unresolved. Resolving never fails: a missing reference
// becomes a compile diagnostic later, when the loader tries to use it.
package refs

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// DirectivePrefix starts an inline reference directive, e.g. //@:mathx
const DirectivePrefix = "//@:"

// Conventional subdirectories probed below the runtime and executable
// directories. "Modules" is the historical spelling, still honoured.
var conventionalDirs = []string{"modules", "Modules"}

// Reference is the outcome of resolving one name.
type Reference struct {
	// Name as requested.
	Name string

	// Path is the location found, or Name when unresolved.
	Path string

	// Resolved reports whether Path exists.
	Resolved bool
}

// Resolver looks up bare reference names.
type Resolver struct {
	// SearchPaths are probed in order.
	SearchPaths []string
}

// NewResolver builds a resolver with the default search order:
// the explicit directories, the runtime directory (the working directory of
// the hosting process), the executable's directory, and the conventional
// subdirectories of each of those two.
func NewResolver(explicit ...string) *Resolver {
	return &Resolver{SearchPaths: DefaultSearchPaths(explicit...)}
}

// DefaultSearchPaths returns the search order used by NewResolver.
func DefaultSearchPaths(explicit ...string) []string {
	var paths []string
	for _, p := range explicit {
		if p != "" {
			paths = append(paths, p)
		}
	}

	var bases []string
	if wd, err := os.Getwd(); err == nil {
		bases = append(bases, wd)
	}
	if exe, err := os.Executable(); err == nil {
		bases = append(bases, filepath.Dir(exe))
	}

	paths = append(paths, bases...)
	for _, b := range bases {
		for _, c := range conventionalDirs {
			paths = append(paths, filepath.Join(b, c))
		}
	}
	return dedupe(paths)
}

// Resolve resolves every name, preserving order.
func (r *Resolver) Resolve(names []string) []Reference {
	out := make([]Reference, 0, len(names))
	for _, n := range names {
		out = append(out, r.resolve(n))
	}
	return out
}

func (r *Resolver) resolve(name string) Reference {
	if filepath.IsAbs(name) || exists(name) {
		return Reference{Name: name, Path: name, Resolved: exists(name)}
	}
	for _, dir := range r.SearchPaths {
		for _, candidate := range []string{filepath.Join(dir, name), filepath.Join(dir, name+".go")} {
			if exists(candidate) {
				return Reference{Name: name, Path: candidate, Resolved: true}
			}
		}
	}
	return Reference{Name: name, Path: name}
}

// ScanDirectives returns the reference names requested by //@: lines in src,
// in order. Leading whitespace before the marker is ignored.
func ScanDirectives(src string) []string {
	var names []string
	sc := bufio.NewScanner(strings.NewReader(src))
	sc.Buffer(nil, len(src)+bufio.MaxScanTokenSize)
	for sc.Scan() {
		line := strings.TrimLeft(sc.Text(), " \t")
		if !strings.HasPrefix(line, DirectivePrefix) {
			continue
		}
		if name := strings.TrimSpace(line[len(DirectivePrefix):]); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
