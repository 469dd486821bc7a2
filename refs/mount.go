package refs

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/iofs"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

// Mount reads the Go sources of every resolved reference into memory and
// exposes them as a GOPATH-shaped filesystem: reference "mathx" appears as
// src/mathx/*.go. Unresolved references are skipped; the returned list names
// them so the caller can report them.
func Mount(refs []Reference) (fs.FS, []Reference, error) {
	mem := memfs.New()
	if err := mem.MkdirAll("src", 0o755); err != nil {
		return nil, nil, err
	}
	var missing []Reference
	for _, r := range refs {
		if !r.Resolved {
			missing = append(missing, r)
			continue
		}
		importPath := path.Clean(filepath.ToSlash(r.Name))
		if filepath.IsAbs(r.Name) {
			importPath = strings.TrimSuffix(filepath.Base(r.Name), ".go")
		}
		if err := mount(mem, path.Join("src", importPath), r.Path); err != nil {
			return nil, nil, fmt.Errorf("mounting %s: %w", r.Name, err)
		}
	}
	return iofs.New(mem), missing, nil
}

// mount copies src into dst: a single file as is, a directory's non-test
// Go files without recursing.
func mount(mem billy.Filesystem, dst, src string) error {
	st, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := mem.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	if !st.IsDir() {
		return copyFile(mem, path.Join(dst, filepath.Base(src)), src)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ".go") || strings.HasSuffix(n, "_test.go") {
			continue
		}
		if err := copyFile(mem, path.Join(dst, n), filepath.Join(src, n)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(mem billy.Filesystem, dst, src string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return util.WriteFile(mem, dst, b, 0o644)
}
