package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeter = `package scripts

import "github.com/ezachrisen/dyneval/scriptapi"

type Entry struct {
	scriptapi.Base
}

func (e *Entry) Greet(name string) string { return "hello " + name }

func (e *Entry) Add(a, b int) int { return a + b }

func (e *Entry) Var(name string) interface{} {
	v, _ := e.Env().Get(name)
	return v
}
`

// execute runs the command line and returns stdout, stderr and the error.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(append([]string{"--no-color", "--log-level", "error"}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRun(t *testing.T) {
	file := writeFile(t, t.TempDir(), "greeter.go", greeter)

	out, _, err := execute(t, "", "run", file, "Greet", "world")
	require.NoError(t, err)
	assert.Equal(t, "\"hello world\"\n", out)

	out, _, err = execute(t, "", "run", file, "Add", "2", "40")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, _, err = execute(t, "", "run", "--var", "limit=10", file, "Var", "limit")
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)
}

func TestRunUnknownMethod(t *testing.T) {
	file := writeFile(t, t.TempDir(), "greeter.go", greeter)
	_, _, err := execute(t, "", "run", file, "Missing")
	assert.Error(t, err)
}

func TestRunCompileError(t *testing.T) {
	file := writeFile(t, t.TempDir(), "broken.go", "package scripts\nfunc {")
	_, stderr, err := execute(t, "", "run", file, "Greet")
	require.Error(t, err)
	assert.Contains(t, stderr, file+":2:")
	assert.Contains(t, stderr, "error")
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.go", greeter)
	bad := writeFile(t, dir, "bad.go", "package scripts\nfunc {")

	out, _, err := execute(t, "", "check", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok "+good)

	out, _, err = execute(t, "", "check", good, bad)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL "+bad)
	assert.Contains(t, err.Error(), "1 script failed")
}

func TestCheckJSON(t *testing.T) {
	bad := writeFile(t, t.TempDir(), "bad.go", "package scripts\nfunc {")

	out, _, err := execute(t, "", "check", "--format", "json", bad)
	require.Error(t, err)

	var reports map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.NotEmpty(t, reports[bad])
	assert.Equal(t, "parse", reports[bad][0]["source"])
}

func TestCheckRejectsFormat(t *testing.T) {
	_, _, err := execute(t, "", "check", "--format", "xml", "x.go")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestEval(t *testing.T) {
	out, _, err := execute(t, "", "eval", "--var", "x=20", "--var", `names=["a","b"]`, "x * 2 + size(names)")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	_, _, err = execute(t, "", "eval", "1 +")
	assert.Error(t, err)

	_, _, err = execute(t, "", "eval", "--var", "novalue", "1")
	assert.ErrorContains(t, err, "expected name=value")
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	lib := writeFile(t, dir, "snippets.hcl", `
snippet "TWICE" {
  arity    = 1
  template = "(<p1>*2)"
}
`)
	out, _, err := execute(t, "y := TWICE(21)\n", "expand", "--snippets", lib)
	require.NoError(t, err)
	assert.Equal(t, "y := (21*2)\n", out)
}

func TestExpandWithConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "snippets.hcl", `
snippet "TWICE" {
  arity    = 1
  template = "(<p1>*2)"
}
`)
	cfg := writeFile(t, dir, "dyneval.toml", `
[compile]
snippets = ["snippets.hcl"]

[placeholders]
"$APP$" = "dyneval"
`)
	out, _, err := execute(t, "$APP$ TWICE(1)", "--config", cfg, "expand")
	require.NoError(t, err)
	assert.Equal(t, "dyneval (1*2)", out)
}

func TestRefs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "mathx"), 0o755))
	cfg := writeFile(t, dir, "dyneval.toml", "[compile]\nsearch_paths = [\".\"]\n")
	file := writeFile(t, dir, "script.go", "//@:mathx\npackage scripts\n")

	out, _, err := execute(t, "", "--config", cfg, "refs", file)
	require.NoError(t, err)
	assert.Contains(t, out, "REFERENCES")
	assert.Contains(t, out, filepath.Join(dir, "mathx"))

	_, _, err = execute(t, "", "--config", cfg, "refs", "--ref", "nowhere", file)
	assert.ErrorContains(t, err, "1 reference unresolved")
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, "", "new", "order discount", "-m", "apply discount", "-o", dir)
	require.NoError(t, err)
	path := filepath.Join(dir, "order_discount.go")
	assert.Equal(t, path+"\n", out)

	src, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(src), "func (e *Entry) ApplyDiscount(")

	_, _, err = execute(t, "", "new", "order discount", "-o", dir)
	assert.ErrorContains(t, err, "already exists")

	// the skeleton compiles and its stub reports itself
	_, _, err = execute(t, "", "run", path, "ApplyDiscount")
	assert.ErrorContains(t, err, "not implemented")
}

func TestNewToStdout(t *testing.T) {
	out, _, err := execute(t, "", "new", "greeter", "--type", "Greeter", "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "type Greeter struct")
}

func TestBadConfig(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "dyneval.toml", "[compile]\nbogus = 1\n")
	_, _, err := execute(t, "", "--config", cfg, "eval", "1")
	assert.ErrorContains(t, err, "unknown keys")
}
