// Package config loads host configuration from a TOML file.
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[compile]
//	namespace = "scripts"
//	type = "Entry"
//	search_paths = ["./modules"]
//	warnings_as_errors = false
//	snippets = ["snippets.hcl"]
//
//	[placeholders]
//	"$APP$" = "dyneval"
//
//	[evaluator]
//	cache_size = 512
//
//	[store]
//	path = "dyneval.db"
//
//	[server]
//	addr = ":8080"
//
// Relative paths are resolved against the directory holding the file.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ezachrisen/dyneval"
	"github.com/ezachrisen/dyneval/internal/logctx"
	"github.com/ezachrisen/dyneval/macro"
	"github.com/ezachrisen/dyneval/placeholder"
)

type Config struct {
	Log          Log               `toml:"log"`
	Compile      Compile           `toml:"compile"`
	Placeholders map[string]string `toml:"placeholders"`
	Evaluator    Evaluator         `toml:"evaluator"`
	Store        Store             `toml:"store"`
	Server       Server            `toml:"server"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Compile struct {
	Namespace        string   `toml:"namespace"`
	Type             string   `toml:"type"`
	SearchPaths      []string `toml:"search_paths"`
	WarningsAsErrors bool     `toml:"warnings_as_errors"`
	Snippets         []string `toml:"snippets"`
}

type Evaluator struct {
	CacheSize int `toml:"cache_size"`
}

type Store struct {
	Path string `toml:"path"`
}

type Server struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:       Log{Level: "info", Format: "text"},
		Compile:   Compile{Namespace: dyneval.DefaultEntryNamespace, Type: dyneval.DefaultEntryTypeName},
		Evaluator: Evaluator{CacheSize: 512},
		Store:     Store{Path: "dyneval.db"},
		Server:    Server{Addr: ":8080"},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	base := filepath.Dir(path)
	for i, p := range cfg.Compile.SearchPaths {
		cfg.Compile.SearchPaths[i] = resolve(base, p)
	}
	for i, p := range cfg.Compile.Snippets {
		cfg.Compile.Snippets[i] = resolve(base, p)
	}
	if meta.IsDefined("store", "path") {
		cfg.Store.Path = resolve(base, cfg.Store.Path)
	}
	return cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Logger builds the configured logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return logctx.New(c.Log.Level, c.Log.Format, w)
}

// PlaceholderRegistry returns a registry holding the configured static
// placeholders, or nil when there are none.
func (c Config) PlaceholderRegistry() *placeholder.Registry {
	if len(c.Placeholders) == 0 {
		return nil
	}
	r := placeholder.NewRegistry()
	for k, v := range c.Placeholders {
		r.Static(k, v)
	}
	return r
}

// CompileOptions returns the compile defaults described by the file.
func (c Config) CompileOptions() dyneval.CompileOptions {
	return dyneval.CompileOptions{
		EntryNamespace:   c.Compile.Namespace,
		EntryTypeName:    c.Compile.Type,
		SearchPaths:      c.Compile.SearchPaths,
		WarningsAsErrors: c.Compile.WarningsAsErrors,
		Placeholders:     c.PlaceholderRegistry(),
	}
}

// Macros loads the configured snippet libraries in order. It returns nil
// when none are configured.
func (c Config) Macros() (*macro.Expander, error) {
	if len(c.Compile.Snippets) == 0 {
		return nil, nil
	}
	e := macro.New()
	for _, p := range c.Compile.Snippets {
		snippets, diags := macro.LoadFile(p)
		if diags.HasErrors() {
			return nil, fmt.Errorf("loading snippets: %w", diags)
		}
		e.Register(snippets...)
	}
	return e, nil
}
