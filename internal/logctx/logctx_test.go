package logctx_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ezachrisen/dyneval/internal/logctx"
)

func TestFromContext(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	l := logctx.New("debug", "json", &buf)
	ctx := logctx.WithLogger(context.Background(), l)
	is.Equal(logctx.FromContext(ctx, nil), l)

	logctx.FromContext(ctx, nil).Debug("hello", "n", 1)
	is.True(strings.Contains(buf.String(), `"msg":"hello"`))
}

func TestFromContextFallback(t *testing.T) {
	is := is.New(t)

	fb := logctx.Discard()
	is.Equal(logctx.FromContext(context.Background(), fb), fb)
	is.Equal(logctx.FromContext(context.Background(), nil), slog.Default())
}

func TestParseLevel(t *testing.T) {
	is := is.New(t)

	is.Equal(logctx.ParseLevel("DEBUG"), slog.LevelDebug)
	is.Equal(logctx.ParseLevel("warning"), slog.LevelWarn)
	is.Equal(logctx.ParseLevel("error"), slog.LevelError)
	is.Equal(logctx.ParseLevel("bogus"), slog.LevelInfo)
}

func TestTextLevelFilter(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	l := logctx.New("warn", "text", &buf)
	l.Info("quiet")
	is.Equal(buf.Len(), 0)
	l.Warn("loud")
	is.True(strings.Contains(buf.String(), "msg=loud"))
}
