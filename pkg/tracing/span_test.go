package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/echomindr/echomindr/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-7")
	ctx, root := StartSpan(ctx, "corpus_reload")
	require.Equal(t, "req-7", root.TraceID)
	require.Same(t, root, SpanFromContext(ctx))

	_, read := StartChildSpan(ctx, "read_source")
	read.SetAttr("attempts", 2)
	read.End(errors.New("disk gone"))
	root.End(nil)

	require.Len(t, root.Children, 1)
	require.Equal(t, "req-7", read.TraceID)
	require.EqualError(t, read.Err, "disk gone")

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "span=corpus_reload")
	require.Contains(t, lines[1], "depth=1")
	require.Contains(t, lines[1], "attempts=2")
	require.Contains(t, lines[1], `error="disk gone"`)
}

func TestChildWithoutParentStartsTrace(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	require.NotEmpty(t, span.TraceID)
	require.Empty(t, span.Children)
}
