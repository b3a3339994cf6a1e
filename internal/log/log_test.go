package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

func newJSON(t *testing.T, opts Options) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts.Writer = &buf
	opts.JSON = true
	l, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{" INFO ", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"trace", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_BaseAttrsAndWith(t *testing.T) {
	l, buf := newJSON(t, Options{App: "scorm", Component: "ingest", Level: slog.LevelDebug})

	child := l.With("scope", "org/course/scorm/b1", 42, "dropped")
	child.Info(context.Background(), "ingested", "hash", "abc")
	l.Debug(context.Background(), "plain")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	first := lines[0]
	if first["app"] != "scorm" || first["component"] != "ingest" {
		t.Fatalf("missing base attrs: %v", first)
	}
	if first["scope"] != "org/course/scorm/b1" || first["hash"] != "abc" {
		t.Fatalf("missing kv attrs: %v", first)
	}
	if _, ok := lines[1]["scope"]; ok {
		t.Fatal("With must not leak attrs into the parent")
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	l, buf := newJSON(t, Options{Level: slog.LevelWarn})
	l.Info(context.Background(), "hidden")
	l.Warn(context.Background(), "shown")
	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["msg"] != "shown" {
		t.Fatalf("lines = %v", lines)
	}
}

func TestLogger_SourceIsCaller(t *testing.T) {
	l, buf := newJSON(t, Options{})
	l.Info(context.Background(), "where")
	src, _ := decodeLines(t, buf)[0]["source"].(map[string]any)
	if fn, _ := src["function"].(string); !strings.HasSuffix(fn, "TestLogger_SourceIsCaller") {
		t.Fatalf("source function = %v", src["function"])
	}
}

func TestLogger_ErrorEnrichment(t *testing.T) {
	l, buf := newJSON(t, Options{IncludeErrorLinks: true})

	root := errors.New("no space left")
	err := xerrors.Wrap(fmt.Errorf("write: %w", root), "save archive")
	l.Error(context.Background(), err, "ingest failed")

	line := decodeLines(t, buf)[0]
	if line["level"] != "ERROR" {
		t.Fatalf("level = %v", line["level"])
	}
	if line["cause_type"] != "*errors.errorString" {
		t.Fatalf("cause_type = %v", line["cause_type"])
	}
	chain, _ := line["error_chain"].([]any)
	if len(chain) != 3 {
		t.Fatalf("error_chain = %v", line["error_chain"])
	}
	if _, ok := line["stack"]; !ok {
		t.Fatal("error records should carry a stack")
	}
	links, _ := line["error_links"].([]any)
	if len(links) == 0 {
		t.Fatal("expected error_links")
	}
	first, _ := links[0].(map[string]any)
	if fn, _ := first["func"].(string); !strings.HasSuffix(fn, "TestLogger_ErrorEnrichment") {
		t.Fatalf("first link func = %v", first["func"])
	}
}

func TestLogger_TraceIDs(t *testing.T) {
	l, buf := newJSON(t, Options{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	l.Info(ctx, "traced")

	line := decodeLines(t, buf)[0]
	if line["trace_id"] != sc.TraceID().String() || line["span_id"] != sc.SpanID().String() {
		t.Fatalf("trace attrs = %v / %v", line["trace_id"], line["span_id"])
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()).(nopLogger); !ok {
		t.Fatal("empty context should yield Nop")
	}
	l, _ := newJSON(t, Options{})
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("FromContext should return the stored logger")
	}
}

func TestNop(t *testing.T) {
	n := Nop()
	n.Info(context.Background(), "x")
	n.Error(context.Background(), errors.New("x"), "x")
	if n.With("a", 1) == nil || n.Sync() != nil {
		t.Fatal("Nop should be inert")
	}
}

func TestRenderPCs_SkipsLoggingFrames(t *testing.T) {
	s := renderPCs(nil)
	if s != "" {
		t.Fatalf("renderPCs(nil) = %q", s)
	}
	if internalFrame("main.run") {
		t.Fatal("main.run is not internal")
	}
	for _, fn := range []string{
		"log/slog.(*Logger).log",
		"github.com/x/y/internal/xerrors.Wrap",
		"github.com/x/y/internal/log.(*slogLogger).emit",
	} {
		if !internalFrame(fn) {
			t.Errorf("internalFrame(%q) = false", fn)
		}
	}
}
