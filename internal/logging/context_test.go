package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, SessionID(ctx))
	assert.Empty(t, DefinitionID(ctx))
	assert.Empty(t, Surface(ctx))

	ctx = WithSurface(WithDefinitionID(WithSessionID(ctx, "ses-123"), "def-1"), "surf-42")
	assert.Equal(t, "ses-123", SessionID(ctx))
	assert.Equal(t, "def-1", DefinitionID(ctx))
	assert.Equal(t, "surf-42", Surface(ctx))

	ctx = WithIDs(ctx, "ses-2", "", "surf-3")
	assert.Equal(t, "ses-2", SessionID(ctx))
	assert.Equal(t, "def-1", DefinitionID(ctx), "empty values leave the previous one")
	assert.Equal(t, "surf-3", Surface(ctx))
}

// correlationCases share inputs between LogWith and CorrelationHandler.
var correlationCases = []struct {
	name    string
	ctx     context.Context
	present []string
	absent  []string
}{
	{
		name:    "all values",
		ctx:     WithIDs(context.Background(), "ses-abc", "def-x", "surf-7"),
		present: []string{"ses-abc", "def-x", "surf-7"},
	},
	{
		name:    "session only",
		ctx:     WithSessionID(context.Background(), "ses-only"),
		present: []string{"ses-only"},
		absent:  []string{"definition_id", "surface"},
	},
	{
		name:   "empty",
		ctx:    context.Background(),
		absent: []string{"session_id", "definition_id", "surface"},
	},
}

func TestLogWith(t *testing.T) {
	for _, tt := range correlationCases {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			LogWith(tt.ctx, logger).Info("bound")

			out := buf.String()
			assert.Contains(t, out, "msg=bound")
			for _, s := range tt.present {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestCorrelationHandler(t *testing.T) {
	for _, tt := range correlationCases {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))
			logger.InfoContext(tt.ctx, "handled")

			out := buf.String()
			assert.Contains(t, out, `"msg":"handled"`)
			for _, s := range tt.present {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestCorrelationHandler_Derived(t *testing.T) {
	var buf bytes.Buffer
	h := NewCorrelationHandler(slog.NewJSONHandler(&buf, nil))
	ctx := WithSessionID(context.Background(), "ses-attr")

	slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "designer")})).InfoContext(ctx, "attrs")
	assert.Contains(t, buf.String(), `"session_id":"ses-attr"`)
	assert.Contains(t, buf.String(), `"component":"designer"`)

	buf.Reset()
	slog.New(h.WithGroup("designer")).InfoContext(ctx, "grouped", "key", "val")
	assert.Contains(t, buf.String(), `"designer":{`)
	assert.Contains(t, buf.String(), "ses-attr")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"loud":    slog.LevelInfo,
		"":        slog.LevelInfo,
	} {
		assert.Equal(t, want, ParseLevel(in), "%q", in)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")

	ctx := WithSessionID(context.Background(), "ses-9")
	logger.InfoContext(ctx, "dropped")
	logger.WarnContext(ctx, "kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"session_id":"ses-9"`)

	buf.Reset()
	NewLogger(&buf, "info", "text").Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
