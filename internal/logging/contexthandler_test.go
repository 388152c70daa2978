package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextHandler_AddsContextAndProviderAttrs(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, nil)
	logger := slog.New(NewContextHandler(inner, func() []slog.Attr {
		return []slog.Attr{slog.String("scene", "cellar")}
	}))

	ctx := With(context.Background(), slog.String("token", "goblin"))
	ctx = With(ctx, slog.String("movement", "m1"))
	logger.InfoContext(ctx, "leg committed")

	out := buf.String()
	assert.Contains(t, out, "token=goblin")
	assert.Contains(t, out, "movement=m1")
	assert.Contains(t, out, "scene=cellar")
}

func TestContextHandler_SiblingContextsDoNotShare(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), nil))

	base := With(context.Background(), slog.String("token", "a"))
	_ = With(base, slog.String("movement", "first"))
	second := With(base, slog.String("movement", "second"))
	logger.InfoContext(second, "x")

	assert.Contains(t, buf.String(), "movement=second")
	assert.NotContains(t, buf.String(), "movement=first")
}

func TestContextHandler_PlainContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), nil))

	logger.Info("plain", "k", "v")
	assert.Contains(t, buf.String(), "k=v")
}

func TestContextHandler_WithGroupEmpty(t *testing.T) {
	h := NewContextHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), nil)
	assert.Same(t, h, h.WithGroup(""))
}
