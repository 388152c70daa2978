package logging

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// useConsole points the console sink at a buffer for the test.
func useConsole(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := console
	console = &buf
	t.Cleanup(func() { console = orig })
	return &buf
}

func TestSlogManager_Sink(t *testing.T) {
	t.Run("log file keeps stderr quiet", func(t *testing.T) {
		stderr := useConsole(t)
		var file bytes.Buffer

		m := NewSlogManager()
		m.Setup(&file, "info", nil)
		m.Logger().Info("movement started", "token", "goblin")

		assert.Contains(t, file.String(), "token=goblin")
		assert.Empty(t, stderr.String())
	})

	t.Run("no log file falls back to stderr", func(t *testing.T) {
		stderr := useConsole(t)

		m := NewSlogManager()
		m.Setup(nil, "info", nil)
		m.Logger().Info("movement started", "token", "goblin")

		assert.Contains(t, stderr.String(), "token=goblin")
	})

	t.Run("setup again moves to the new sink", func(t *testing.T) {
		var first, second bytes.Buffer
		m := NewSlogManager()
		m.Setup(&first, "info", nil)
		m.Setup(&second, "info", nil)
		m.Logger().Info("leg committed")

		assert.NotContains(t, first.String(), "leg committed")
		assert.Contains(t, second.String(), "leg committed")
	})
}

func TestSlogManager_Level(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{level: "debug", wantDebug: true, wantInfo: true},
		{level: "DEBUG", wantDebug: true, wantInfo: true},
		{level: "info", wantInfo: true},
		{level: "warn"},
		{level: "bogus", wantInfo: true},
		{level: "", wantInfo: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, tt.level, nil)

			m.Logger().Debug("region event")
			m.Logger().Info("leg committed")
			m.Logger().Warn("PRE_MOVE handler failed")

			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("region event")))
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("leg committed")))
			assert.Contains(t, buf.String(), "PRE_MOVE handler failed")
		})
	}
}

func TestSlogManager_TimestampsAreUTC(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)
	m.Logger().Info("tick")

	assert.Regexp(t, regexp.MustCompile(`time=\d{4}-\d\d-\d\dT\d\d:\d\d:\d\dZ `), buf.String())
}

func TestSlogManager_BeforeSetup(t *testing.T) {
	m := NewSlogManager()

	assert.Same(t, slog.Default(), m.Logger())
	assert.NoError(t, m.Flush(context.Background()))
	assert.NotPanics(t, func() { m.WriteLog("gormstore.writeQueue", "dropped", "error") })
}

func TestSlogManager_WriteLog(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "warn", nil)

	m.WriteLog("worker.regionEvent", "persisted", "info")
	m.WriteLog("gormstore.writeQueue", "batch failed", "ERROR")

	out := buf.String()
	assert.NotContains(t, out, "persisted")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="batch failed" function=gormstore.writeQueue`)
}

func TestSlogManager_ContextProvider(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)

	active := 1
	m.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.String("scene", "cellar"), slog.Int("activeMovements", active)}
	})

	ctx := With(context.Background(), slog.String("movement", "m1"))
	m.Logger().InfoContext(ctx, "leg committed")
	assert.Contains(t, buf.String(), "movement=m1 scene=cellar activeMovements=1")

	buf.Reset()
	active = 0
	m.Logger().Info("movement completed")
	assert.Contains(t, buf.String(), "activeMovements=0")

	buf.Reset()
	m.SetContextProvider(nil)
	m.Logger().Info("scene closed")
	assert.NotContains(t, buf.String(), "scene=")
}

// recordingExporter keeps the bodies of the OTel records it receives.
type recordingExporter struct {
	mu     sync.Mutex
	bodies []string
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.bodies = append(e.bodies, r.Body().AsString())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func TestSlogManager_OTelBridge(t *testing.T) {
	exp := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", provider)
	m.Logger().Info("movement vetoed", "region", "gate")
	require.NoError(t, m.Flush(context.Background()))

	assert.Contains(t, buf.String(), "movement vetoed")
	exp.mu.Lock()
	defer exp.mu.Unlock()
	assert.Contains(t, exp.bodies, "movement vetoed")
}
