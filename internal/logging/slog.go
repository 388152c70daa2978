package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// console receives log output when no file is configured. Stdout is left to
// command output.
var console io.Writer = os.Stderr

// SlogManager owns the process logger: a text sink (log file or console),
// the OTel bridge when a provider is given, and a context handler on top.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
	context     atomic.Pointer[ContextProvider]
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts the slog level names in any case. Anything else is info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Setup replaces the logger. A nil file logs to the console; a nil provider
// disables the OTel bridge.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	m.logProvider = provider

	out := file
	if out == nil {
		out = console
	}
	sink := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	})

	var bridge slog.Handler
	if provider != nil {
		bridge = otelslog.NewHandler("tokenmove", otelslog.WithLoggerProvider(provider))
	}

	m.logger = slog.New(NewContextHandler(NewMultiHandler(sink, bridge), m.contextAttrs))
	m.logger.Info("Logging initialized", "level", level)
}

// SetContextProvider stamps every record with the attributes p reports.
// nil removes the provider.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	if p == nil {
		m.context.Store(nil)
		return
	}
	m.context.Store(&p)
}

func (m *SlogManager) contextAttrs() []slog.Attr {
	if p := m.context.Load(); p != nil {
		return (*p)()
	}
	return nil
}

// Logger returns slog.Default until Setup has run.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records to their exporters.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog logs data at level, tagged with the function that reported it.
// The storage backends and bus workers report through it.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), parseLevel(level), data, "function", functionName)
}
