package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/OCAP2/movement/internal/config"
	"github.com/OCAP2/movement/internal/logging"
	intOtel "github.com/OCAP2/movement/internal/otel"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "tokenmove"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZeroLogger serves the database and influx managers
	ZeroLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now()
)

func main() {
	if err := BuildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and brings up logging. It runs before every command.
func setup(configDir, logLevel string, toFile bool) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "warn", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	}
	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}

	lvl, err := zerolog.ParseLevel(viper.GetString("logLevel"))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	ZeroLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Str("app", AppName).Logger()

	if toFile {
		LogFile, LogFilePath, err = logging.OpenLogFile(viper.GetString("logsDir"), AppName, SessionStartTime)
		if err != nil {
			return err
		}
	}

	var logWriter io.Writer
	if LogFile != nil {
		logWriter = LogFile
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logWriter,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(logWriter, viper.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	Logger.Debug("Starting up", "version", CurrentVersion, "build", BuildDate)
	return nil
}

// shutdown flushes telemetry and closes the log file.
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush logs", "error", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
		OTelProvider = nil
	}
	if LogFile != nil {
		_ = LogFile.Close()
		LogFile = nil
	}
}
