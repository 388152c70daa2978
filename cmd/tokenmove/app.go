package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/OCAP2/movement/internal/action"
	"github.com/OCAP2/movement/internal/config"
	"github.com/OCAP2/movement/internal/dispatcher"
	"github.com/OCAP2/movement/internal/influx"
	"github.com/OCAP2/movement/internal/movement"
	"github.com/OCAP2/movement/internal/pathfind"
	"github.com/OCAP2/movement/internal/scene"
	"github.com/OCAP2/movement/internal/storage"
	"github.com/OCAP2/movement/internal/storage/memory"
	"github.com/OCAP2/movement/internal/worker"
	"github.com/OCAP2/movement/pkg/core"
)

// app is one loaded scene with its engine and everything the engine
// publishes to.
type app struct {
	scene   *scene.Context
	engine  *movement.Engine
	bus     *dispatcher.Dispatcher
	backend storage.Backend
	influx  *influx.Manager
}

// loadScene reads a scene file. A scene without a grid uses the grid from
// the config.
func loadScene(path string) (*scene.Context, []core.Token, error) {
	f, err := scene.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if f.Grid == (scene.GridSpec{}) {
		g := config.GetGridConfig()
		f.Grid = scene.GridSpec{
			Type:      g.Type,
			Size:      g.Size,
			Distance:  g.Distance,
			Units:     g.Units,
			Diagonals: g.Diagonals,
		}
	}
	if f.Name == "" {
		f.Name = filepath.Base(path)
	}
	sc, tokens, err := f.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, tokens, nil
}

// newApp loads the scene at path. With persist unset the movements are kept
// in memory only and nothing is exported.
func newApp(path string, persist bool) (*app, error) {
	sc, tokens, err := loadScene(path)
	if err != nil {
		return nil, err
	}
	a := &app{scene: sc}

	storageCfg := config.GetStorageConfig()
	if !persist {
		storageCfg = config.StorageConfig{Type: "memory"}
	}
	a.backend, err = createStorageBackend(storageCfg)
	if err != nil {
		return nil, err
	}
	if err := a.backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	switch b := a.backend.(type) {
	case *memory.Backend:
		b.StartSession(sc.Name(), SessionStartTime)
	case sceneRecorder:
		if _, err := b.StartScene(sc.Name(), sc.Grid().Config()); err != nil {
			_ = a.backend.Close()
			return nil, err
		}
	}

	a.bus, err = dispatcher.New(Logger.With("component", "dispatcher"))
	if err != nil {
		_ = a.backend.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	var telemetry worker.Telemetry
	if persist {
		a.influx = influx.NewManager(ZeroLogger, filepath.Join(config.GetString("logsDir"), AppName+".influx.lp.gz"))
		switch err := a.influx.Connect(); {
		case errors.Is(err, influx.ErrDisabled):
		case err != nil:
			Logger.Warn("Failed to connect to InfluxDB", "error", err)
		default:
			telemetry = a.influx
		}
	}

	workerManager := worker.NewManager(worker.Dependencies{
		LogManager: SlogManager,
		Telemetry:  telemetry,
	}, a.backend)
	workerManager.RegisterHandlers(a.bus)

	actions, err := action.NewRegistry(config.GetString("movement.defaultAction"), action.Builtin()...)
	if err != nil {
		a.close()
		return nil, err
	}

	pf := config.GetPathfindingConfig()
	a.engine, err = movement.New(movement.Dependencies{
		Scene:   sc,
		Actions: actions,
		Backend: a.backend,
		Bus:     a.bus,
		Pathfinding: pathfind.Config{
			Delay:    pf.Delay,
			MaxNodes: pf.MaxNodes,
		},
		Logger: Logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	SlogManager.SetContextProvider(a.logContext)

	for _, t := range tokens {
		if err := a.engine.AddToken(t); err != nil {
			a.close()
			return nil, err
		}
	}
	Logger.Debug("Scene loaded", "scene", sc.Name(), "regions", len(sc.Regions()), "tokens", len(tokens))
	return a, nil
}

func (a *app) logContext() []slog.Attr {
	return []slog.Attr{
		slog.String("scene", a.scene.Name()),
		slog.Int("activeMovements", a.engine.Active()),
	}
}

// close stops the engine, drains the bus and then closes storage.
func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.bus != nil {
		a.bus.Close()
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			Logger.Warn("Failed to close InfluxDB writer", "error", err)
		}
	}
	if err := a.backend.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
	}
	if e, ok := a.backend.(storage.Exportable); ok && e.GetExportedFilePath() != "" {
		Logger.Info("Movements exported", "path", e.GetExportedFilePath())
	}
	SlogManager.SetContextProvider(nil)
}
