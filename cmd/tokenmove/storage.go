package main

import (
	"fmt"
	"path/filepath"

	"github.com/OCAP2/movement/internal/config"
	"github.com/OCAP2/movement/internal/database"
	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/internal/storage"
	"github.com/OCAP2/movement/internal/storage/gormstore"
	"github.com/OCAP2/movement/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/movement/internal/storage/sqlite"
	"github.com/spf13/viper"
)

// sceneRecorder is implemented by the database backends, which keep one row
// per scene.
type sceneRecorder interface {
	StartScene(name string, cfg grid.Config) (uint, error)
}

// postgresBackend is the GORM backend on a connection made by the database
// manager. When Postgres is unreachable the manager falls back to an
// in-memory SQLite database, which is dumped to disk on close.
type postgresBackend struct {
	*gormstore.Backend
	dbm *database.Manager
}

func (b *postgresBackend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if !b.dbm.ShouldSaveLocal {
		return nil
	}
	if err := b.dbm.DumpMemoryToDisk(); err != nil {
		return fmt.Errorf("failed to dump fallback database: %w", err)
	}
	Logger.Info("Fallback database written", "path", b.dbm.SqliteFilePath)
	return nil
}

func defaultDumpPath() string {
	return filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		dbm := database.NewManager(ZeroLogger)
		if err := dbm.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if dbm.ShouldSaveLocal {
			dbm.SqliteFilePath = storageCfg.SQLite.DumpPath
			if dbm.SqliteFilePath == "" {
				dbm.SqliteFilePath = defaultDumpPath()
			}
		}
		Logger.Info("Postgres storage backend initialized", "fallback", dbm.ShouldSaveLocal)
		return &postgresBackend{
			Backend: gormstore.New(gormstore.Dependencies{
				DB:            dbm.DB,
				LogManager:    SlogManager,
				FlushInterval: storageCfg.FlushInterval,
			}),
			dbm: dbm,
		}, nil

	case "sqlite":
		dumpPath := storageCfg.SQLite.DumpPath
		if dumpPath == "" {
			dumpPath = defaultDumpPath()
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval:  storageCfg.SQLite.DumpInterval,
			DumpPath:      dumpPath,
			FlushInterval: storageCfg.FlushInterval,
			Database:      storageCfg.SQLite.Database,
		}, SlogManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, nil

	case "memory", "":
		Logger.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil
	}
	return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
}
