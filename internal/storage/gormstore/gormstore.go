// Package gormstore implements the storage.Backend interface using GORM
// (PostgreSQL or SQLite) with internal queues and a background DB writer goroutine.
package gormstore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/movement/internal/database"
	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/internal/logging"
	"github.com/OCAP2/movement/internal/model"
	"github.com/OCAP2/movement/internal/model/convert"
	"github.com/OCAP2/movement/internal/queue"
	"github.com/OCAP2/movement/pkg/core"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	writeBatch           = 500
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Commits      *queue.Queue[model.MovementCommit]
	History      *queue.Queue[model.HistoryEntry]
	RegionEvents *queue.Queue[model.RegionEvent]
}

func newQueues() *queues {
	return &queues{
		Commits:      queue.New[model.MovementCommit](),
		History:      queue.New[model.HistoryEntry](),
		RegionEvents: queue.New[model.RegionEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	sceneID  atomic.Uint64
	stopChan chan struct{}
	done     chan struct{}
	writeMu  sync.Mutex
	closed   bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
// If no DB was injected via Dependencies, it creates its own postgres connection.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		db, err := database.GetPostgresDB()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	b.deps.LogManager.WriteLog("setupDB", "Migrating schema", "INFO")
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.deps.LogManager.WriteLog("setupDB", "Database setup complete", "INFO")

	b.startDBWriter()
	return nil
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil || b.closed {
		return nil
	}
	b.closed = true
	close(b.stopChan)
	<-b.done
	return b.Flush()
}

// StartScene records the scene and stamps its ID on every row written afterwards.
func (b *Backend) StartScene(name string, cfg grid.Config) (uint, error) {
	scene := model.Scene{
		StartTime: time.Now(),
		Name:      name,
		GridType:  cfg.Type.String(),
		GridSize:  cfg.Size,
		Distance:  cfg.Distance,
		Units:     cfg.Units,
		Diagonals: cfg.Diagonals.String(),
	}
	if err := b.deps.DB.Create(&scene).Error; err != nil {
		return 0, fmt.Errorf("failed to insert scene: %w", err)
	}
	b.sceneID.Store(uint64(scene.ID))
	return scene.ID, nil
}

// CommitMovement converts the leg and queues it with its history rows.
func (b *Backend) CommitMovement(c *core.MovementCommit) error {
	commit, err := convert.CoreToMovementCommit(*c)
	if err != nil {
		return err
	}
	history, err := convert.CoreToHistoryEntries(*c)
	if err != nil {
		return err
	}
	b.queues.Commits.Push(commit)
	b.queues.History.Push(history...)
	return nil
}

// RecordRegionEvent converts and queues a region event.
func (b *Backend) RecordRegionEvent(e *core.RegionEvent) error {
	b.queues.RegionEvents.Push(convert.CoreToRegionEvent(*e))
	return nil
}

// ClearMovementHistory deletes the history rows of a token. Queued rows are
// written first so none of them survive the clear.
func (b *Backend) ClearMovementHistory(tokenID string) error {
	if err := b.Flush(); err != nil {
		return err
	}
	err := b.deps.DB.Where("token_id = ?", tokenID).Delete(&model.HistoryEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear history of %s: %w", tokenID, err)
	}
	return nil
}

// LoadMovementHistory reads a token's history in path order.
func (b *Backend) LoadMovementHistory(tokenID string) ([]core.MeasuredWaypoint, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}

	var rows []model.HistoryEntry
	err := b.deps.DB.Model(&model.HistoryEntry{}).
		Where("token_id = ?", tokenID).
		Order("time ASC, seq ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history of %s: %w", tokenID, err)
	}

	out := make([]core.MeasuredWaypoint, 0, len(rows))
	for _, row := range rows {
		w, err := convert.HistoryEntryToCore(row)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// Flush writes all queued rows now.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.queues == nil {
		return nil
	}

	log := b.deps.LogManager.WriteLog
	db := b.deps.DB

	// Read sceneID once per write cycle
	sceneID := uint(b.sceneID.Load())

	stampCommits := func(items []model.MovementCommit) {
		for i := range items {
			items[i].SceneID = sceneID
		}
	}
	stampHistory := func(items []model.HistoryEntry) {
		for i := range items {
			items[i].SceneID = sceneID
		}
	}
	stampRegionEvents := func(items []model.RegionEvent) {
		for i := range items {
			items[i].SceneID = sceneID
		}
	}

	return errors.Join(
		writeQueue(db, b.queues.Commits, "movement commits", log, stampCommits),
		writeQueue(db, b.queues.History, "history entries", log, stampHistory),
		writeQueue(db, b.queues.RegionEvents, "region events", log, stampRegionEvents),
	)
}

// writeQueue writes the rows queued when it is called, in batches of
// writeBatch, each in its own transaction. A failed batch is requeued for the
// next cycle and stops the write.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T)) error {
	for pending := q.Len(); pending > 0; {
		items := q.Drain(min(pending, writeBatch))
		if len(items) == 0 {
			return nil
		}
		pending -= len(items)

		if prepare != nil {
			prepare(items)
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&items).Error
		})
		if err != nil {
			log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
			q.Requeue(items...)
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// startDBWriter starts the background goroutine that periodically drains queues into the DB.
func (b *Backend) startDBWriter() {
	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.deps.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				_ = b.Flush()
			}
		}
	}()
}
