package gormstore

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/internal/logging"
	"github.com/OCAP2/movement/internal/model"
	"github.com/OCAP2/movement/internal/storage"
	"github.com/OCAP2/movement/pkg/core"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Compile-time interface checks
var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Flusher = (*Backend)(nil)
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "moves.db")), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

// newTestBackend creates an initialized Backend whose writer only runs on Flush.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(Dependencies{
		DB:            openTestDB(t),
		LogManager:    logging.NewSlogManager(),
		FlushInterval: time.Hour,
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func commit(tokenID, movementID string, at time.Time, xs ...int) *core.MovementCommit {
	c := &core.MovementCommit{
		TokenID:    tokenID,
		MovementID: movementID,
		UserID:     "gm",
		Method:     core.MethodAPI,
		Time:       at,
	}
	for _, x := range xs {
		c.Waypoints = append(c.Waypoints, core.MeasuredWaypoint{
			Waypoint:   core.Waypoint{X: x, Width: 1, Height: 1, Action: "walk"},
			Distance:   5,
			Cost:       1,
			Spaces:     1,
			MovementID: movementID,
			UserID:     "gm",
		})
	}
	return c
}

func TestNew_Defaults(t *testing.T) {
	b := New(Dependencies{})
	require.NotNil(t, b)
	assert.Equal(t, defaultFlushInterval, b.deps.FlushInterval)
	assert.NotNil(t, b.deps.LogManager)
}

func TestInitClose(t *testing.T) {
	b := New(Dependencies{DB: openTestDB(t)})

	err := b.Init()
	require.NoError(t, err)
	require.NotNil(t, b.queues)
	require.NotNil(t, b.stopChan)
	assert.True(t, b.DB().Migrator().HasTable(&model.MovementCommit{}))

	require.NoError(t, b.Close())
	// second close is a no-op
	require.NoError(t, b.Close())
}

func TestCommitMovement_QueuesUntilFlush(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.CommitMovement(commit("tok-1", "mv-1", time.Now(), 0, 100, 200)))
	assert.Equal(t, 1, b.queues.Commits.Len())
	assert.Equal(t, 3, b.queues.History.Len())

	require.NoError(t, b.Flush())
	assert.True(t, b.queues.Commits.Empty())

	var commits []model.MovementCommit
	require.NoError(t, b.DB().Find(&commits).Error)
	require.Len(t, commits, 1)
	assert.Equal(t, "mv-1", commits[0].MovementID)
	assert.Equal(t, 15.0, commits[0].Distance)
}

func TestLoadMovementHistory_Ordered(t *testing.T) {
	b := newTestBackend(t)
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, b.CommitMovement(commit("tok-1", "mv-1", t0, 0, 100, 200)))
	require.NoError(t, b.CommitMovement(commit("tok-2", "mv-2", t0, 500)))
	require.NoError(t, b.CommitMovement(commit("tok-1", "mv-1", t0.Add(time.Second), 200, 300)))

	history, err := b.LoadMovementHistory("tok-1")
	require.NoError(t, err)
	require.Len(t, history, 5)

	xs := make([]int, len(history))
	for i, w := range history {
		xs[i] = w.X
	}
	assert.Equal(t, []int{0, 100, 200, 200, 300}, xs)
	assert.Equal(t, "mv-1", history[0].MovementID)
}

func TestLoadMovementHistory_InfiniteCostClamped(t *testing.T) {
	b := newTestBackend(t)
	c := commit("tok-1", "mv-1", time.Now(), 0, 100)
	c.Waypoints[1].Cost = math.Inf(1)

	require.NoError(t, b.CommitMovement(c))
	history, err := b.LoadMovementHistory("tok-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, math.MaxFloat64, history[1].Cost)
}

func TestClearMovementHistory(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.CommitMovement(commit("tok-1", "mv-1", time.Now(), 0, 100)))
	require.NoError(t, b.CommitMovement(commit("tok-2", "mv-2", time.Now(), 0, 100)))

	// the tok-1 rows are still queued when the clear arrives
	require.NoError(t, b.ClearMovementHistory("tok-1"))

	h1, err := b.LoadMovementHistory("tok-1")
	require.NoError(t, err)
	assert.Empty(t, h1)

	h2, err := b.LoadMovementHistory("tok-2")
	require.NoError(t, err)
	assert.Len(t, h2, 2)

	var commits int64
	require.NoError(t, b.DB().Model(&model.MovementCommit{}).Count(&commits).Error)
	assert.Equal(t, int64(2), commits, "commits are kept as an audit log")
}

func TestRecordRegionEvent_StampsScene(t *testing.T) {
	b := newTestBackend(t)

	sceneID, err := b.StartScene("crypt", grid.Config{Type: grid.HexRowsOdd, Size: 100, Distance: 5, Units: "ft"})
	require.NoError(t, err)
	require.NotZero(t, sceneID)

	require.NoError(t, b.RecordRegionEvent(&core.RegionEvent{
		RegionID:        "pit",
		UserID:          "gm",
		Name:            core.EventEnter,
		MovingObjectIDs: []string{"tok-1"},
		Time:            time.Now(),
	}))
	require.NoError(t, b.Flush())

	var events []model.RegionEvent
	require.NoError(t, b.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, sceneID, events[0].SceneID)
	assert.Equal(t, "ENTER", events[0].Name)

	var scene model.Scene
	require.NoError(t, b.DB().First(&scene, sceneID).Error)
	assert.Equal(t, "hexRowsOdd", scene.GridType)
	assert.Equal(t, "equidistant", scene.Diagonals)
}

func TestBackgroundWriterDrainsQueues(t *testing.T) {
	b := New(Dependencies{DB: openTestDB(t), FlushInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.CommitMovement(commit("tok-1", "mv-1", time.Now(), 0, 100)))

	assert.Eventually(t, func() bool {
		return b.queues.Commits.Empty() && b.queues.History.Empty()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseFlushesPending(t *testing.T) {
	db := openTestDB(t)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())

	require.NoError(t, b.CommitMovement(commit("tok-1", "mv-1", time.Now(), 0, 100)))
	require.NoError(t, b.Close())

	var n int64
	require.NoError(t, db.Model(&model.HistoryEntry{}).Count(&n).Error)
	assert.Equal(t, int64(2), n)
}
