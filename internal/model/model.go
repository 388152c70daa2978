package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Scene{},
	&MovementCommit{},
	&HistoryEntry{},
	&RegionEvent{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// Scene records each scene a process has loaded, so rows in the movement
// tables can be traced back to a session.
type Scene struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	StartTime time.Time `json:"startTime" gorm:"type:timestamptz;"`
	Name      string    `json:"name" gorm:"size:128"`
	GridType  string    `json:"gridType" gorm:"size:32"`
	GridSize  float64   `json:"gridSize"`
	Distance  float64   `json:"distance"`
	Units     string    `json:"units" gorm:"size:16"`
	Diagonals string    `json:"diagonals" gorm:"size:32"`
}

func (*Scene) TableName() string {
	return "scenes"
}

////////////////////////
// MOVEMENT
////////////////////////

// MovementCommit is one committed checkpoint leg.
type MovementCommit struct {
	ID         uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time       `json:"time" gorm:"type:timestamptz;index:idx_movementcommit_time"`
	SceneID    uint            `json:"sceneId" gorm:"index:idx_movementcommit_scene_id"`
	TokenID    string          `json:"tokenId" gorm:"size:64;index:idx_movementcommit_token_id"`
	MovementID string          `json:"movementId" gorm:"size:64;index:idx_movementcommit_movement_id"`
	UserID     string          `json:"userId" gorm:"size:64"`
	Method     string          `json:"method" gorm:"size:16"`
	AutoRotate bool            `json:"autoRotate" gorm:"default:false"`
	ShowRuler  bool            `json:"showRuler" gorm:"default:false"`
	Start      geom.Point      `json:"start"`     // top-left of the first waypoint of the leg
	End        geom.Point      `json:"end"`       // top-left of the checkpoint the leg lands on
	Path       geom.LineString `json:"path"`      // top-left corners of the waypoints passed
	Distance   float64         `json:"distance"`  // summed over the leg
	Cost       float64         `json:"cost"`      // summed over the leg, impassable stored as MaxFloat64
	Waypoints  datatypes.JSON  `json:"waypoints"` // []core.MeasuredWaypoint
	Pending    datatypes.JSON  `json:"pending"`   // []core.Waypoint still to traverse after this leg
}

func (*MovementCommit) TableName() string {
	return "movement_commits"
}

// HistoryEntry is one measured waypoint of a token's recorded history.
type HistoryEntry struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time      `json:"time" gorm:"type:timestamptz;"`
	SceneID    uint           `json:"sceneId" gorm:"index:idx_historyentry_scene_id"`
	TokenID    string         `json:"tokenId" gorm:"size:64;index:idx_historyentry_token_id"`
	MovementID string         `json:"movementId" gorm:"size:64"`
	UserID     string         `json:"userId" gorm:"size:64"`
	Seq        int            `json:"seq"` // position within its commit
	Position   geom.Point     `json:"position"`
	Elevation  float64        `json:"elevation"`
	Action     string         `json:"action" gorm:"size:32"`
	Cost       float64        `json:"cost"`
	Distance   float64        `json:"distance"`
	Spaces     int            `json:"spaces"`
	Diagonals  int            `json:"diagonals"`
	Waypoint   datatypes.JSON `json:"waypoint"` // full core.MeasuredWaypoint
}

func (*HistoryEntry) TableName() string {
	return "history_entries"
}

// RegionEvent is a region crossing event delivered after a leg committed.
type RegionEvent struct {
	ID              uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time            time.Time      `json:"time" gorm:"type:timestamptz;index:idx_regionevent_time"`
	SceneID         uint           `json:"sceneId" gorm:"index:idx_regionevent_scene_id"`
	RegionID        string         `json:"regionId" gorm:"size:64;index:idx_regionevent_region_id"`
	UserID          string         `json:"userId" gorm:"size:64"`
	Name            string         `json:"eventName" gorm:"size:16"`
	Data            datatypes.JSON `json:"eventData"`
	MovingObjectIDs datatypes.JSON `json:"movingObjectIds"`
}

func (*RegionEvent) TableName() string {
	return "region_events"
}
