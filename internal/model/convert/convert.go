// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/movement/internal/geo"
	"github.com/OCAP2/movement/internal/model"
	"github.com/OCAP2/movement/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// waypointToPoint converts the top-left corner of a waypoint to a geom.Point
func waypointToPoint(w core.Waypoint) (geom.Point, error) {
	return geo.Point(core.Point{X: float64(w.X), Y: float64(w.Y)})
}

// pathToLineString converts the waypoints of a leg to a geom.LineString.
// Repeated positions are collapsed; a leg that never leaves its start has an
// empty path.
func pathToLineString(wps []core.MeasuredWaypoint) (geom.LineString, error) {
	pts := make([]core.Point, 0, len(wps))
	for _, w := range wps {
		p := core.Point{X: float64(w.X), Y: float64(w.Y)}
		if n := len(pts); n > 0 && pts[n-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	if len(pts) < 2 {
		return geom.LineString{}, nil
	}
	return geo.LineString(pts)
}

// toJSON marshals v for a JSON column, falling back to an empty array.
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

// CoreToMovementCommit converts a core.MovementCommit to a GORM model.MovementCommit.
func CoreToMovementCommit(c core.MovementCommit) (model.MovementCommit, error) {
	distance, cost := c.Totals()
	m := model.MovementCommit{
		Time:       c.Time,
		TokenID:    c.TokenID,
		MovementID: c.MovementID,
		UserID:     c.UserID,
		Method:     string(c.Method),
		AutoRotate: c.AutoRotate,
		ShowRuler:  c.ShowRuler,
		Distance:   distance,
		Cost:       core.Finite(cost),
		Waypoints:  toJSON(core.FiniteCosts(c.Waypoints)),
		Pending:    toJSON(c.Pending),
	}
	if len(c.Waypoints) == 0 {
		return m, nil
	}

	var err error
	if m.Start, err = waypointToPoint(c.Waypoints[0].Waypoint); err != nil {
		return model.MovementCommit{}, fmt.Errorf("start of %s: %w", c.MovementID, err)
	}
	if m.End, err = waypointToPoint(c.Waypoints[len(c.Waypoints)-1].Waypoint); err != nil {
		return model.MovementCommit{}, fmt.Errorf("end of %s: %w", c.MovementID, err)
	}
	if m.Path, err = pathToLineString(c.Waypoints); err != nil {
		return model.MovementCommit{}, fmt.Errorf("path of %s: %w", c.MovementID, err)
	}
	return m, nil
}

// CoreToHistoryEntries flattens the waypoints of a commit into history rows,
// numbered in path order.
func CoreToHistoryEntries(c core.MovementCommit) ([]model.HistoryEntry, error) {
	out := make([]model.HistoryEntry, 0, len(c.Waypoints))
	for seq, w := range core.FiniteCosts(c.Waypoints) {
		pos, err := waypointToPoint(w.Waypoint)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d of %s: %w", seq, c.MovementID, err)
		}
		out = append(out, model.HistoryEntry{
			Time:       c.Time,
			TokenID:    c.TokenID,
			MovementID: w.MovementID,
			UserID:     w.UserID,
			Seq:        seq,
			Position:   pos,
			Elevation:  w.Elevation,
			Action:     w.Action,
			Cost:       w.Cost,
			Distance:   w.Distance,
			Spaces:     w.Spaces,
			Diagonals:  w.Diagonals,
			Waypoint:   toJSON(w),
		})
	}
	return out, nil
}

// CoreToRegionEvent converts a core.RegionEvent to a GORM model.RegionEvent.
func CoreToRegionEvent(e core.RegionEvent) model.RegionEvent {
	data := datatypes.JSON("{}")
	if len(e.Data) > 0 {
		if b, err := json.Marshal(e.Data); err == nil {
			data = b
		}
	}
	return model.RegionEvent{
		Time:            e.Time,
		RegionID:        e.RegionID,
		UserID:          e.UserID,
		Name:            string(e.Name),
		Data:            data,
		MovingObjectIDs: toJSON(e.MovingObjectIDs),
	}
}

// HistoryEntryToCore restores the measured waypoint stored in a history row.
func HistoryEntryToCore(h model.HistoryEntry) (core.MeasuredWaypoint, error) {
	var w core.MeasuredWaypoint
	if err := json.Unmarshal(h.Waypoint, &w); err != nil {
		return core.MeasuredWaypoint{}, fmt.Errorf("history entry %d: %w", h.ID, err)
	}
	return w, nil
}

// RegionEventToCore converts a GORM RegionEvent to a core.RegionEvent.
func RegionEventToCore(e model.RegionEvent) core.RegionEvent {
	out := core.RegionEvent{
		RegionID: e.RegionID,
		UserID:   e.UserID,
		Name:     core.RegionEventName(e.Name),
		Time:     e.Time,
	}
	if len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &out.Data)
	}
	if len(e.MovingObjectIDs) > 0 {
		_ = json.Unmarshal(e.MovingObjectIDs, &out.MovingObjectIDs)
	}
	return out
}
