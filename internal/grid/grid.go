// Package grid converts between pixel positions and grid offsets, enumerates
// the cells crossed by a straight move, and measures steps under the
// configured diagonal rule. Square, hexagonal and gridless surfaces are supported.
package grid

import (
	"fmt"
	"math"
	"strings"

	"github.com/OCAP2/movement/pkg/core"
)

// Type identifies the layout of the playing surface.
type Type int

const (
	Gridless Type = iota
	Square
	HexRowsOdd
	HexRowsEven
	HexColumnsOdd
	HexColumnsEven
)

var typeNames = map[string]Type{
	"gridless":       Gridless,
	"square":         Square,
	"hexrowsodd":     HexRowsOdd,
	"hexrowseven":    HexRowsEven,
	"hexcolumnsodd":  HexColumnsOdd,
	"hexcolumnseven": HexColumnsEven,
}

// ParseType parses a grid type name such as "square" or "hexRowsOdd".
func ParseType(name string) (Type, error) {
	t, ok := typeNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown grid type %q", name)
	}
	return t, nil
}

func (t Type) String() string {
	switch t {
	case Gridless:
		return "gridless"
	case Square:
		return "square"
	case HexRowsOdd:
		return "hexRowsOdd"
	case HexRowsEven:
		return "hexRowsEven"
	case HexColumnsOdd:
		return "hexColumnsOdd"
	case HexColumnsEven:
		return "hexColumnsEven"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// IsHex reports whether the type is one of the hexagonal layouts.
func (t Type) IsHex() bool {
	return t >= HexRowsOdd && t <= HexColumnsEven
}

// Diagonals is the rule used to price diagonal steps on square grids.
type Diagonals int

const (
	Equidistant Diagonals = iota
	Exact
	Approximate
	Alternating1
	Alternating2
	Rectilinear
	Illegal
)

var diagonalNames = map[string]Diagonals{
	"equidistant":  Equidistant,
	"exact":        Exact,
	"approximate":  Approximate,
	"alternating1": Alternating1,
	"alternating2": Alternating2,
	"rectilinear":  Rectilinear,
	"illegal":      Illegal,
}

// ParseDiagonals parses a diagonal rule name.
func ParseDiagonals(name string) (Diagonals, error) {
	d, ok := diagonalNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown diagonal rule %q", name)
	}
	return d, nil
}

func (d Diagonals) String() string {
	for name, v := range diagonalNames {
		if v == d {
			return name
		}
	}
	return fmt.Sprintf("diagonals(%d)", int(d))
}

// Config describes a grid.
type Config struct {
	Type      Type
	Size      float64 // pixels per cell
	Distance  float64 // units per cell
	Units     string
	Diagonals Diagonals
}

// StepMeasure is the measurement of a single step.
type StepMeasure struct {
	Distance  float64
	Spaces    int
	Diagonals int
}

// Add accumulates another step.
func (m StepMeasure) Add(o StepMeasure) StepMeasure {
	return StepMeasure{
		Distance:  m.Distance + o.Distance,
		Spaces:    m.Spaces + o.Spaces,
		Diagonals: m.Diagonals + o.Diagonals,
	}
}

// DiagonalState carries the diagonal parity across the steps of one path
// for the alternating rules.
type DiagonalState struct {
	count int
}

// Grid is the contract the movement engine relies on.
type Grid interface {
	Config() Config
	IsGridless() bool
	// Offset returns the cell containing the point.
	Offset(p core.Point) core.GridOffset
	// Center returns the centre of the cell in pixels.
	Center(o core.GridOffset) core.Point
	// Reference returns the cell used to track a token through the grid.
	Reference(w core.Waypoint) core.GridOffset
	// TopLeft returns the top-left pixel of a token of the given size whose
	// reference cell is o.
	TopLeft(o core.GridOffset, width, height float64) core.Point
	// DirectPath lists the cells between two offsets, both inclusive.
	DirectPath(from, to core.GridOffset) []core.GridOffset
	Neighbors(o core.GridOffset) []core.GridOffset
	// MeasureStep measures the move between two cells.
	MeasureStep(from, to core.GridOffset, st *DiagonalState) StepMeasure
	// MeasurePoints measures a straight move between two pixel positions.
	MeasurePoints(a, b core.Point) StepMeasure
	// Translate moves cell by the delta between the two reference cells.
	Translate(cell, from, to core.GridOffset) core.GridOffset
	// Footprint lists the cells occupied by a token at a waypoint.
	Footprint(w core.Waypoint) []core.GridOffset
	// TokenCenter is the pixel centre of a token at a waypoint.
	TokenCenter(w core.Waypoint) core.Point
}

// New builds a grid from its configuration.
func New(cfg Config) (Grid, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("grid size must be positive, got %v", cfg.Size)
	}
	if cfg.Distance <= 0 {
		return nil, fmt.Errorf("grid distance must be positive, got %v", cfg.Distance)
	}
	switch {
	case cfg.Type == Gridless:
		return &gridless{base{cfg}}, nil
	case cfg.Type == Square:
		return &square{base{cfg}}, nil
	case cfg.Type.IsHex():
		return newHex(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported grid type %d", cfg.Type)
	}
}

// Must is like New but panics on an invalid configuration. Intended for tests
// and static scenes.
func Must(cfg Config) Grid {
	g, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return g
}

type base struct {
	cfg Config
}

func (b base) Config() Config { return b.cfg }

func (b base) TokenCenter(w core.Waypoint) core.Point {
	return core.Point{
		X: float64(w.X) + w.Width*b.cfg.Size/2,
		Y: float64(w.Y) + w.Height*b.cfg.Size/2,
	}
}

func (b base) topLeftAround(c core.Point, width, height float64) core.Point {
	return core.Point{
		X: c.X - width*b.cfg.Size/2,
		Y: c.Y - height*b.cfg.Size/2,
	}
}

func (b base) MeasurePoints(a, c core.Point) StepMeasure {
	d := math.Hypot(c.X-a.X, c.Y-a.Y)
	return StepMeasure{Distance: d / b.cfg.Size * b.cfg.Distance}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
