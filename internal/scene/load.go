package scene

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/OCAP2/movement/internal/grid"
	"github.com/OCAP2/movement/internal/region"
	"github.com/OCAP2/movement/internal/walls"
	"github.com/OCAP2/movement/pkg/core"
)

// File is the YAML form of a scene.
type File struct {
	Name    string       `yaml:"name"`
	Grid    GridSpec     `yaml:"grid"`
	Walls   []WallSpec   `yaml:"walls,omitempty"`
	Regions []RegionSpec `yaml:"regions,omitempty"`
	Tokens  []TokenSpec  `yaml:"tokens,omitempty"`
}

type GridSpec struct {
	Type      string  `yaml:"type"`
	Size      float64 `yaml:"size"`
	Distance  float64 `yaml:"distance"`
	Units     string  `yaml:"units"`
	Diagonals string  `yaml:"diagonals"`
}

type WallSpec struct {
	ID        string     `yaml:"id"`
	A         [2]float64 `yaml:"a"`
	B         [2]float64 `yaml:"b"`
	Restricts []string   `yaml:"restricts"`
	Door      string     `yaml:"door"`
	Direction string     `yaml:"direction"`
}

type ShapeSpec struct {
	Type     string       `yaml:"type"`
	X        float64      `yaml:"x"`
	Y        float64      `yaml:"y"`
	Width    float64      `yaml:"width"`
	Height   float64      `yaml:"height"`
	RadiusX  float64      `yaml:"radiusX"`
	RadiusY  float64      `yaml:"radiusY"`
	Rotation float64      `yaml:"rotation"`
	Points   [][2]float64 `yaml:"points"`
	Hole     bool         `yaml:"hole"`
}

type RegionSpec struct {
	ID        string                `yaml:"id"`
	Name      string                `yaml:"name"`
	Shapes    []ShapeSpec           `yaml:"shapes"`
	Bottom    *float64              `yaml:"bottom"`
	Top       *float64              `yaml:"top"`
	Behaviors []region.BehaviorSpec `yaml:"behaviors"`
}

type TokenSpec struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	X         int     `yaml:"x"`
	Y         int     `yaml:"y"`
	Elevation float64 `yaml:"elevation"`
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	Shape     string  `yaml:"shape"`
	Action    string  `yaml:"action"`
}

// LoadFile reads a YAML scene and returns it with its initial tokens.
func LoadFile(path string) (*Context, []core.Token, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	ctx, tokens, err := f.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return ctx, tokens, nil
}

// ReadFile decodes a YAML scene without building it, so callers can fill in
// what the file leaves out.
func ReadFile(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	f, err := Decode(b)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode parses the YAML form of a scene.
func Decode(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing scene: %w", err)
	}
	return f, nil
}

// Parse builds a scene from YAML.
func Parse(data []byte) (*Context, []core.Token, error) {
	f, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return f.Build()
}

// Build compiles the scene description.
func (f File) Build() (*Context, []core.Token, error) {
	g, err := f.Grid.build()
	if err != nil {
		return nil, nil, err
	}

	ws := walls.NewSet()
	for k, spec := range f.Walls {
		w, err := spec.build()
		if err != nil {
			return nil, nil, fmt.Errorf("wall %d: %w", k, err)
		}
		ws.Add(w)
	}

	regions := make([]*region.Region, 0, len(f.Regions))
	for _, spec := range f.Regions {
		r, err := spec.build()
		if err != nil {
			return nil, nil, fmt.Errorf("region %q: %w", spec.ID, err)
		}
		regions = append(regions, r)
	}

	tokens := make([]core.Token, 0, len(f.Tokens))
	for _, spec := range f.Tokens {
		t, err := spec.build()
		if err != nil {
			return nil, nil, fmt.Errorf("token %q: %w", spec.ID, err)
		}
		tokens = append(tokens, t)
	}

	return New(f.Name, g, ws, regions...), tokens, nil
}

func (s GridSpec) build() (grid.Grid, error) {
	cfg := grid.Config{Type: grid.Square, Size: s.Size, Distance: s.Distance, Units: s.Units}
	if cfg.Size == 0 {
		cfg.Size = 100
	}
	if cfg.Distance == 0 {
		cfg.Distance = 1
	}
	var err error
	if s.Type != "" {
		if cfg.Type, err = grid.ParseType(s.Type); err != nil {
			return nil, err
		}
	}
	if s.Diagonals != "" {
		if cfg.Diagonals, err = grid.ParseDiagonals(s.Diagonals); err != nil {
			return nil, err
		}
	}
	return grid.New(cfg)
}

func (s WallSpec) build() (walls.Wall, error) {
	w := walls.Wall{
		ID: s.ID,
		A:  core.Point{X: s.A[0], Y: s.A[1]},
		B:  core.Point{X: s.B[0], Y: s.B[1]},
	}
	restricts := s.Restricts
	if len(restricts) == 0 {
		restricts = []string{"move", "sight", "light", "sound"}
	}
	for _, name := range restricts {
		t, err := walls.ParseEdgeType(name)
		if err != nil {
			return walls.Wall{}, err
		}
		w.Restricts = append(w.Restricts, t)
	}
	var err error
	if w.Door, err = walls.ParseDoor(s.Door); err != nil {
		return walls.Wall{}, err
	}
	if w.Direction, err = walls.ParseDirection(s.Direction); err != nil {
		return walls.Wall{}, err
	}
	return w, nil
}

func (s RegionSpec) build() (*region.Region, error) {
	cfg := region.Config{
		ID:        s.ID,
		Name:      s.Name,
		Elevation: region.Elevation{Bottom: s.Bottom, Top: s.Top},
	}
	for _, sh := range s.Shapes {
		typ, err := region.ParseShapeType(sh.Type)
		if err != nil {
			return nil, err
		}
		shape := region.Shape{
			Type:     typ,
			X:        sh.X,
			Y:        sh.Y,
			Width:    sh.Width,
			Height:   sh.Height,
			RadiusX:  sh.RadiusX,
			RadiusY:  sh.RadiusY,
			Rotation: sh.Rotation,
			Hole:     sh.Hole,
		}
		for _, p := range sh.Points {
			shape.Points = append(shape.Points, core.Point{X: p[0], Y: p[1]})
		}
		cfg.Shapes = append(cfg.Shapes, shape)
	}
	for _, b := range s.Behaviors {
		behavior, err := region.BuildBehavior(b)
		if err != nil {
			return nil, err
		}
		cfg.Behaviors = append(cfg.Behaviors, behavior)
	}
	return region.New(cfg)
}

func (s TokenSpec) build() (core.Token, error) {
	w := core.Waypoint{
		X:         s.X,
		Y:         s.Y,
		Elevation: s.Elevation,
		Width:     s.Width,
		Height:    s.Height,
		Action:    s.Action,
	}
	if w.Width == 0 {
		w.Width = 1
	}
	if w.Height == 0 {
		w.Height = 1
	}
	if s.Shape != "" {
		shape, err := core.ParseTokenShape(s.Shape)
		if err != nil {
			return core.Token{}, err
		}
		w.Shape = shape
	}
	if s.ID == "" {
		return core.Token{}, fmt.Errorf("token needs an id")
	}
	name := s.Name
	if name == "" {
		name = s.ID
	}
	return core.Token{ID: s.ID, Name: name, Position: w, Rendered: w.Position()}, nil
}
