package main

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/solarlune/resolv"
	"gopkg.in/yaml.v3"
)

const (
	tagSolid       = "solid"
	tagZone        = "zone"
	tagParticipant = "participant"
	tagArrow       = "arrow"
)

// Collider is the game's view of static geometry and participant bodies.
// The game never computes wall collision itself.
type Collider interface {
	Place(id string, pos Point, w, h float64) Point
	Move(id string, dx, dy float64) Point
	Remove(id string)
	ZonesAt(id string) []string
	Sweep(box Rect, dx, dy float64) SweepResult
}

// Contact is one participant body touched by a sweep
type Contact struct {
	ID       string
	Touching Touching
}

// SweepResult lists bodies touched nearest first; Blocked is set when the
// sweep ran into a wall or left the arena.
type SweepResult struct {
	Hits    []Contact
	Blocked bool
}

// Layout is the arena description loaded from YAML
type Layout struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	CellSize    int     `yaml:"cell_size"`
	Walls       []Rect  `yaml:"walls"`
	Zones       []Zone  `yaml:"zones"`
	Spawns      []Point `yaml:"spawns"`
	FightSpawns []Point `yaml:"fight_spawns"`
}

// Spawns are the positions participants are placed at
type Spawns struct {
	Default []Point
	Fight   []Point
}

// LoadLayout reads an arena layout file
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read arena %s: %w", path, err)
	}
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse arena %s: %w", path, err)
	}
	if err := l.validate(); err != nil {
		return nil, fmt.Errorf("arena %s: %w", path, err)
	}
	return &l, nil
}

// DefaultLayout is the built-in island used when no arena file is configured.
func DefaultLayout() *Layout {
	return &Layout{
		Width:    960,
		Height:   640,
		CellSize: 16,
		Walls: []Rect{
			{X: 304, Y: 160, W: 64, H: 96}, // pond
			{X: 592, Y: 0, W: 16, H: 224},  // fight arena fence
		},
		Zones: []Zone{
			{ID: "vote-yes", Value: "yes", X: 64, Y: 416, W: 128, H: 96},
			{ID: "vote-no", Value: "no", X: 224, Y: 416, W: 128, H: 96},
		},
		Spawns: []Point{
			{X: 96, Y: 96}, {X: 160, Y: 96}, {X: 96, Y: 224}, {X: 160, Y: 224},
		},
		FightSpawns: []Point{
			{X: 672, Y: 64}, {X: 864, Y: 64}, {X: 672, Y: 160}, {X: 864, Y: 160},
		},
	}
}

func (l *Layout) validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("%w: width and height must be positive", ErrValidation)
	}
	if l.CellSize <= 0 {
		l.CellSize = 16
	}
	if len(l.Spawns) == 0 {
		return fmt.Errorf("%w: at least one spawn is required", ErrValidation)
	}
	if len(l.FightSpawns) == 0 {
		l.FightSpawns = l.Spawns
	}
	seen := make(map[string]bool, len(l.Zones))
	for _, z := range l.Zones {
		if z.ID == "" || seen[z.ID] {
			return fmt.Errorf("%w: zone ids must be unique and non-empty", ErrValidation)
		}
		seen[z.ID] = true
	}
	return nil
}

// Arena is a resolv space holding walls, zones and one body per participant
type Arena struct {
	layout *Layout
	space  *resolv.Space
	bodies map[string]*resolv.Object
}

// NewArena builds the collision space for a layout
func NewArena(l *Layout) (*Arena, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	space := resolv.NewSpace(l.Width, l.Height, l.CellSize, l.CellSize)
	for _, w := range l.Walls {
		obj := resolv.NewObject(w.X, w.Y, w.W, w.H, tagSolid)
		obj.SetShape(resolv.NewRectangle(0, 0, w.W, w.H))
		space.Add(obj)
	}
	for _, z := range l.Zones {
		obj := resolv.NewObject(z.X, z.Y, z.W, z.H, tagZone)
		obj.Data = z.ID
		space.Add(obj)
	}
	return &Arena{
		layout: l,
		space:  space,
		bodies: make(map[string]*resolv.Object),
	}, nil
}

func (a *Arena) Zones() []Zone {
	return a.layout.Zones
}

func (a *Arena) Spawns() Spawns {
	return Spawns{Default: a.layout.Spawns, Fight: a.layout.FightSpawns}
}

// Place puts (or teleports) the participant's body at pos, resizing it to
// w x h, and returns the position after clamping to the arena.
func (a *Arena) Place(id string, pos Point, w, h float64) Point {
	obj, ok := a.bodies[id]
	if !ok {
		obj = resolv.NewObject(pos.X, pos.Y, w, h, tagParticipant)
		obj.SetShape(resolv.NewRectangle(0, 0, w, h))
		obj.Data = id
		a.space.Add(obj)
		a.bodies[id] = obj
	}
	if obj.W != w || obj.H != h {
		obj.W, obj.H = w, h
		obj.SetShape(resolv.NewRectangle(0, 0, w, h))
	}
	obj.X = Clamp(pos.X, 0, float64(a.layout.Width)-obj.W)
	obj.Y = Clamp(pos.Y, 0, float64(a.layout.Height)-obj.H)
	obj.Update()
	return Point{X: obj.X, Y: obj.Y}
}

// Move displaces the body, stopping flush against walls and the arena
// edge, and returns the resolved position.
func (a *Arena) Move(id string, dx, dy float64) Point {
	obj, ok := a.bodies[id]
	if !ok {
		return Point{}
	}
	if dx != 0 {
		if solids := objectsHit(obj, obj.Check(dx, 0, tagSolid), dx, 0, tagSolid); len(solids) > 0 {
			dx = nearestContact(obj, solids, dx, 0)
		}
		obj.X = Clamp(obj.X+dx, 0, float64(a.layout.Width)-obj.W)
	}
	if dy != 0 {
		if solids := objectsHit(obj, obj.Check(0, dy, tagSolid), 0, dy, tagSolid); len(solids) > 0 {
			dy = nearestContact(obj, solids, 0, dy)
		}
		obj.Y = Clamp(obj.Y+dy, 0, float64(a.layout.Height)-obj.H)
	}
	obj.Update()
	return Point{X: obj.X, Y: obj.Y}
}

// nearestContact returns the largest displacement along the single moving
// axis that stops flush against the closest of the solids.
func nearestContact(obj *resolv.Object, solids []*resolv.Object, dx, dy float64) float64 {
	best := math.Inf(1)
	for _, s := range solids {
		var d float64
		switch {
		case dx > 0:
			d = s.X - (obj.X + obj.W)
		case dx < 0:
			d = s.X + s.W - obj.X
		case dy > 0:
			d = s.Y - (obj.Y + obj.H)
		default:
			d = s.Y + s.H - obj.Y
		}
		if math.Abs(d) < math.Abs(best) {
			best = d
		}
	}
	return best
}

func (a *Arena) Remove(id string) {
	obj, ok := a.bodies[id]
	if !ok {
		return
	}
	a.space.Remove(obj)
	delete(a.bodies, id)
}

// ZonesAt returns the ids of every zone the body overlaps.
func (a *Arena) ZonesAt(id string) []string {
	obj, ok := a.bodies[id]
	if !ok {
		return nil
	}
	var ids []string
	for _, z := range objectsHit(obj, obj.Check(0, 0, tagZone), 0, 0, tagZone) {
		if zid, ok := z.Data.(string); ok {
			ids = append(ids, zid)
		}
	}
	return ids
}

// Sweep tests the region box covers while travelling (dx, dy) against
// participant bodies and walls. Bodies past the first wall are not hit.
func (a *Arena) Sweep(box Rect, dx, dy float64) SweepResult {
	span := Rect{
		X: math.Min(box.X, box.X+dx),
		Y: math.Min(box.Y, box.Y+dy),
		W: box.W + math.Abs(dx),
		H: box.H + math.Abs(dy),
	}
	var res SweepResult
	end := box.Offset(dx, dy)
	if end.X < 0 || end.Y < 0 || end.X+end.W > float64(a.layout.Width) || end.Y+end.H > float64(a.layout.Height) {
		res.Blocked = true
	}

	probe := resolv.NewObject(span.X, span.Y, span.W, span.H, tagArrow)
	a.space.Add(probe)
	defer a.space.Remove(probe)

	wall := math.Inf(1)
	for _, s := range objectsHit(probe, probe.Check(0, 0, tagSolid), 0, 0, tagSolid) {
		res.Blocked = true
		wall = math.Min(wall, entryDist(box, rectOf(s), dx, dy))
	}
	var bodies []*resolv.Object
	for _, b := range objectsHit(probe, probe.Check(0, 0, tagParticipant), 0, 0, tagParticipant) {
		if entryDist(box, rectOf(b), dx, dy) < wall {
			bodies = append(bodies, b)
		}
	}
	cx, cy := box.X+box.W/2, box.Y+box.H/2
	sort.SliceStable(bodies, func(i, j int) bool {
		return centerDist(bodies[i], cx, cy) < centerDist(bodies[j], cx, cy)
	})
	touching := touchingFor(dx, dy)
	for _, b := range bodies {
		if id, ok := b.Data.(string); ok {
			res.Hits = append(res.Hits, Contact{ID: id, Touching: touching})
		}
	}
	return res
}

// entryDist is how far box travels along (dx, dy) before its leading edge
// reaches o. Sweeps move along one axis.
func entryDist(box, o Rect, dx, dy float64) float64 {
	switch {
	case dx > 0:
		return o.X - (box.X + box.W)
	case dx < 0:
		return box.X - (o.X + o.W)
	case dy > 0:
		return o.Y - (box.Y + box.H)
	case dy < 0:
		return box.Y - (o.Y + o.H)
	}
	return 0
}

func centerDist(obj *resolv.Object, x, y float64) float64 {
	return math.Hypot(obj.X+obj.W/2-x, obj.Y+obj.H/2-y)
}
