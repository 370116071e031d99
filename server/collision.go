package main

import "github.com/solarlune/resolv"

// Touching reports which sides of a struck body made contact
type Touching struct {
	Up, Down, Left, Right bool
}

// touchingFor derives the contact sides of a body struck by something
// travelling (dx, dy): an arrow moving right lands on the body's left side.
func touchingFor(dx, dy float64) Touching {
	return Touching{
		Up:    dy > 0,
		Down:  dy < 0,
		Left:  dx > 0,
		Right: dx < 0,
	}
}

// contactSide picks the impact orientation. Axes are checked up, down,
// right; left is the fallback.
func contactSide(t Touching) Orientation {
	switch {
	case t.Up:
		return FacingUp
	case t.Down:
		return FacingDown
	case t.Right:
		return FacingRight
	default:
		return FacingLeft
	}
}

// Rect is an axis-aligned box in world px
type Rect struct {
	X, Y, W, H float64
}

// Overlaps reports strict AABB intersection; shared edges do not count.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

func (r Rect) Offset(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

func rectOf(obj *resolv.Object) Rect {
	return Rect{X: obj.X, Y: obj.Y, W: obj.W, H: obj.H}
}

// objectsHit narrows a cell-level resolv collision down to the objects whose
// boxes actually intersect the checking object moved by (dx, dy).
func objectsHit(obj *resolv.Object, check *resolv.Collision, dx, dy float64, tags ...string) []*resolv.Object {
	if check == nil {
		return nil
	}
	moved := rectOf(obj).Offset(dx, dy)
	var out []*resolv.Object
	for _, o := range check.ObjectsByTags(tags...) {
		if o == obj {
			continue
		}
		if moved.Overlaps(rectOf(o)) {
			out = append(out, o)
		}
	}
	return out
}
