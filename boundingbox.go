package quadtree

import "fmt"

// Quadrant identifies one of the four children of a split node.
type Quadrant int

const (
	Nw Quadrant = iota
	Sw
	Ne
	Se
)

func (q Quadrant) String() string {
	switch q {
	case Nw:
		return "nw"
	case Sw:
		return "sw"
	case Ne:
		return "ne"
	case Se:
		return "se"
	}
	return "quadrant(" + fmt.Sprint(int(q)) + ")"
}

// BoundingBox is an axis aligned rectangle given by its top-left and
// bottom-right corners. TopLeft must not exceed BotRight on either axis.
type BoundingBox struct {
	TopLeft  Point
	BotRight Point
}

func NewBoundingBox(topLeft, botRight Point) BoundingBox {
	return BoundingBox{TopLeft: topLeft, BotRight: botRight}
}

func (b BoundingBox) String() string {
	return b.TopLeft.String() + "-" + b.BotRight.String()
}

// Valid reports whether the corners are ordered.
func (b BoundingBox) Valid() bool {
	return b.TopLeft.X <= b.BotRight.X && b.TopLeft.Y <= b.BotRight.Y
}

func (b BoundingBox) Width() float64  { return b.BotRight.X - b.TopLeft.X }
func (b BoundingBox) Height() float64 { return b.BotRight.Y - b.TopLeft.Y }

func (b BoundingBox) Center() Point {
	return Point{
		X: (b.TopLeft.X + b.BotRight.X) / 2.0,
		Y: (b.TopLeft.Y + b.BotRight.Y) / 2.0,
	}
}

// Contains is inclusive on every edge.
func (b BoundingBox) Contains(p Point) bool {
	return p.X >= b.TopLeft.X &&
		p.X <= b.BotRight.X &&
		p.Y >= b.TopLeft.Y &&
		p.Y <= b.BotRight.Y
}

// QuadrantOf picks the child a point is routed to. Points on the midpoint
// go to the left and top halves.
func (b BoundingBox) QuadrantOf(p Point) Quadrant {
	c := b.Center()
	if p.X <= c.X {
		if p.Y <= c.Y {
			return Nw
		}
		return Sw
	}
	if p.Y <= c.Y {
		return Ne
	}
	return Se
}

// Quadrant returns the sub-box QuadrantOf routes to for q. Sibling boxes
// share their inner edges.
func (b BoundingBox) Quadrant(q Quadrant) BoundingBox {
	c := b.Center()
	switch q {
	case Nw:
		return BoundingBox{TopLeft: b.TopLeft, BotRight: c}
	case Sw:
		return BoundingBox{
			TopLeft:  Point{X: b.TopLeft.X, Y: c.Y},
			BotRight: Point{X: c.X, Y: b.BotRight.Y},
		}
	case Ne:
		return BoundingBox{
			TopLeft:  Point{X: c.X, Y: b.TopLeft.Y},
			BotRight: Point{X: b.BotRight.X, Y: c.Y},
		}
	case Se:
		return BoundingBox{TopLeft: c, BotRight: b.BotRight}
	}
	panic("quadtree: invalid quadrant " + q.String())
}

// NearestPoint clamps p into the box.
func (b BoundingBox) NearestPoint(p Point) Point {
	n := p
	if p.X < b.TopLeft.X {
		n.X = b.TopLeft.X
	} else if p.X > b.BotRight.X {
		n.X = b.BotRight.X
	}
	if p.Y < b.TopLeft.Y {
		n.Y = b.TopLeft.Y
	} else if p.Y > b.BotRight.Y {
		n.Y = b.BotRight.Y
	}
	return n
}

// IntersectsCircle reports whether any part of the box lies within r of c.
func (b BoundingBox) IntersectsCircle(c Point, r float64) bool {
	return b.NearestPoint(c).DistanceSquared(c) <= r*r
}

// Edges returns the left, top, bottom and right sides of the box.
func (b BoundingBox) Edges() [4]Segment {
	botLeft := Point{X: b.TopLeft.X, Y: b.BotRight.Y}
	topRight := Point{X: b.BotRight.X, Y: b.TopLeft.Y}
	return [4]Segment{
		{A: b.TopLeft, B: botLeft},
		{A: b.TopLeft, B: topRight},
		{A: b.BotRight, B: botLeft},
		{A: b.BotRight, B: topRight},
	}
}
