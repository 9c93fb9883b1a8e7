package quadtree

import (
	"strconv"
)

// Point is a position on the indexed plane. Y grows downward, so the
// top-left corner of a box has the smaller coordinates.
type Point struct {
	X float64
	Y float64
}

func (p Point) String() string {
	return "[" + strconv.FormatFloat(p.X, 'f', -1, 64) + "," + strconv.FormatFloat(p.Y, 'f', -1, 64) + "]"
}

// DistanceSquared returns the squared euclidean distance between p and o.
func (p Point) DistanceSquared(o Point) float64 {
	dx := p.X - o.X
	dy := p.Y - o.Y
	return dx*dx + dy*dy
}

// Positioner is implemented by anything stored in a Quadtree.
type Positioner interface {
	Position() Point
}

// Segment is one straight boundary edge, used for debug wireframes.
type Segment struct {
	A Point
	B Point
}
