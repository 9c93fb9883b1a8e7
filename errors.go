package quadtree

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is matched by every *InsertError.
	ErrOutOfBounds = errors.New("position outside indexed region")
	// ErrHandleNotFound is returned when a handle has no stored item.
	ErrHandleNotFound = errors.New("handle not found")
)

// InsertError is returned when a position lies outside the region of the
// node it was offered to. The index is left unchanged.
type InsertError struct {
	Pos    Point
	Bounds BoundingBox
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert %s: outside region %s", e.Pos, e.Bounds)
}

func (e *InsertError) Is(target error) bool { return target == ErrOutOfBounds }

// RerouteError reports a handle that could not be filed again after a
// split, because its item now sits outside the root region. The item stays
// stored, so a RerouteError does not match ErrOutOfBounds.
type RerouteError struct {
	Handle Handle
	Pos    Point
	Bounds BoundingBox
}

func (e *RerouteError) Error() string {
	return fmt.Sprintf("reroute handle %d: %s outside region %s", e.Handle, e.Pos, e.Bounds)
}
