package main

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	quadtree "github.com/blakemr/quadindex"
)

// entity is a moving object in the bench world.
type entity struct {
	ID  uuid.UUID
	pos quadtree.Point
}

func (e *entity) Position() quadtree.Point { return e.pos }

// lockedIndex lets many readers query while one writer moves entities.
// Positions are only written with the lock held.
type lockedIndex struct {
	mutex sync.RWMutex
	qt    *quadtree.Quadtree[*entity]
}

func newLockedIndex(qt *quadtree.Quadtree[*entity]) *lockedIndex {
	return &lockedIndex{qt: qt}
}

func (l *lockedIndex) Insert(e *entity) (quadtree.Handle, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.qt.Insert(e, e.pos)
}

// Move relocates the entity filed under h and refiles it.
func (l *lockedIndex) Move(h quadtree.Handle, to quadtree.Point) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	e, ok := l.qt.Get(h)
	if !ok {
		return fmt.Errorf("move %d: %w", h, quadtree.ErrHandleNotFound)
	}
	old := e.pos
	e.pos = to
	if err := l.qt.Reinsert(h, old); err != nil {
		e.pos = old
		return err
	}
	return nil
}

// Query returns the IDs of entities within r of p.
func (l *lockedIndex) Query(p quadtree.Point, r float64) []uuid.UUID {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	found := l.qt.SearchRadius(p, r)
	ids := make([]uuid.UUID, 0, len(found))
	for _, e := range found {
		ids = append(ids, e.ID)
	}
	return ids
}

func (l *lockedIndex) Len() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.qt.Len()
}

func (l *lockedIndex) Stats() quadtree.Stats {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.qt.Stats()
}

func (l *lockedIndex) CheckInvariants() error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.qt.CheckInvariants()
}
