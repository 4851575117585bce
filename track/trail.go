package track

import (
	"image"
	"sync"
)

// DefaultTrailSize is the number of recent centre points kept for drawing
const DefaultTrailSize = 30

// Trail keeps a bounded history of the most recent detected box centres used
// for drawing a trail behind the tracked object
type Trail struct {
	// size is the maximum number of most recent points to keep in history
	size   int
	points []image.Point
	sync.Mutex
}

// NewTrail returns a new trail history.  Size specifies the maximum length of
// the trail to maintain.
func NewTrail(size int) *Trail {
	if size < 1 {
		size = 1
	}
	return &Trail{
		size:   size,
		points: make([]image.Point, 0, size),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.points = t.points[:0]
}

// Add a centre point to the history
func (t *Trail) Add(pt image.Point) {
	t.Lock()
	defer t.Unlock()

	// drop oldest point when history is full
	if len(t.points) == t.size {
		copy(t.points, t.points[1:])
		t.points = t.points[:len(t.points)-1]
	}

	t.points = append(t.points, pt)
}

// Points returns a copy of the point history, oldest first
func (t *Trail) Points() []image.Point {
	t.Lock()
	defer t.Unlock()

	out := make([]image.Point, len(t.points))
	copy(out, t.points)
	return out
}
