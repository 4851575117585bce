// Package track records the per frame detections of a tracking session.
package track

import (
	"errors"
	"fmt"
	"github.com/BenCrafterRED/colortracker/segment"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
	"image"
	"sync"
	"time"
)

var (
	// ErrSessionClosed is returned when recording into a closed session
	ErrSessionClosed = errors.New("session is closed")
	// ErrOutOfOrder is returned for a timestamp that does not come strictly
	// after the previous one
	ErrOutOfOrder = errors.New("timestamp out of order")
)

// Sample is the detection result of one processed frame
type Sample struct {
	// Timestamp is the time since the start of the acquisition loop
	Timestamp time.Duration
	// Box is the bounding box relative to the ROI, valid when Detected is true
	Box      segment.Box
	Detected bool
}

// Center returns the box centre of a detected sample
func (s Sample) Center() (x, y float64) {
	return s.Box.Center()
}

// Recorder accumulates the samples of one session in timestamp order.  Once
// closed the sequence is frozen and further records are rejected.
type Recorder struct {
	// ID uniquely identifies the session
	ID uuid.UUID
	// StartedAt is the wall clock time the session was created
	StartedAt time.Time

	mu      sync.Mutex
	samples []Sample
	closed  bool
	trail   *Trail
	// predictor follows the object through undetected frames
	predictor *Predictor
	estimate  *image.Point
}

// NewRecorder returns an empty session recorder
func NewRecorder() *Recorder {
	return &Recorder{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		trail:     NewTrail(DefaultTrailSize),
		predictor: NewPredictor(DefaultPositionStd, DefaultVelocityStd),
	}
}

// Record appends the detection result of one frame.  Timestamps must be non
// negative and strictly increasing.
func (r *Recorder) Record(ts time.Duration, box segment.Box, detected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrSessionClosed
	}

	if ts < 0 {
		return fmt.Errorf("%w: negative timestamp %v", ErrOutOfOrder, ts)
	}

	if n := len(r.samples); n > 0 && ts <= r.samples[n-1].Timestamp {
		return fmt.Errorf("%w: %v after %v", ErrOutOfOrder, ts, r.samples[n-1].Timestamp)
	}

	if !detected {
		box = segment.Box{}
	}

	r.samples = append(r.samples, Sample{
		Timestamp: ts,
		Box:       box,
		Detected:  detected,
	})

	r.estimate = nil

	if detected {
		x, y := box.Center()
		r.trail.Add(image.Pt(int(x), int(y)))

		if err := r.predictor.Update(ts, r2.Vec{X: x, Y: y}); err != nil {
			r.predictor.Reset()
		}

		return nil
	}

	// coast on the prediction while the object is briefly lost
	if r.predictor.Initiated() && ts-r.predictor.LastUpdate() <= DefaultMaxCoast {
		if pos, ok := r.predictor.Predict(ts); ok {
			pt := image.Pt(int(pos.X), int(pos.Y))
			r.estimate = &pt
		}
	}

	return nil
}

// Estimate returns the predicted centre, relative to the ROI, of an object
// that was not detected in the last frame.  ok is false when the object was
// detected or has been lost for too long.
func (r *Recorder) Estimate() (pt image.Point, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.estimate == nil {
		return image.Point{}, false
	}

	return *r.estimate, true
}

// Velocity returns the filtered velocity of the object in pixels per second
func (r *Recorder) Velocity() r2.Vec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.predictor.Velocity()
}

// Close freezes the session and returns its samples.  Calling Close again
// returns the same samples.
func (r *Recorder) Close() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	return r.samples[:len(r.samples):len(r.samples)]
}

// Closed reports if the session has been frozen
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Samples returns a copy of the samples recorded so far
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Len returns the number of recorded samples
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Detections returns the number of samples with a detected box
func (r *Recorder) Detections() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.samples {
		if s.Detected {
			n++
		}
	}
	return n
}

// Trail returns the most recent detected box centres, relative to the ROI
// and oldest first
func (r *Recorder) Trail() []image.Point {
	return r.trail.Points()
}
