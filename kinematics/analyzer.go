// Package kinematics derives position, velocity and acceleration series from
// a recorded tracking session.
package kinematics

import (
	"fmt"
	"github.com/BenCrafterRED/colortracker/track"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultSigma is the default spread, in samples, of the gaussian smoothing
// applied to velocity and acceleration
const DefaultSigma = 10

// Analyzer converts a completed session into derived kinematic series
type Analyzer struct {
	// Sigma is the gaussian smoothing spread in samples, zero disables
	// smoothing
	Sigma float64
}

// NewAnalyzer returns an Analyzer using the default smoothing
func NewAnalyzer() Analyzer {
	return Analyzer{Sigma: DefaultSigma}
}

// Analyze derives the kinematic series of a session with the default
// smoothing
func Analyze(samples []track.Sample, scale Scale) (*Series, error) {
	return NewAnalyzer().Analyze(samples, scale)
}

// Analyze derives the kinematic series of a session.  Samples without a
// detected box are dropped, the remaining N samples yield N times and
// positions, N-1 time deltas, position deltas and velocities and N-2
// velocity deltas and accelerations.  Sessions with fewer than two
// detections produce empty derived series.
func (a Analyzer) Analyze(samples []track.Sample, scale Scale) (*Series, error) {

	if err := scale.Validate(); err != nil {
		return nil, err
	}

	s := &Series{
		Unit:     scale.Unit,
		Sigma:    a.Sigma,
		Samples:  len(samples),
		Time:     make([]float64, 0, len(samples)),
		Position: make([]r2.Vec, 0, len(samples)),
	}

	// drop frames where the object was not detected
	for _, sample := range samples {
		if !sample.Detected {
			continue
		}

		t := sample.Timestamp.Seconds()

		if n := len(s.Time); n > 0 && t <= s.Time[n-1] {
			return nil, fmt.Errorf("%w: sample at %v", track.ErrOutOfOrder, sample.Timestamp)
		}

		cx, cy := sample.Center()

		s.Time = append(s.Time, t)
		s.Position = append(s.Position, r2.Scale(1/scale.PixelsPerUnit, r2.Vec{X: cx, Y: cy}))
	}

	n := len(s.Time)

	s.TimeDelta = make([]float64, max(n-1, 0))
	s.PositionDelta = make([]float64, max(n-1, 0))
	s.RawVelocity = make([]float64, max(n-1, 0))
	s.VelocityDelta = make([]float64, max(n-2, 0))
	s.RawAcceleration = make([]float64, max(n-2, 0))

	if n < 2 {
		s.Velocity = []float64{}
		s.Acceleration = []float64{}
		return s, nil
	}

	floats.SubTo(s.TimeDelta, s.Time[1:], s.Time[:n-1])

	for i := range s.PositionDelta {
		s.PositionDelta[i] = r2.Norm(r2.Sub(s.Position[i+1], s.Position[i]))
	}

	floats.DivTo(s.RawVelocity, s.PositionDelta, s.TimeDelta)
	s.Velocity = GaussianFilter1D(s.RawVelocity, a.Sigma)

	if n > 2 {
		floats.SubTo(s.VelocityDelta, s.Velocity[1:], s.Velocity[:n-2])
		floats.DivTo(s.RawAcceleration, s.VelocityDelta, s.TimeDelta[:n-2])
	}

	s.Acceleration = GaussianFilter1D(s.RawAcceleration, a.Sigma)

	return s, nil
}
