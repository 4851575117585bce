package kinematics

import (
	"errors"
	"fmt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
	"math"
	"strings"
)

// ErrUnknownKind is returned for a series name that is not a Kind
var ErrUnknownKind = errors.New("unknown series kind")

// Kind selects one plottable series
type Kind int

const (
	KindTime Kind = iota
	KindTimeDelta
	KindPositionDelta
	KindVelocity
	KindVelocityDelta
	KindAcceleration
)

var kindNames = map[Kind]string{
	KindTime:          "time",
	KindTimeDelta:     "time_delta",
	KindPositionDelta: "position_delta",
	KindVelocity:      "velocity",
	KindVelocityDelta: "velocity_delta",
	KindAcceleration:  "acceleration",
}

// DefaultKinds are plotted when no selection has been made
var DefaultKinds = []Kind{KindVelocity, KindAcceleration}

// String returns the name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the Kind with the given name
func ParseKind(s string) (Kind, error) {

	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")

	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}

	return 0, fmt.Errorf("%w %q", ErrUnknownKind, s)
}

// ParseKinds parses a list of kind names
func ParseKinds(names []string) ([]Kind, error) {

	kinds := make([]Kind, 0, len(names))

	for _, name := range names {
		k, err := ParseKind(name)

		if err != nil {
			return nil, err
		}

		kinds = append(kinds, k)
	}

	return kinds, nil
}

// Title returns a human readable title for the series
func (k Kind) Title() string {
	switch k {
	case KindTime:
		return "Time t"
	case KindTimeDelta:
		return "Time delta Δt"
	case KindPositionDelta:
		return "Position delta Δs(t)"
	case KindVelocity:
		return "Velocity v(t)"
	case KindVelocityDelta:
		return "Velocity delta Δv(t)"
	case KindAcceleration:
		return "Acceleration a(t)"
	}
	return k.String()
}

// XLabel returns the label of the horizontal axis.  Time series are plotted
// against the frame number, all others against time.
func (k Kind) XLabel() string {
	if k == KindTime || k == KindTimeDelta {
		return "frame"
	}
	return "t in s"
}

// YLabel returns the label of the vertical axis including its unit
func (k Kind) YLabel(unit Unit) string {
	switch k {
	case KindTime:
		return "t in s"
	case KindTimeDelta:
		return "Δt in s"
	case KindPositionDelta:
		return fmt.Sprintf("Δs in %s", unit)
	case KindVelocity:
		return fmt.Sprintf("v in %s/s", unit)
	case KindVelocityDelta:
		return fmt.Sprintf("Δv in %s/s", unit)
	case KindAcceleration:
		return fmt.Sprintf("a in %s/s²", unit)
	}
	return k.String()
}

// Series holds the derived kinematics of one session
type Series struct {
	// Unit of all lengths
	Unit Unit
	// Sigma is the smoothing spread used for Velocity and Acceleration
	Sigma float64
	// Samples is the number of recorded samples including undetected ones
	Samples int

	// Time of each detection in seconds since the session start
	Time      []float64
	TimeDelta []float64
	// Position is the box centre of each detection in Unit
	Position      []r2.Vec
	PositionDelta []float64
	// RawVelocity is the unsmoothed frame to frame speed
	RawVelocity   []float64
	Velocity      []float64
	VelocityDelta []float64
	// RawAcceleration is VelocityDelta over time before smoothing
	RawAcceleration []float64
	Acceleration    []float64
}

// Detections returns the number of samples with a detected box
func (s *Series) Detections() int {
	return len(s.Time)
}

// XY returns the series selected by kind paired with its horizontal axis.
// Derived series are aligned with the leading part of Time.
func (s *Series) XY(kind Kind) (x, y []float64, err error) {

	switch kind {
	case KindTime:
		return frameIndex(len(s.Time)), s.Time, nil
	case KindTimeDelta:
		return frameIndex(len(s.TimeDelta)), s.TimeDelta, nil
	case KindPositionDelta:
		return s.Time[:len(s.PositionDelta)], s.PositionDelta, nil
	case KindVelocity:
		return s.Time[:len(s.Velocity)], s.Velocity, nil
	case KindVelocityDelta:
		return s.Time[:len(s.VelocityDelta)], s.VelocityDelta, nil
	case KindAcceleration:
		return s.Time[:len(s.Acceleration)], s.Acceleration, nil
	}

	return nil, nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
}

func frameIndex(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

// Summary holds aggregate statistics of a session
type Summary struct {
	Samples    int
	Detections int
	// Duration between first and last detection in seconds
	Duration float64
	// Distance travelled by the box centre in Unit
	Distance         float64
	MeanVelocity     float64
	StdDevVelocity   float64
	PeakVelocity     float64
	PeakAcceleration float64
	Unit             Unit
}

// Summary computes aggregate statistics over the smoothed series.  Values
// that need more detections than available are NaN.
func (s *Series) Summary() Summary {

	sum := Summary{
		Samples:          s.Samples,
		Detections:       s.Detections(),
		Unit:             s.Unit,
		MeanVelocity:     math.NaN(),
		StdDevVelocity:   math.NaN(),
		PeakVelocity:     math.NaN(),
		PeakAcceleration: math.NaN(),
	}

	if n := len(s.Time); n > 0 {
		sum.Duration = s.Time[n-1] - s.Time[0]
	}

	sum.Distance = floats.Sum(s.PositionDelta)

	if len(s.Velocity) > 0 {
		sum.MeanVelocity = stat.Mean(s.Velocity, nil)
		sum.PeakVelocity = floats.Max(s.Velocity)
	}

	if len(s.Velocity) > 1 {
		sum.StdDevVelocity = stat.StdDev(s.Velocity, nil)
	}

	if len(s.Acceleration) > 0 {
		peak := 0.0
		for _, a := range s.Acceleration {
			if math.Abs(a) > math.Abs(peak) {
				peak = a
			}
		}
		sum.PeakAcceleration = peak
	}

	return sum
}

// String formats the summary for logging
func (s Summary) String() string {
	return fmt.Sprintf("%d/%d frames detected over %.2fs, distance %.2f%s, "+
		"mean v %.2f%s/s, peak v %.2f%s/s, peak a %.2f%s/s²",
		s.Detections, s.Samples, s.Duration, s.Distance, s.Unit,
		s.MeanVelocity, s.Unit, s.PeakVelocity, s.Unit, s.PeakAcceleration, s.Unit)
}
