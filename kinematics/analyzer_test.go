package kinematics

import (
	"github.com/BenCrafterRED/colortracker/segment"
	"github.com/BenCrafterRED/colortracker/track"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"math"
	"testing"
	"time"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func detected(ts time.Duration, x, y, w, h int) track.Sample {
	return track.Sample{
		Timestamp: ts,
		Box:       segment.Box{X: x, Y: y, Width: w, Height: h},
		Detected:  true,
	}
}

func missed(ts time.Duration) track.Sample {
	return track.Sample{Timestamp: ts}
}

func TestAnalyzeTwoSamples(t *testing.T) {
	samples := []track.Sample{
		detected(0, 0, 0, 2, 2),
		detected(time.Second, 10, 0, 2, 2),
	}

	s, err := Analyze(samples, Scale{PixelsPerUnit: 10, Unit: Centimeter})
	require.NoError(t, err)

	assert.Equal(t, Centimeter, s.Unit)

	if diff := cmp.Diff([]r2.Vec{{X: 0.1, Y: 0.1}, {X: 1.1, Y: 0.1}}, s.Position, approx); diff != "" {
		t.Errorf("position mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]float64{0, 1}, s.Time, approx); diff != "" {
		t.Errorf("time mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]float64{1}, s.TimeDelta, approx); diff != "" {
		t.Errorf("time delta mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]float64{1}, s.PositionDelta, approx); diff != "" {
		t.Errorf("position delta mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]float64{1}, s.RawVelocity, approx); diff != "" {
		t.Errorf("raw velocity mismatch (-want +got):\n%s", diff)
	}

	// smoothing a single value reflects it onto itself
	if diff := cmp.Diff([]float64{1}, s.Velocity, approx); diff != "" {
		t.Errorf("velocity mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, s.VelocityDelta)
	assert.Empty(t, s.Acceleration)
}

func TestAnalyzeSeriesLengths(t *testing.T) {
	for n := 2; n <= 40; n++ {
		samples := make([]track.Sample, 0, n)

		for i := 0; i < n; i++ {
			samples = append(samples, detected(time.Duration(i+1)*33*time.Millisecond, i*i%17, i*3, 4, 4))
		}

		s, err := NewAnalyzer().Analyze(samples, DefaultScale())
		require.NoError(t, err)

		assert.Len(t, s.Time, n)
		assert.Len(t, s.Position, n)
		assert.Len(t, s.TimeDelta, n-1)
		assert.Len(t, s.PositionDelta, n-1)
		assert.Len(t, s.RawVelocity, n-1)
		assert.Len(t, s.Velocity, n-1)
		assert.Len(t, s.VelocityDelta, n-2)
		assert.Len(t, s.RawAcceleration, n-2)
		assert.Len(t, s.Acceleration, n-2)
	}
}

func TestAnalyzeTooFewDetections(t *testing.T) {
	cases := map[string][]track.Sample{
		"empty":           nil,
		"single":          {detected(time.Millisecond, 1, 1, 2, 2)},
		"single detected": {missed(time.Millisecond), detected(2*time.Millisecond, 1, 1, 2, 2), missed(3 * time.Millisecond)},
		"none detected":   {missed(time.Millisecond), missed(2 * time.Millisecond)},
	}

	for name, samples := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := Analyze(samples, DefaultScale())
			require.NoError(t, err)

			for _, series := range [][]float64{s.TimeDelta, s.PositionDelta, s.RawVelocity,
				s.Velocity, s.VelocityDelta, s.RawAcceleration, s.Acceleration} {
				assert.NotNil(t, series)
				assert.Empty(t, series)
			}

			for _, kind := range []Kind{KindTime, KindTimeDelta, KindPositionDelta,
				KindVelocity, KindVelocityDelta, KindAcceleration} {
				x, y, err := s.XY(kind)
				require.NoError(t, err)
				assert.Equal(t, len(x), len(y))
			}

			sum := s.Summary()
			assert.True(t, math.IsNaN(sum.MeanVelocity))
			assert.Equal(t, len(samples), sum.Samples)
		})
	}
}

func TestAnalyzeDropsMissedFrames(t *testing.T) {
	samples := []track.Sample{
		detected(0, 0, 0, 2, 2),
		missed(500 * time.Millisecond),
		detected(time.Second, 3, 4, 2, 2),
	}

	s, err := Analyzer{Sigma: 0}.Analyze(samples, DefaultScale())
	require.NoError(t, err)

	assert.Equal(t, 3, s.Samples)
	assert.Equal(t, 2, s.Detections())

	// the gap is not corrected, the delta spans the missed frame
	if diff := cmp.Diff([]float64{5}, s.RawVelocity, approx); diff != "" {
		t.Errorf("raw velocity mismatch (-want +got):\n%s", diff)
	}
}

func TestUniformVelocityHasNoAcceleration(t *testing.T) {
	samples := make([]track.Sample, 0, 120)

	for i := 0; i < 120; i++ {
		samples = append(samples, detected(time.Duration(i)*40*time.Millisecond, 2*i, i, 6, 6))
	}

	s, err := Analyze(samples, Scale{PixelsPerUnit: 5, Unit: Millimeter})
	require.NoError(t, err)

	expected := math.Sqrt(5) / 5 / 0.04

	for i, v := range s.Velocity {
		assert.InDelta(t, expected, v, 1e-6, "velocity %d", i)
	}

	for i, a := range s.Acceleration {
		assert.InDelta(t, 0, a, 1e-6, "acceleration %d", i)
	}

	sum := s.Summary()
	assert.InDelta(t, expected, sum.MeanVelocity, 1e-6)
	assert.InDelta(t, 119*0.04, sum.Duration, 1e-9)
	assert.InDelta(t, 119*math.Sqrt(5)/5, sum.Distance, 1e-6)
}

func TestAnalyzeRejectsInvalidInput(t *testing.T) {
	_, err := Analyze(nil, Scale{PixelsPerUnit: 0, Unit: Centimeter})
	assert.ErrorIs(t, err, ErrInvalidScale)

	samples := []track.Sample{
		detected(time.Second, 0, 0, 1, 1),
		detected(time.Second, 1, 0, 1, 1),
	}

	_, err = Analyze(samples, DefaultScale())
	assert.ErrorIs(t, err, track.ErrOutOfOrder)
}

func TestAnalyzeAcceptsAnyUnitLabel(t *testing.T) {
	samples := []track.Sample{
		detected(0, 0, 0, 2, 2),
		detected(time.Second, 10, 0, 2, 2),
	}

	for _, unit := range []Unit{"px", "inch", ""} {
		s, err := Analyze(samples, Scale{PixelsPerUnit: 10, Unit: unit})
		require.NoError(t, err, "unit %q", unit)
		assert.Equal(t, unit, s.Unit)
		assert.InDelta(t, 1.0, s.RawVelocity[0], 1e-12)
	}

	s, err := Analyze(samples, Scale{PixelsPerUnit: 10, Unit: "px"})
	require.NoError(t, err)
	assert.Equal(t, "v in px/s", KindVelocity.YLabel(s.Unit))
}

func TestSeriesXYAlignment(t *testing.T) {
	samples := make([]track.Sample, 0, 6)

	for i := 0; i < 6; i++ {
		samples = append(samples, detected(time.Duration(i+1)*time.Second, i*i, 0, 2, 2))
	}

	s, err := Analyze(samples, DefaultScale())
	require.NoError(t, err)

	tests := []struct {
		kind   Kind
		length int
		x0     float64
	}{
		{KindTime, 6, 0},
		{KindTimeDelta, 5, 0},
		{KindPositionDelta, 5, 1},
		{KindVelocity, 5, 1},
		{KindVelocityDelta, 4, 1},
		{KindAcceleration, 4, 1},
	}

	for _, tc := range tests {
		x, y, err := s.XY(tc.kind)
		require.NoError(t, err)
		assert.Len(t, x, tc.length, tc.kind.String())
		assert.Len(t, y, tc.length, tc.kind.String())
		assert.Equal(t, tc.x0, x[0], tc.kind.String())
	}

	_, _, err = s.XY(Kind(99))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseKind(t *testing.T) {
	for k, name := range kindNames {
		got, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseKind(" Velocity-Delta ")
	require.NoError(t, err)
	assert.Equal(t, KindVelocityDelta, got)

	_, err = ParseKind("jerk")
	assert.ErrorIs(t, err, ErrUnknownKind)

	kinds, err := ParseKinds([]string{"velocity", "acceleration"})
	require.NoError(t, err)
	assert.Equal(t, DefaultKinds, kinds)

	assert.Equal(t, "v in cm/s", KindVelocity.YLabel(Centimeter))
	assert.Equal(t, "a in mm/s²", KindAcceleration.YLabel(Millimeter))
	assert.Equal(t, "frame", KindTimeDelta.XLabel())
}
