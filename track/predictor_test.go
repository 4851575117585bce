package track

import (
	"github.com/BenCrafterRED/colortracker/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"image"
	"testing"
	"time"
)

func TestPredictorInitiate(t *testing.T) {
	p := NewPredictor(DefaultPositionStd, DefaultVelocityStd)

	_, ok := p.Predict(time.Second)
	assert.False(t, ok)

	require.NoError(t, p.Update(time.Second, r2.Vec{X: 100, Y: 200}))
	assert.True(t, p.Initiated())

	pos, ok := p.Predict(2 * time.Second)
	require.True(t, ok)

	// no velocity is known after a single measurement
	assert.InDelta(t, 100, pos.X, 1e-9)
	assert.InDelta(t, 200, pos.Y, 1e-9)
	assert.Equal(t, r2.Vec{}, p.Velocity())
}

func TestPredictorConstantVelocity(t *testing.T) {
	p := NewPredictor(DefaultPositionStd, DefaultVelocityStd)

	// 30 fps moving at (60, -30) px/s
	dt := time.Second / 30

	for i := 0; i < 90; i++ {
		ts := time.Duration(i) * dt
		pos := r2.Vec{X: 10 + 60*ts.Seconds(), Y: 300 - 30*ts.Seconds()}
		require.NoError(t, p.Update(ts, pos))
	}

	v := p.Velocity()
	assert.InDelta(t, 60, v.X, 1)
	assert.InDelta(t, -30, v.Y, 1)

	// half a second past the last measurement
	last := 89 * dt
	pos, ok := p.Predict(last + 500*time.Millisecond)
	require.True(t, ok)
	assert.InDelta(t, 10+60*(last.Seconds()+0.5), pos.X, 1)
	assert.InDelta(t, 300-30*(last.Seconds()+0.5), pos.Y, 1)
}

func TestPredictorRejectsOutOfOrder(t *testing.T) {
	p := NewPredictor(DefaultPositionStd, DefaultVelocityStd)

	require.NoError(t, p.Update(time.Second, r2.Vec{X: 1, Y: 1}))
	assert.ErrorIs(t, p.Update(time.Second, r2.Vec{X: 2, Y: 2}), ErrOutOfOrder)

	p.Reset()
	assert.False(t, p.Initiated())
}

func TestRecorderEstimatesLostObject(t *testing.T) {
	r := NewRecorder()
	dt := 10 * time.Millisecond

	// moving right at 1 px per frame
	for i := 0; i < 50; i++ {
		box := segment.Box{X: i, Y: 20, Width: 2, Height: 2}
		require.NoError(t, r.Record(time.Duration(i+1)*dt, box, true))
	}

	_, ok := r.Estimate()
	assert.False(t, ok, "no estimate while detected")

	require.NoError(t, r.Record(51*dt, segment.Box{}, false))

	pt, ok := r.Estimate()
	require.True(t, ok)
	assert.InDelta(t, 51, pt.X, 2)
	assert.Equal(t, 21, pt.Y)

	// lost for longer than the coast time
	require.NoError(t, r.Record(51*dt+2*DefaultMaxCoast, segment.Box{}, false))

	_, ok = r.Estimate()
	assert.False(t, ok)

	assert.InDelta(t, 100, r.Velocity().X, 5)
	assert.Equal(t, image.Pt(50, 21), r.Trail()[len(r.Trail())-1])
}
