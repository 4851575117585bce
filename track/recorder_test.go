package track

import (
	"github.com/BenCrafterRED/colortracker/segment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image"
	"testing"
	"time"
)

func TestRecordPreservesOrder(t *testing.T) {
	r := NewRecorder()
	require.NotEqual(t, uuid.Nil, r.ID)

	boxes := []segment.Box{{X: 1, Y: 1, Width: 2, Height: 2}, {}, {X: 5, Y: 3, Width: 2, Height: 4}}
	detected := []bool{true, false, true}

	for i := range boxes {
		require.NoError(t, r.Record(time.Duration(i+1)*time.Millisecond, boxes[i], detected[i]))
	}

	samples := r.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 2, r.Detections())

	for i, s := range samples {
		assert.Equal(t, time.Duration(i+1)*time.Millisecond, s.Timestamp)
		assert.Equal(t, detected[i], s.Detected)
	}

	assert.Equal(t, boxes[2], samples[2].Box)
}

func TestRecordRejectsOutOfOrder(t *testing.T) {
	r := NewRecorder()

	require.NoError(t, r.Record(10*time.Millisecond, segment.Box{}, false))
	assert.ErrorIs(t, r.Record(10*time.Millisecond, segment.Box{}, false), ErrOutOfOrder)
	assert.ErrorIs(t, r.Record(5*time.Millisecond, segment.Box{}, false), ErrOutOfOrder)
	assert.Equal(t, 1, r.Len())

	assert.ErrorIs(t, NewRecorder().Record(-time.Nanosecond, segment.Box{}, false), ErrOutOfOrder)
}

func TestCloseFreezesSession(t *testing.T) {
	r := NewRecorder()

	require.NoError(t, r.Record(time.Millisecond, segment.Box{Width: 1, Height: 1}, true))
	require.NoError(t, r.Record(2*time.Millisecond, segment.Box{}, false))

	samples := r.Close()
	require.Len(t, samples, 2)
	assert.True(t, r.Closed())

	assert.ErrorIs(t, r.Record(3*time.Millisecond, segment.Box{}, false), ErrSessionClosed)
	assert.Equal(t, samples, r.Close())

	// appending to the returned slice must not alias the session
	_ = append(samples, Sample{Timestamp: time.Hour})
	assert.Len(t, r.Samples(), 2)
}

func TestAbsentBoxIsCleared(t *testing.T) {
	r := NewRecorder()

	require.NoError(t, r.Record(time.Millisecond, segment.Box{X: 4, Y: 4, Width: 3, Height: 3}, false))
	assert.Equal(t, segment.Box{}, r.Samples()[0].Box)
	assert.Empty(t, r.Trail())
}

func TestTrailKeepsRecentCentres(t *testing.T) {
	r := NewRecorder()

	for i := 0; i < DefaultTrailSize+5; i++ {
		box := segment.Box{X: i * 2, Y: 0, Width: 2, Height: 2}
		require.NoError(t, r.Record(time.Duration(i+1)*time.Millisecond, box, true))
	}

	trail := r.Trail()
	require.Len(t, trail, DefaultTrailSize)
	assert.Equal(t, image.Pt(11, 1), trail[0])
	assert.Equal(t, image.Pt((DefaultTrailSize+4)*2+1, 1), trail[len(trail)-1])
}

func TestTrailReset(t *testing.T) {
	trail := NewTrail(2)

	trail.Add(image.Pt(1, 1))
	trail.Add(image.Pt(2, 2))
	trail.Add(image.Pt(3, 3))
	assert.Equal(t, []image.Point{{2, 2}, {3, 3}}, trail.Points())

	trail.Reset()
	assert.Empty(t, trail.Points())
}
