package main

import (
	"context"
	"errors"
	"github.com/BenCrafterRED/colortracker"
	"github.com/BenCrafterRED/colortracker/config"
	"github.com/BenCrafterRED/colortracker/kinematics"
	"github.com/BenCrafterRED/colortracker/segment"
	"github.com/BenCrafterRED/colortracker/store"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// sceneCapture is an endless capture of a still red square on black
type sceneCapture struct {
	mu     sync.Mutex
	width  int
	height int
	square image.Rectangle
	closes int
}

func (c *sceneCapture) Read(m *gocv.Mat) bool {

	time.Sleep(time.Millisecond)

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		c.height, c.width, gocv.MatTypeCV8UC3)
	defer img.Close()

	gocv.Rectangle(&img, c.square, color.RGBA{R: 255}, -1)
	img.CopyTo(m)

	return true
}

func (c *sceneCapture) Get(prop gocv.VideoCaptureProperties) float64 {
	switch prop {
	case gocv.VideoCaptureFrameWidth:
		return float64(c.width)
	case gocv.VideoCaptureFrameHeight:
		return float64(c.height)
	}
	return 0
}

func (c *sceneCapture) Set(prop gocv.VideoCaptureProperties, param float64) {}

func (c *sceneCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func newTestTracker(t *testing.T) (*Tracker, *store.DB, *sceneCapture) {
	t.Helper()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.Analysis.Output = filepath.Join(dir, "figure.png")
	cfg.Analysis.HTML = ""

	db, err := store.Open(filepath.Join(dir, "sessions.db"))

	if err != nil {
		t.Fatalf("error opening store: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	capture := &sceneCapture{
		width:  64,
		height: 48,
		square: image.Rect(48, 18, 52, 22),
	}

	viewer := NewViewer(capture.width, capture.height, capture.width, capture.height)
	t.Cleanup(viewer.Close)

	dev := colortracker.NewDevice(capture, "scene")
	trk, err := NewTracker(cfg, dev, db, viewer, slog.Default())

	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}

	return trk, db, capture
}

// sessionID returns the id of the running session once it holds n samples
func sessionID(t *testing.T, trk *Tracker, n int) uuid.UUID {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for {
		trk.mu.Lock()
		id, recorded := trk.rec.ID, trk.rec.Len()
		trk.mu.Unlock()

		if recorded >= n {
			return id
		}

		if time.Now().After(deadline) {
			t.Fatalf("session %s recorded %d of %d samples", id, recorded, n)
		}

		time.Sleep(5 * time.Millisecond)
	}
}

// checkStill verifies a stored session saw the square at one position
func checkStill(t *testing.T, s *store.Session) segment.Box {
	t.Helper()

	var box segment.Box
	detected := 0

	for _, sample := range s.Samples {
		if !sample.Detected {
			continue
		}

		if detected > 0 && sample.Box != box {
			t.Errorf("session %s: box moved from %+v to %+v", s.ID, box, sample.Box)
		}

		box = sample.Box
		detected++
	}

	if detected < 2 {
		t.Fatalf("session %s: expected detections, got %d", s.ID, detected)
	}

	series, err := kinematics.Analyzer{}.Analyze(s.Samples, s.Scale)

	if err != nil {
		t.Fatalf("session %s: Analyze failed: %v", s.ID, err)
	}

	for i, d := range series.PositionDelta {
		if math.Abs(d) > 1e-9 {
			t.Errorf("session %s: position jumped by %v at %d", s.ID, d, i)
		}
	}

	return box
}

func TestSetROIStartsNewSession(t *testing.T) {

	trk, db, capture := newTestTracker(t)
	ctx := context.Background()

	if err := trk.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	first := sessionID(t, trk, 3)

	roi := segment.ROI{X1: 40, Y1: 10, X2: 64, Y2: 48}

	if err := trk.SetROI(ctx, roi); err != nil {
		t.Fatalf("SetROI failed: %v", err)
	}

	second := sessionID(t, trk, 3)

	if second == first {
		t.Fatal("changing the ROI kept the running session")
	}

	if err := trk.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if capture.closes != 1 {
		t.Errorf("expected device closed once, got %d", capture.closes)
	}

	before, err := db.LoadSession(ctx, first)

	if err != nil {
		t.Fatalf("error loading session %s: %v", first, err)
	}

	after, err := db.LoadSession(ctx, second)

	if err != nil {
		t.Fatalf("error loading session %s: %v", second, err)
	}

	// each session keeps the ROI its samples are relative to
	if before.ROI != (segment.ROI{}) {
		t.Errorf("first session stored ROI %+v, expected the full frame", before.ROI)
	}

	if after.ROI != roi {
		t.Errorf("second session stored ROI %+v, expected %+v", after.ROI, roi)
	}

	boxBefore := checkStill(t, before)
	boxAfter := checkStill(t, after)

	// same square in frame coordinates
	if boxAfter.X+roi.X1 != boxBefore.X || boxAfter.Y+roi.Y1 != boxBefore.Y {
		t.Errorf("square at %+v under full frame but %+v under %+v", boxBefore, boxAfter, roi)
	}
}

func TestSetROIKeepsSessionWhenUnchanged(t *testing.T) {

	trk, _, _ := newTestTracker(t)
	ctx := context.Background()

	if err := trk.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	defer trk.Stop(ctx)

	first := sessionID(t, trk, 1)

	if err := trk.SetROI(ctx, segment.ROI{}); err != nil {
		t.Fatalf("SetROI failed: %v", err)
	}

	err := trk.SetROI(ctx, segment.ROI{X1: 10, Y1: 10, X2: 100, Y2: 20})

	if !errors.Is(err, segment.ErrInvalidROI) {
		t.Errorf("expected ErrInvalidROI for an ROI outside the frame, got %v", err)
	}

	if id := sessionID(t, trk, 1); id != first {
		t.Errorf("session restarted from %s to %s", first, id)
	}
}
