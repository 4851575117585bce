package main

import (
	"bytes"
	"context"
	"fmt"
	"github.com/BenCrafterRED/colortracker"
	"github.com/BenCrafterRED/colortracker/chart"
	"github.com/BenCrafterRED/colortracker/config"
	"github.com/BenCrafterRED/colortracker/kinematics"
	"github.com/BenCrafterRED/colortracker/render"
	"github.com/BenCrafterRED/colortracker/segment"
	"github.com/BenCrafterRED/colortracker/store"
	"github.com/BenCrafterRED/colortracker/track"
	"gocv.io/x/gocv"
	"image"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker runs tracking sessions on one capture device.  A session records
// until it is restarted or the tracker stops, then its samples are analysed,
// plotted and stored.
type Tracker struct {
	cfg    *config.Config
	scale  kinematics.Scale
	kinds  []kinematics.Kind
	seg    *segment.Segmenter
	db     *store.DB
	viewer *Viewer
	logger *slog.Logger

	font       render.Font
	boxStyle   render.BoxStyle
	trailStyle render.TrailStyle
	// preview greys everything outside of the ROI on display frames
	preview atomic.Bool

	mu sync.Mutex
	// ctx bounds the lifetime of every session's acquisition loop
	ctx context.Context
	dev *colortracker.Device
	src *colortracker.Source[segment.Result]
	rec *track.Recorder
	// roi the running session records under, sample boxes are relative to it
	roi segment.ROI
	// lastHTML is the interactive chart of the last finished session
	lastHTML []byte
}

// NewTracker creates a Tracker for an opened device
func NewTracker(cfg *config.Config, dev *colortracker.Device, db *store.DB,
	viewer *Viewer, logger *slog.Logger) (*Tracker, error) {

	scale, err := cfg.Scale()

	if err != nil {
		return nil, err
	}

	kinds, err := cfg.Kinds()

	if err != nil {
		return nil, err
	}

	roi, err := cfg.ResolveROI(dev.Width(), dev.Height())

	if err != nil {
		return nil, err
	}

	seg, err := segment.NewSegmenter(uint8(cfg.Tracking.TargetHue),
		uint8(cfg.Tracking.Threshold), roi)

	if err != nil {
		return nil, err
	}

	return &Tracker{
		cfg:        cfg,
		scale:      scale,
		kinds:      kinds,
		seg:        seg,
		db:         db,
		viewer:     viewer,
		logger:     logger,
		font:       render.DefaultFont(),
		boxStyle:   render.DefaultBoxStyle(),
		trailStyle: render.DefaultTrailStyle(),
		dev:        dev,
	}, nil
}

// callbacks binds the acquisition pipeline to a session recorder
func (t *Tracker) callbacks(rec *track.Recorder) colortracker.Callbacks[segment.Result] {
	return colortracker.Callbacks[segment.Result]{
		ProcessData: t.seg.Process,
		ProcessTime: func(ts time.Duration, res segment.Result) {
			if err := rec.Record(ts, res.Box, res.Found && res.Err == nil); err != nil {
				t.logger.Debug("track: sample dropped", "error", err)
			}
		},
		ProcessUserImage: func(display *gocv.Mat, res segment.Result) {
			t.annotate(display, rec, res)
		},
		FrameAvailable: t.viewer.Publish,
	}
}

// annotate draws the tracking overlay on a display frame
func (t *Tracker) annotate(display *gocv.Mat, rec *track.Recorder, res segment.Result) {

	if t.preview.Load() {
		if err := render.ROIPreview(display, res.ROI); err != nil {
			t.logger.Debug("track: ROI preview skipped", "error", err)
		}
	}

	origin := image.Pt(res.ROI.X1, res.ROI.Y1)

	render.Trail(display, rec.Trail(), origin, t.trailStyle)
	render.Overlay(display, res, t.font, t.boxStyle)

	if ref := t.cfg.Calibration.Reference; ref != nil {
		render.Crosshair(display, image.Pt(ref.From[0], ref.From[1]), 6, render.ROIColor, 1)
		render.Crosshair(display, image.Pt(ref.To[0], ref.To[1]), 6, render.ROIColor, 1)
	}

	// mark where the lost object is expected to be
	if pt, ok := rec.Estimate(); ok {
		render.Crosshair(display, pt.Add(origin), 8, render.EstimateColor, 2)
	}

	lines := []string{
		fmt.Sprintf("Hue: %d, Threshold: %d, Samples: %d, Detected: %d",
			t.seg.Hue(), t.seg.Threshold(), rec.Len(), rec.Detections()),
	}

	if res.Err != nil {
		lines = append(lines, fmt.Sprintf("Error: %v", res.Err))
	}

	render.Status(display, lines, t.font)
}

// Start begins the first session
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := track.NewRecorder()
	src, err := colortracker.NewSource(t.dev, t.callbacks(rec), t.cfg.SourceOptions(t.logger))

	if err != nil {
		return err
	}

	if err := src.Start(ctx); err != nil {
		return err
	}

	t.ctx, t.src, t.rec, t.roi = ctx, src, rec, t.seg.ROI()
	log.Printf("Session %s started", rec.ID)

	return nil
}

// Restart finishes the running session and starts a new one on the same
// device without reopening it.  ctx only bounds storing the finished session.
func (t *Tracker) Restart(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.restart(ctx, nil)
}

// SetROI changes the region of interest.  Sample boxes are relative to the
// ROI so the running session is finished under the old ROI and a new session
// is started under the new one.
func (t *Tracker) SetROI(ctx context.Context, roi segment.ROI) error {

	width, height := t.dev.Width(), t.dev.Height()

	if err := roi.Resolve(width, height).Validate(width, height); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if roi == t.seg.ROI() {
		return nil
	}

	return t.restart(ctx, func() {
		t.seg.SetROI(roi)
	})
}

// restart hands the device to a new session, apply runs while no acquisition
// loop is processing frames
func (t *Tracker) restart(ctx context.Context, apply func()) error {

	rec := track.NewRecorder()
	src, err := colortracker.Handoff(t.src, t.callbacks(rec))

	if err != nil {
		return fmt.Errorf("error restarting session: %w", err)
	}

	if apply != nil {
		apply()
	}

	finished, roi := t.rec, t.roi
	t.src, t.rec, t.roi = src, rec, t.seg.ROI()

	if err := src.Start(t.ctx); err != nil {
		return err
	}

	log.Printf("Session %s started", rec.ID)

	return t.finish(ctx, finished, roi)
}

// Stop ends the running session and releases the device
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.src.Release(); err != nil {
		log.Printf("Error releasing device: %v", err)
	}

	return t.finish(ctx, t.rec, t.roi)
}

// Done is closed when the running session's stream ends
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.src.Done()
}

// Stats returns the acquisition counters of the running session
func (t *Tracker) Stats() colortracker.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.src.Stats()
}

// finish analyses, plots and stores a completed session recorded under roi
func (t *Tracker) finish(ctx context.Context, rec *track.Recorder, roi segment.ROI) error {

	samples := rec.Close()

	analyzer := kinematics.Analyzer{Sigma: t.cfg.Analysis.Sigma}
	series, err := analyzer.Analyze(samples, t.scale)

	if err != nil {
		return fmt.Errorf("error analysing session %s: %w", rec.ID, err)
	}

	log.Printf("Session %s: %s", rec.ID, series.Summary())

	if err := chart.SaveFigure(t.cfg.Analysis.Output, series, t.kinds, chart.DefaultOptions()); err != nil {
		return err
	}

	log.Printf("Figure written to %s", t.cfg.Analysis.Output)

	var html bytes.Buffer

	if err := chart.WriteHTML(&html, series, t.kinds); err != nil {
		return err
	}

	t.lastHTML = html.Bytes()

	if path := t.cfg.Analysis.HTML; path != "" {
		if err := os.WriteFile(path, t.lastHTML, 0o644); err != nil {
			return fmt.Errorf("error writing chart %s: %w", path, err)
		}
		log.Printf("Chart written to %s", path)
	}

	if t.db == nil {
		return nil
	}

	return t.db.SaveSession(ctx, &store.Session{
		ID:        rec.ID,
		StartedAt: rec.StartedAt,
		Source:    t.dev.Selector(),
		Hue:       t.seg.Hue(),
		Threshold: t.seg.Threshold(),
		ROI:       roi,
		Scale:     t.scale,
		Sigma:     t.cfg.Analysis.Sigma,
		Samples:   samples,
	})
}

// LastHTML returns the interactive chart of the last finished session
func (t *Tracker) LastHTML() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastHTML
}

// SetScale replaces the pixel scale used for sessions finished from now on
func (t *Tracker) SetScale(scale kinematics.Scale) error {

	if err := scale.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.scale = scale

	return nil
}

// SetPreview toggles greying out the frame outside of the ROI
func (t *Tracker) SetPreview(on bool) {
	t.preview.Store(on)
}

// Segmenter returns the segmenter shared by all sessions.  Its ROI is changed
// through SetROI so sessions never mix ROIs.
func (t *Tracker) Segmenter() *segment.Segmenter {
	return t.seg
}
