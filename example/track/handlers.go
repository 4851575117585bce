package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/BenCrafterRED/colortracker/kinematics"
	"github.com/BenCrafterRED/colortracker/segment"
	"image"
	"log"
	"net/http"
	"strconv"
)

// Server exposes the live view and session controls over HTTP
type Server struct {
	tracker *Tracker
	viewer  *Viewer
}

// NewServer returns the HTTP controls for a tracker.  Coordinates received
// from clients are in viewer space and mapped back to the frame through the
// viewer's letterbox.
func NewServer(tracker *Tracker, viewer *Viewer) *Server {
	return &Server{
		tracker: tracker,
		viewer:  viewer,
	}
}

// Routes registers the handlers on mux
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/stream", s.viewer.Stream)
	mux.HandleFunc("/restart", s.Restart)
	mux.HandleFunc("/tune", s.Tune)
	mux.HandleFunc("/roi", s.ROI)
	mux.HandleFunc("/calibrate", s.Calibrate)
	mux.HandleFunc("/stats", s.Stats)
	mux.HandleFunc("/chart", s.Chart)
}

// Restart finishes the current session and starts a new one
func (s *Server) Restart(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.tracker.Restart(r.Context()); err != nil {
		log.Printf("Error restarting session: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Tune changes the target hue and threshold, eg. /tune?hue=120&threshold=30
func (s *Server) Tune(w http.ResponseWriter, r *http.Request) {

	seg := s.tracker.Segmenter()
	q := r.URL.Query()

	if v := q.Get("hue"); v != "" {
		hue, err := strconv.ParseUint(v, 10, 8)

		if err != nil {
			http.Error(w, fmt.Sprintf("invalid hue: %v", err), http.StatusBadRequest)
			return
		}

		if err := seg.SetHue(uint8(hue)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if v := q.Get("threshold"); v != "" {
		threshold, err := strconv.ParseUint(v, 10, 8)

		if err != nil {
			http.Error(w, fmt.Sprintf("invalid threshold: %v", err), http.StatusBadRequest)
			return
		}

		seg.SetThreshold(uint8(threshold))
	}

	writeJSON(w, map[string]uint8{
		"hue":       seg.Hue(),
		"threshold": seg.Threshold(),
	})
}

// ROI sets the region of interest from two corners in viewer coordinates,
// eg. /roi?x1=10&y1=10&x2=300&y2=200.  Without corners the ROI is reset to
// the full frame.  Changing the ROI starts a new session.  preview=1 greys
// out the frame outside of the ROI, given on its own it leaves the ROI as is.
func (s *Server) ROI(w http.ResponseWriter, r *http.Request) {

	q := r.URL.Query()

	pts, err := queryPoints(q.Get, "x1", "y1", "x2", "y2")

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if v := q.Get("preview"); v != "" {
		on, err := strconv.ParseBool(v)

		if err != nil {
			http.Error(w, fmt.Sprintf("invalid preview: %v", err), http.StatusBadRequest)
			return
		}

		s.tracker.SetPreview(on)

		if pts == nil {
			writeJSON(w, s.tracker.Segmenter().ROI())
			return
		}
	}

	roi := segment.ROI{}

	if pts != nil {
		a, b := s.viewer.letterbox.ToFrame(pts[0]), s.viewer.letterbox.ToFrame(pts[1])
		rect := image.Rectangle{Min: a, Max: b}.Canon()
		roi = segment.ROI{X1: rect.Min.X, Y1: rect.Min.Y, X2: rect.Max.X, Y2: rect.Max.Y}
	}

	if err := s.tracker.SetROI(r.Context(), roi); err != nil {
		switch {
		case errors.Is(err, segment.ErrInvalidROI):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("Error changing ROI: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, s.tracker.Segmenter().ROI())
}

// Calibrate derives the pixel scale from a reference segment drawn in viewer
// coordinates, eg. /calibrate?x1=0&y1=0&x2=200&y2=0&length=50&unit=cm
func (s *Server) Calibrate(w http.ResponseWriter, r *http.Request) {

	q := r.URL.Query()

	pts, err := queryPoints(q.Get, "x1", "y1", "x2", "y2")

	if err != nil || pts == nil {
		http.Error(w, "calibration needs x1, y1, x2 and y2", http.StatusBadRequest)
		return
	}

	length, err := strconv.ParseFloat(q.Get("length"), 64)

	if err != nil {
		http.Error(w, fmt.Sprintf("invalid length: %v", err), http.StatusBadRequest)
		return
	}

	unit := kinematics.DefaultUnit

	if v := q.Get("unit"); v != "" {
		if unit, err = kinematics.ParseUnit(v); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	scale, err := kinematics.Calibrate(s.viewer.letterbox.ToFrame(pts[0]),
		s.viewer.letterbox.ToFrame(pts[1]), length, unit)

	if err == nil {
		err = s.tracker.SetScale(scale)
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Printf("Calibrated to %.3f px/%s", scale.PixelsPerUnit, scale.Unit)

	writeJSON(w, scale)
}

// Stats reports the acquisition counters of the running session
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {

	stats := s.tracker.Stats()

	writeJSON(w, map[string]interface{}{
		"frames":             stats.Frames,
		"emitted":            stats.Emitted,
		"timeouts":           stats.Timeouts,
		"mean_processing_ms": float64(stats.MeanProcessing.Microseconds()) / 1000,
		"running":            stats.Running,
		"ended":              stats.Ended,
	})
}

// Chart serves the interactive chart of the last finished session
func (s *Server) Chart(w http.ResponseWriter, r *http.Request) {

	html := s.tracker.LastHTML()

	if html == nil {
		http.Error(w, "no finished session yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

// queryPoints parses two points from query parameters.  It returns nil when
// none of the parameters are set.
func queryPoints(get func(string) string, keys ...string) ([]image.Point, error) {

	vals := make([]int, len(keys))
	set := 0

	for i, k := range keys {
		v := get(k)

		if v == "" {
			continue
		}

		n, err := strconv.Atoi(v)

		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", k, err)
		}

		vals[i] = n
		set++
	}

	switch set {
	case 0:
		return nil, nil
	case len(keys):
		return []image.Point{image.Pt(vals[0], vals[1]), image.Pt(vals[2], vals[3])}, nil
	default:
		return nil, fmt.Errorf("expected all of %v", keys)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
