package segment

import (
	"errors"
	"fmt"
	"gocv.io/x/gocv"
	"runtime"
	"sync/atomic"
)

// DefaultThreshold is the default intensity cutoff of the binary mask
const DefaultThreshold = 20

var (
	// ErrInvalidHue is returned for target hues outside of 0-179
	ErrInvalidHue = errors.New("target hue must be in range 0-179")
	// ErrEmptyFrame is returned when segmenting an empty Mat
	ErrEmptyFrame = errors.New("empty frame")
	// ErrUnsupportedFrame is returned for frames that are not 8 bit BGR
	ErrUnsupportedFrame = errors.New("frame must be 8 bit 3 channel BGR")
)

// Segment finds the bounding box of the pixels within roi whose colour
// intensity relative to the target hue is at or above threshold.  The box is
// relative to the ROI and found is false when no pixel passed the threshold.
// A zero roi means the full frame.  The frame is only read.
func Segment(frame gocv.Mat, roi ROI, hue, threshold uint8) (box Box, found bool, err error) {

	if frame.Empty() {
		return Box{}, false, ErrEmptyFrame
	}

	if frame.Type() != gocv.MatTypeCV8UC3 {
		return Box{}, false, ErrUnsupportedFrame
	}

	if hue >= HueRange {
		return Box{}, false, fmt.Errorf("%w: %d", ErrInvalidHue, hue)
	}

	roi = roi.Resolve(frame.Cols(), frame.Rows())

	if err := roi.Validate(frame.Cols(), frame.Rows()); err != nil {
		return Box{}, false, err
	}

	if roi.Width() == 0 || roi.Height() == 0 {
		return Box{}, false, nil
	}

	// crop to the ROI, the region shares memory with frame
	region := frame.Region(roi.Rect())
	defer region.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV)

	data, err := hsv.DataPtrUint8()

	if err != nil {
		return Box{}, false, fmt.Errorf("error reading HSV buffer: %w", err)
	}

	intensity := IntensityMap(data, hsv.Cols(), hsv.Rows(), hue)

	intensityMat, err := gocv.NewMatFromBytes(hsv.Rows(), hsv.Cols(),
		gocv.MatTypeCV8UC1, intensity)

	if err != nil {
		return Box{}, false, fmt.Errorf("error creating intensity Mat: %w", err)
	}

	defer intensityMat.Close()

	// binary mask of pixels with threshold <= intensity <= 255
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(intensityMat, gocv.NewScalar(float64(threshold), 0, 0, 0),
		gocv.NewScalar(255, 0, 0, 0), &mask)

	// intensityMat references the Go buffer
	runtime.KeepAlive(intensity)

	box, found = boundingBox(mask)
	return box, found, nil
}

// boundingBox returns the minimal rectangle enclosing all non zero pixels of
// a binary mask
func boundingBox(mask gocv.Mat) (Box, bool) {

	if gocv.CountNonZero(mask) == 0 {
		return Box{}, false
	}

	locations := gocv.NewMat()
	defer locations.Close()
	gocv.FindNonZero(mask, &locations)

	points := gocv.NewPointVectorFromMat(locations)
	defer points.Close()

	rect := gocv.BoundingRect(points)

	return Box{
		X:      rect.Min.X,
		Y:      rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}, true
}

// Result is the outcome of segmenting one frame
type Result struct {
	// Box is the bounding box relative to ROI, valid when Found is true
	Box   Box
	Found bool
	// ROI is the resolved region of interest the frame was segmented in
	ROI ROI
	// Err is set when the frame could not be segmented
	Err error
}

// Segmenter segments frames with a hue, threshold and ROI that may be changed
// while frames are being processed on another goroutine
type Segmenter struct {
	hue       atomic.Uint32
	threshold atomic.Uint32
	roi       atomic.Pointer[ROI]
}

// NewSegmenter returns a Segmenter with the given tunables.  A zero roi means
// the full frame.
func NewSegmenter(hue, threshold uint8, roi ROI) (*Segmenter, error) {

	s := &Segmenter{}

	if err := s.SetHue(hue); err != nil {
		return nil, err
	}

	s.SetThreshold(threshold)
	s.SetROI(roi)

	return s, nil
}

// SetHue changes the target hue
func (s *Segmenter) SetHue(hue uint8) error {

	if hue >= HueRange {
		return fmt.Errorf("%w: %d", ErrInvalidHue, hue)
	}

	s.hue.Store(uint32(hue))
	return nil
}

// SetThreshold changes the intensity cutoff
func (s *Segmenter) SetThreshold(threshold uint8) {
	s.threshold.Store(uint32(threshold))
}

// SetROI changes the region of interest
func (s *Segmenter) SetROI(roi ROI) {
	s.roi.Store(&roi)
}

// Hue returns the target hue
func (s *Segmenter) Hue() uint8 {
	return uint8(s.hue.Load())
}

// Threshold returns the intensity cutoff
func (s *Segmenter) Threshold() uint8 {
	return uint8(s.threshold.Load())
}

// ROI returns the configured region of interest
func (s *Segmenter) ROI() ROI {
	return *s.roi.Load()
}

// Process segments a frame with the current tunables.  It matches the
// ProcessData callback of a colortracker.Source.
func (s *Segmenter) Process(frame gocv.Mat) Result {

	roi := s.ROI().Resolve(frame.Cols(), frame.Rows())
	box, found, err := Segment(frame, roi, s.Hue(), s.Threshold())

	return Result{
		Box:   box,
		Found: found,
		ROI:   roi,
		Err:   err,
	}
}
