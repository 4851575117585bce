package segment

import (
	"errors"
	"gocv.io/x/gocv"
	"math/rand"
	"testing"
)

// bgrFrame creates a black BGR frame with the given pixels painted
func bgrFrame(t *testing.T, width, height int, pixels map[[2]int][3]uint8) gocv.Mat {
	t.Helper()

	buf := make([]byte, width*height*3)

	for pt, bgr := range pixels {
		p := (pt[1]*width + pt[0]) * 3
		buf[p], buf[p+1], buf[p+2] = bgr[0], bgr[1], bgr[2]
	}

	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, buf)

	if err != nil {
		t.Fatalf("error creating frame: %v", err)
	}

	// detach from the Go buffer
	frame := mat.Clone()
	mat.Close()

	return frame
}

var (
	red  = [3]uint8{0, 0, 255}
	cyan = [3]uint8{255, 255, 0}
)

func TestIntensity(t *testing.T) {

	tests := []struct {
		h, s, v, target uint8
		expected        uint8
	}{
		{0, 255, 255, 0, 255},
		{120, 255, 255, 120, 255},
		{90, 255, 255, 0, 0},
		{30, 255, 255, 120, 0},
		{179, 255, 255, 0, 253},
		{45, 255, 255, 0, 128},
		{0, 0, 255, 0, 0},
		{0, 255, 0, 0, 0},
		{0, 128, 255, 0, 128},
	}

	for _, tc := range tests {
		got := Intensity(tc.h, tc.s, tc.v, tc.target)

		if got != tc.expected {
			t.Errorf("Intensity(h=%d, s=%d, v=%d, target=%d) = %d, expected %d",
				tc.h, tc.s, tc.v, tc.target, got, tc.expected)
		}
	}
}

func TestIntensityMapMatchesPixelwise(t *testing.T) {

	width, height := 37, 23
	hsv := make([]byte, width*height*3)
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < len(hsv); i += 3 {
		hsv[i] = uint8(rnd.Intn(HueRange))
		hsv[i+1] = uint8(rnd.Intn(256))
		hsv[i+2] = uint8(rnd.Intn(256))
	}

	out := IntensityMap(hsv, width, height, 42)

	if len(out) != width*height {
		t.Fatalf("expected %d values, got %d", width*height, len(out))
	}

	for i := range out {
		expected := Intensity(hsv[i*3], hsv[i*3+1], hsv[i*3+2], 42)

		if out[i] != expected {
			t.Fatalf("pixel %d: expected %d, got %d", i, expected, out[i])
		}
	}
}

func TestSegmentSinglePixel(t *testing.T) {

	frame := bgrFrame(t, 4, 4, map[[2]int][3]uint8{{2, 2}: red})
	defer frame.Close()

	box, found, err := Segment(frame, FullFrame(4, 4), 0, 10)

	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}

	expected := Box{X: 2, Y: 2, Width: 1, Height: 1}

	if !found || box != expected {
		t.Errorf("expected box %v, got %v (found=%v)", expected, box, found)
	}
}

func TestSegmentRelativeToROI(t *testing.T) {

	frame := bgrFrame(t, 10, 10, map[[2]int][3]uint8{
		{6, 7}: red,
		{8, 9}: red,
		// outside of the ROI
		{1, 1}: red,
	})
	defer frame.Close()

	box, found, err := Segment(frame, ROI{X1: 5, Y1: 5, X2: 10, Y2: 10}, 0, 20)

	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}

	expected := Box{X: 1, Y: 2, Width: 3, Height: 3}

	if !found || box != expected {
		t.Errorf("expected box %v, got %v (found=%v)", expected, box, found)
	}
}

func TestSegmentAbsent(t *testing.T) {

	frame := bgrFrame(t, 8, 8, map[[2]int][3]uint8{{3, 3}: cyan})
	defer frame.Close()

	// cyan is the opposite hue of red
	if _, found, err := Segment(frame, ROI{}, 0, 1); err != nil || found {
		t.Errorf("expected no detection for opposite hue, found=%v err=%v", found, err)
	}

	// the maximum threshold still accepts an exact hue match
	if _, found, _ := Segment(frame, ROI{}, 90, 255); !found {
		t.Errorf("expected exact hue match to reach intensity 255")
	}

	black := bgrFrame(t, 8, 8, nil)
	defer black.Close()

	if _, found, _ := Segment(black, ROI{}, 0, 1); found {
		t.Errorf("expected no detection in a black frame")
	}

	// a zero threshold accepts every pixel of the ROI
	box, found, _ := Segment(black, ROI{X1: 2, Y1: 1, X2: 6, Y2: 4}, 0, 0)

	if !found || box != (Box{X: 0, Y: 0, Width: 4, Height: 3}) {
		t.Errorf("expected full ROI box, got %v (found=%v)", box, found)
	}
}

func TestSegmentBoxInsideROI(t *testing.T) {

	rnd := rand.New(rand.NewSource(7))
	width, height := 24, 18

	for i := 0; i < 25; i++ {
		pixels := make(map[[2]int][3]uint8)

		for j := 0; j < 6; j++ {
			pixels[[2]int{rnd.Intn(width), rnd.Intn(height)}] = red
		}

		frame := bgrFrame(t, width, height, pixels)

		x1, y1 := rnd.Intn(width), rnd.Intn(height)
		roi := ROI{X1: x1, Y1: y1, X2: x1 + rnd.Intn(width-x1+1), Y2: y1 + rnd.Intn(height-y1+1)}

		box, found, err := Segment(frame, roi, 0, 20)
		frame.Close()

		if err != nil {
			t.Fatalf("Segment failed for ROI %v: %v", roi, err)
		}

		if !found {
			continue
		}

		roi = roi.Resolve(width, height)

		if box.X < 0 || box.Y < 0 || box.X+box.Width > roi.Width() || box.Y+box.Height > roi.Height() {
			t.Errorf("box %v extends outside ROI %v", box, roi)
		}
	}
}

func TestSegmentErrors(t *testing.T) {

	frame := bgrFrame(t, 4, 4, nil)
	defer frame.Close()

	if _, _, err := Segment(frame, ROI{X1: 3, Y1: 0, X2: 1, Y2: 4}, 0, 20); !errors.Is(err, ErrInvalidROI) {
		t.Errorf("expected ErrInvalidROI for unordered ROI, got %v", err)
	}

	if _, _, err := Segment(frame, ROI{X1: 0, Y1: 0, X2: 5, Y2: 4}, 0, 20); !errors.Is(err, ErrInvalidROI) {
		t.Errorf("expected ErrInvalidROI for ROI outside frame, got %v", err)
	}

	if _, _, err := Segment(frame, ROI{}, 180, 20); !errors.Is(err, ErrInvalidHue) {
		t.Errorf("expected ErrInvalidHue, got %v", err)
	}

	empty := gocv.NewMat()
	defer empty.Close()

	if _, _, err := Segment(empty, ROI{}, 0, 20); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("expected ErrEmptyFrame, got %v", err)
	}

	gray := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC1)
	defer gray.Close()

	if _, _, err := Segment(gray, ROI{}, 0, 20); !errors.Is(err, ErrUnsupportedFrame) {
		t.Errorf("expected ErrUnsupportedFrame, got %v", err)
	}
}

func TestSegmenterTunables(t *testing.T) {

	frame := bgrFrame(t, 6, 6, map[[2]int][3]uint8{{1, 4}: cyan})
	defer frame.Close()

	seg, err := NewSegmenter(0, DefaultThreshold, ROI{})

	if err != nil {
		t.Fatalf("NewSegmenter failed: %v", err)
	}

	res := seg.Process(frame)

	if res.Err != nil || res.Found {
		t.Fatalf("expected no detection with red target, got %+v", res)
	}

	if res.ROI != FullFrame(6, 6) {
		t.Errorf("expected resolved full frame ROI, got %v", res.ROI)
	}

	if err := seg.SetHue(90); err != nil {
		t.Fatalf("SetHue failed: %v", err)
	}

	res = seg.Process(frame)

	if !res.Found || res.Box != (Box{X: 1, Y: 4, Width: 1, Height: 1}) {
		t.Errorf("expected cyan pixel after hue change, got %+v", res)
	}

	seg.SetROI(ROI{X1: 0, Y1: 0, X2: 3, Y2: 3})

	if res := seg.Process(frame); res.Found {
		t.Errorf("expected pixel outside new ROI to be ignored, got %+v", res)
	}

	if err := seg.SetHue(200); !errors.Is(err, ErrInvalidHue) {
		t.Errorf("expected ErrInvalidHue, got %v", err)
	}

	if seg.Hue() != 90 {
		t.Errorf("invalid hue replaced the previous one, hue=%d", seg.Hue())
	}
}

func TestROIValidate(t *testing.T) {

	tests := []struct {
		roi   ROI
		valid bool
	}{
		{ROI{0, 0, 640, 480}, true},
		{ROI{10, 10, 10, 10}, true},
		{ROI{-1, 0, 10, 10}, false},
		{ROI{0, 0, 641, 480}, false},
		{ROI{20, 0, 10, 10}, false},
	}

	for _, tc := range tests {
		err := tc.roi.Validate(640, 480)

		if (err == nil) != tc.valid {
			t.Errorf("Validate(%v) = %v, expected valid=%v", tc.roi, err, tc.valid)
		}
	}

	box := Box{X: 1, Y: 2, Width: 3, Height: 4}
	cx, cy := box.Center()

	if cx != 2.5 || cy != 4 {
		t.Errorf("expected center (2.5, 4), got (%v, %v)", cx, cy)
	}

	if r := box.InFrame(ROI{X1: 10, Y1: 20, X2: 30, Y2: 40}); r.Min.X != 11 || r.Min.Y != 22 || r.Dx() != 3 {
		t.Errorf("unexpected frame rectangle %v", r)
	}
}
