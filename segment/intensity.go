package segment

import (
	"golang.org/x/sync/errgroup"
	"runtime"
)

const (
	// HueRange is the period of the hue channel, OpenCV stores 8 bit hue as
	// 0-179
	HueRange = 180
	// halfHue is the largest possible distance between two hues
	halfHue = HueRange / 2
)

// Intensity scores how close a HSV pixel is to the target hue.  The response
// is triangular, 255 at the target hue falling linearly to 0 at a distance of
// 90, and is attenuated by saturation and value so grey and dark pixels never
// register.
func Intensity(h, s, v, target uint8) uint8 {

	d := (int(h) + halfHue - int(target)) % HueRange

	if d < 0 {
		d += HueRange
	}

	dist := d - halfHue

	if dist < 0 {
		dist = -dist
	}

	tri := 255 - dist*255/halfHue

	return uint8(tri * int(s) * int(v) / (255 * 255))
}

// IntensityMap computes the colour intensity of every pixel of a packed 3
// channel HSV buffer.  Rows are processed in parallel bands.
func IntensityMap(hsv []byte, width, height int, target uint8) []byte {

	out := make([]byte, width*height)

	if width == 0 || height == 0 {
		return out
	}

	bands := runtime.GOMAXPROCS(0)

	if bands > height {
		bands = height
	}

	rowsPerBand := (height + bands - 1) / bands

	var g errgroup.Group

	for start := 0; start < height; start += rowsPerBand {

		end := start + rowsPerBand

		if end > height {
			end = height
		}

		g.Go(func() error {
			for y := start; y < end; y++ {
				row := y * width

				for x := 0; x < width; x++ {
					p := (row + x) * 3
					out[row+x] = Intensity(hsv[p], hsv[p+1], hsv[p+2], target)
				}
			}
			return nil
		})
	}

	// the kernel can not fail
	_ = g.Wait()

	return out
}
