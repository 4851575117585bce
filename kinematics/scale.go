package kinematics

import (
	"errors"
	"fmt"
	"gonum.org/v1/gonum/spatial/r2"
	"image"
	"math"
	"sort"
	"strings"
)

var (
	// ErrInvalidScale is returned for a non positive or non finite pixel scale
	ErrInvalidScale = errors.New("pixels per unit must be a positive number")
	// ErrUnknownUnit is returned for a length unit not in the unit table
	ErrUnknownUnit = errors.New("unknown length unit")
)

// Unit is a metric length unit
type Unit string

const (
	Meter      Unit = "m"
	Decimeter  Unit = "dm"
	Centimeter Unit = "cm"
	Millimeter Unit = "mm"
)

// DefaultUnit is used when no unit has been configured
const DefaultUnit = Centimeter

// unitExponents maps each unit to its power of ten relative to a meter
var unitExponents = map[Unit]int{
	Meter:      0,
	Decimeter:  -1,
	Centimeter: -2,
	Millimeter: -3,
}

// ParseUnit returns the Unit named by s
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.TrimSpace(s))

	if _, ok := unitExponents[u]; !ok {
		return "", fmt.Errorf("%w %q, expected one of %s", ErrUnknownUnit, s,
			strings.Join(Units(), ", "))
	}

	return u, nil
}

// Units returns the names of all supported units, largest first
func Units() []string {
	names := make([]string, 0, len(unitExponents))
	for u := range unitExponents {
		names = append(names, string(u))
	}
	sort.Slice(names, func(i, j int) bool {
		return unitExponents[Unit(names[i])] > unitExponents[Unit(names[j])]
	})
	return names
}

// Scale converts pixel coordinates into physical lengths
type Scale struct {
	// PixelsPerUnit is the number of pixels spanning one Unit
	PixelsPerUnit float64
	Unit          Unit
}

// DefaultScale measures lengths in pixels labelled with the default unit
func DefaultScale() Scale {
	return Scale{PixelsPerUnit: 1, Unit: DefaultUnit}
}

// Validate checks the scale can be used for conversion.  The unit is only a
// display label here, any label is accepted.
func (s Scale) Validate() error {

	if s.PixelsPerUnit <= 0 || math.IsNaN(s.PixelsPerUnit) || math.IsInf(s.PixelsPerUnit, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidScale, s.PixelsPerUnit)
	}

	return nil
}

// To returns the same scale expressed in another unit
func (s Scale) To(unit Unit) (Scale, error) {

	if err := s.Validate(); err != nil {
		return Scale{}, err
	}

	from, ok := unitExponents[s.Unit]

	if !ok {
		return Scale{}, fmt.Errorf("%w %q", ErrUnknownUnit, s.Unit)
	}

	to, ok := unitExponents[unit]

	if !ok {
		return Scale{}, fmt.Errorf("%w %q", ErrUnknownUnit, unit)
	}

	exp := to - from

	return Scale{
		PixelsPerUnit: s.PixelsPerUnit * math.Pow10(exp),
		Unit:          unit,
	}, nil
}

// Calibrate derives a scale from a reference segment between two pixel
// points whose real length is known
func Calibrate(a, b image.Point, length float64, unit Unit) (Scale, error) {

	if _, ok := unitExponents[unit]; !ok {
		return Scale{}, fmt.Errorf("%w %q", ErrUnknownUnit, unit)
	}

	if length <= 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return Scale{}, fmt.Errorf("%w: reference length %v", ErrInvalidScale, length)
	}

	pixels := r2.Norm(r2.Sub(
		r2.Vec{X: float64(b.X), Y: float64(b.Y)},
		r2.Vec{X: float64(a.X), Y: float64(a.Y)},
	))

	if pixels == 0 {
		return Scale{}, fmt.Errorf("%w: reference points %v and %v coincide", ErrInvalidScale, a, b)
	}

	return Scale{PixelsPerUnit: pixels / length, Unit: unit}, nil
}
