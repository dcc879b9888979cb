// Package massdiff decides which candidate masses are compatible with an observed
// precursor mass. An Acceptor turns a theoretical mass into the list of observed-mass
// intervals that would be accepted, each tagged with a notch index.
package massdiff

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTolerance is returned for negative, NaN or unparseable tolerances.
var ErrInvalidTolerance = errors.New("invalid tolerance")

// Unit of a Tolerance value.
type Unit int

const (
	Absolute Unit = iota // Daltons
	PPM                  // parts per million of the theoretical mass
)

func (u Unit) String() string {
	if u == PPM {
		return "ppm"
	}
	return "Da"
}

// Tolerance is a mass tolerance in Daltons or ppm.
type Tolerance struct {
	Unit  Unit
	Value float64
}

// NewPpmTolerance returns a ppm tolerance.
func NewPpmTolerance(ppm float64) Tolerance { return Tolerance{Unit: PPM, Value: ppm} }

// NewAbsoluteTolerance returns a tolerance in Daltons.
func NewAbsoluteTolerance(da float64) Tolerance { return Tolerance{Unit: Absolute, Value: da} }

// ParseTolerance parses strings like "5 ppm", "20ppm", "0.02 Da" or "0.5da".
func ParseTolerance(s string) (Tolerance, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var unit Unit
	switch {
	case strings.HasSuffix(s, "ppm"):
		unit = PPM
		s = strings.TrimSuffix(s, "ppm")
	case strings.HasSuffix(s, "da"):
		unit = Absolute
		s = strings.TrimSuffix(s, "da")
	default:
		return Tolerance{}, fmt.Errorf("%w: '%s' has no unit (ppm or Da)", ErrInvalidTolerance, s)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Tolerance{}, fmt.Errorf("%w: %v", ErrInvalidTolerance, err)
	}
	t := Tolerance{Unit: unit, Value: v}
	if err := t.Validate(); err != nil {
		return Tolerance{}, err
	}
	return t, nil
}

// Validate rejects negative, NaN and infinite tolerances.
func (t Tolerance) Validate() error {
	if t.Value < 0 || math.IsNaN(t.Value) || math.IsInf(t.Value, 0) {
		return fmt.Errorf("%w: %g %s", ErrInvalidTolerance, t.Value, t.Unit)
	}
	return nil
}

// Delta returns the absolute half-width of the window around mass.
func (t Tolerance) Delta(mass float64) float64 {
	if t.Unit == PPM {
		return math.Abs(mass) * t.Value / 1e6
	}
	return t.Value
}

// Range returns the closed interval of values within tolerance of mass.
func (t Tolerance) Range(mass float64) Interval {
	d := t.Delta(mass)
	return Interval{Min: mass - d, Max: mass + d}
}

// Within reports whether experimental lies within tolerance of theoretical.
func (t Tolerance) Within(experimental, theoretical float64) bool {
	return math.Abs(experimental-theoretical) <= t.Delta(theoretical)
}

func (t Tolerance) String() string {
	return fmt.Sprintf("%g %s", t.Value, t.Unit)
}
