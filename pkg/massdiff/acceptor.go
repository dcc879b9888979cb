package massdiff

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedIntervals is returned when intervals overlap, are inverted or are
// not in ascending order.
var ErrMalformedIntervals = errors.New("malformed acceptor intervals")

// Kind identifies an acceptor variant.
type Kind int

const (
	FixedWindow  Kind = iota // absolute window around a zero mass difference
	PpmWindow                // ppm window around a zero mass difference
	Unrestricted             // open search, everything is accepted
	IntervalList             // sorted list of allowed mass-difference intervals
	Notched                  // list of mass shifts, each with its own tolerance window
)

var kindNames = map[Kind]string{
	FixedWindow:  "da",
	PpmWindow:    "ppm",
	Unrestricted: "open",
	IntervalList: "interval",
	Notched:      "dot",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a search mode name ("da", "ppm", "open", "interval", "dot") to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown search mode '%s'", s)
}

// Interval is a closed range [Min, Max].
type Interval struct {
	Min, Max float64
}

// Contains reports whether v lies in the closed interval.
func (iv Interval) Contains(v float64) bool {
	return v >= iv.Min && v <= iv.Max
}

// ParseInterval parses "min:max" (e.g. "-0.5:0.5").
func ParseInterval(s string) (Interval, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("invalid interval '%s', expected 'min:max'", s)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval minimum '%s': %w", parts[0], err)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval maximum '%s': %w", parts[1], err)
	}
	if lo > hi {
		return Interval{}, fmt.Errorf("%w: interval '%s' has min > max", ErrMalformedIntervals, s)
	}
	return Interval{Min: lo, Max: hi}, nil
}

// AllowedInterval is an accepted range of observed precursor masses together
// with the notch it belongs to.
type AllowedInterval struct {
	Interval
	Notch int
}

// Acceptor is a closed set of precursor mass-difference policies. The zero value
// is not useful; use one of the constructors. Acceptors are immutable and safe
// for concurrent use.
type Acceptor struct {
	kind      Kind
	name      string
	tolerance Tolerance
	intervals []Interval // IntervalList: observed-minus-theoretical windows, ascending
	shifts    []float64  // Notched: ascending mass shifts
}

// NewFixedWindow accepts observed masses within da Daltons of the candidate mass.
func NewFixedWindow(da float64) (Acceptor, error) {
	tol := NewAbsoluteTolerance(da)
	if err := tol.Validate(); err != nil {
		return Acceptor{}, err
	}
	return Acceptor{kind: FixedWindow, name: fmt.Sprintf("%gdaltonAroundZero", da), tolerance: tol}, nil
}

// NewPpmWindow accepts observed masses within ppm of the candidate mass.
func NewPpmWindow(ppm float64) (Acceptor, error) {
	tol := NewPpmTolerance(ppm)
	if err := tol.Validate(); err != nil {
		return Acceptor{}, err
	}
	return Acceptor{kind: PpmWindow, name: fmt.Sprintf("%gppmAroundZero", ppm), tolerance: tol}, nil
}

// NewUnrestricted accepts any observed mass.
func NewUnrestricted() Acceptor {
	return Acceptor{kind: Unrestricted, name: "OpenSearch"}
}

// NewIntervalList accepts observed masses whose difference from the candidate
// mass falls into one of the intervals. Intervals are sorted ascending; the notch
// of a match is the index of its interval in that order.
func NewIntervalList(name string, intervals []Interval) (Acceptor, error) {
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	for i, iv := range sorted {
		if math.IsNaN(iv.Min) || math.IsNaN(iv.Max) || iv.Min > iv.Max {
			return Acceptor{}, fmt.Errorf("%w: interval %d [%g, %g]", ErrMalformedIntervals, i, iv.Min, iv.Max)
		}
		if i > 0 && iv.Min <= sorted[i-1].Max {
			return Acceptor{}, fmt.Errorf("%w: [%g, %g] overlaps [%g, %g]",
				ErrMalformedIntervals, sorted[i-1].Min, sorted[i-1].Max, iv.Min, iv.Max)
		}
	}
	if name == "" {
		name = "intervals"
	}
	return Acceptor{kind: IntervalList, name: name, intervals: sorted}, nil
}

// NewNotched accepts observed masses within tol of candidate mass + shift for any
// of the shifts (for example 0, 1.0029 and 2.0058 for missed monoisotopic peaks).
// The notch of a match is the index of its shift in ascending order.
func NewNotched(name string, shifts []float64, tol Tolerance) (Acceptor, error) {
	if err := tol.Validate(); err != nil {
		return Acceptor{}, err
	}
	if len(shifts) == 0 {
		return Acceptor{}, fmt.Errorf("%w: no mass shifts", ErrMalformedIntervals)
	}
	sorted := make([]float64, len(shifts))
	copy(sorted, shifts)
	sort.Float64s(sorted)
	for i := range sorted {
		if math.IsNaN(sorted[i]) {
			return Acceptor{}, fmt.Errorf("%w: NaN mass shift", ErrMalformedIntervals)
		}
		// Absolute windows can be checked up front; ppm windows depend on the
		// candidate mass and are checked when intervals are produced.
		if i > 0 && tol.Unit == Absolute && sorted[i]-sorted[i-1] <= 2*tol.Value {
			return Acceptor{}, fmt.Errorf("%w: shifts %g and %g are closer than the window",
				ErrMalformedIntervals, sorted[i-1], sorted[i])
		}
	}
	if name == "" {
		name = "dot"
	}
	return Acceptor{kind: Notched, name: name, tolerance: tol, shifts: sorted}, nil
}

// Kind returns the acceptor variant.
func (a Acceptor) Kind() Kind { return a.kind }

func (a Acceptor) String() string { return a.name }

// NumNotches returns the number of distinct notches the acceptor can report.
func (a Acceptor) NumNotches() int {
	switch a.kind {
	case IntervalList:
		return len(a.intervals)
	case Notched:
		return len(a.shifts)
	default:
		return 1
	}
}

// AllowedIntervals returns the observed-mass intervals compatible with the
// candidate mass, ascending and non-overlapping.
func (a Acceptor) AllowedIntervals(candidateMass float64) []AllowedInterval {
	return a.AppendAllowedIntervals(nil, candidateMass)
}

// AppendAllowedIntervals appends the allowed intervals for candidateMass to dst.
func (a Acceptor) AppendAllowedIntervals(dst []AllowedInterval, candidateMass float64) []AllowedInterval {
	switch a.kind {
	case FixedWindow, PpmWindow:
		dst = append(dst, AllowedInterval{Interval: a.tolerance.Range(candidateMass), Notch: 0})
	case Unrestricted:
		dst = append(dst, AllowedInterval{Interval: Interval{Min: math.Inf(-1), Max: math.Inf(1)}, Notch: 0})
	case IntervalList:
		for i, iv := range a.intervals {
			dst = append(dst, AllowedInterval{
				Interval: Interval{Min: candidateMass + iv.Min, Max: candidateMass + iv.Max},
				Notch:    i,
			})
		}
	case Notched:
		for i, shift := range a.shifts {
			dst = append(dst, AllowedInterval{Interval: a.tolerance.Range(candidateMass + shift), Notch: i})
		}
	}
	return dst
}

// Notch returns the notch under which observedMass is accepted for candidateMass.
func (a Acceptor) Notch(observedMass, candidateMass float64) (int, bool) {
	switch a.kind {
	case FixedWindow, PpmWindow:
		if a.tolerance.Within(observedMass, candidateMass) {
			return 0, true
		}
	case Unrestricted:
		return 0, true
	case IntervalList:
		diff := observedMass - candidateMass
		// first interval whose max is >= diff
		i := sort.Search(len(a.intervals), func(i int) bool { return a.intervals[i].Max >= diff })
		if i < len(a.intervals) && a.intervals[i].Contains(diff) {
			return i, true
		}
	case Notched:
		for i, shift := range a.shifts {
			if a.tolerance.Within(observedMass, candidateMass+shift) {
				return i, true
			}
		}
	}
	return -1, false
}

// Accepts reports whether observedMass is compatible with candidateMass.
func (a Acceptor) Accepts(observedMass, candidateMass float64) bool {
	_, ok := a.Notch(observedMass, candidateMass)
	return ok
}

// ValidateIntervals checks that intervals are individually well formed, ascending
// and pairwise disjoint.
func ValidateIntervals(intervals []AllowedInterval) error {
	for i, iv := range intervals {
		if math.IsNaN(iv.Min) || math.IsNaN(iv.Max) || iv.Min > iv.Max {
			return fmt.Errorf("%w: interval %d [%g, %g]", ErrMalformedIntervals, i, iv.Min, iv.Max)
		}
		if i > 0 && iv.Min <= intervals[i-1].Max {
			return fmt.Errorf("%w: interval %d [%g, %g] is not after [%g, %g]",
				ErrMalformedIntervals, i, iv.Min, iv.Max, intervals[i-1].Min, intervals[i-1].Max)
		}
	}
	return nil
}

// Parse builds an acceptor from configuration values. tolerance is used by the
// "da", "ppm" and "dot" modes; intervals ("min:max") by "interval"; shifts by "dot".
// For "da" and "ppm" a bare number is accepted as the tolerance value.
func Parse(mode, tolerance string, intervals []string, shifts []float64) (Acceptor, error) {
	kind, err := ParseKind(mode)
	if err != nil {
		return Acceptor{}, err
	}

	switch kind {
	case Unrestricted:
		return NewUnrestricted(), nil
	case IntervalList:
		ivs := make([]Interval, 0, len(intervals))
		for _, s := range intervals {
			iv, err := ParseInterval(s)
			if err != nil {
				return Acceptor{}, err
			}
			ivs = append(ivs, iv)
		}
		if len(ivs) == 0 {
			return Acceptor{}, fmt.Errorf("%w: interval mode needs at least one interval", ErrMalformedIntervals)
		}
		return NewIntervalList("", ivs)
	}

	tol, err := parseModeTolerance(kind, tolerance)
	if err != nil {
		return Acceptor{}, err
	}
	switch kind {
	case FixedWindow:
		if tol.Unit != Absolute {
			return Acceptor{}, fmt.Errorf("%w: mode 'da' needs a Dalton tolerance, got %s", ErrInvalidTolerance, tol)
		}
		return NewFixedWindow(tol.Value)
	case PpmWindow:
		if tol.Unit != PPM {
			return Acceptor{}, fmt.Errorf("%w: mode 'ppm' needs a ppm tolerance, got %s", ErrInvalidTolerance, tol)
		}
		return NewPpmWindow(tol.Value)
	default:
		return NewNotched("", shifts, tol)
	}
}

func parseModeTolerance(kind Kind, s string) (Tolerance, error) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		switch kind {
		case FixedWindow:
			return NewAbsoluteTolerance(v), nil
		case PpmWindow:
			return NewPpmTolerance(v), nil
		}
	}
	return ParseTolerance(s)
}
