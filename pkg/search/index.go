package search

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ChrisMcGann/psmsearch/pkg/core"
	"github.com/ChrisMcGann/psmsearch/pkg/massdiff"
)

// ErrUnsortedScans is returned when scans are not in ascending precursor mass order.
var ErrUnsortedScans = errors.New("scans are not sorted by precursor mass")

// ScanIndex is a read-only view of scans sorted by neutral precursor mass.
// A scan's position in the index is its slot in the search results.
type ScanIndex struct {
	scans  []*core.Scan
	masses []float64
}

// NewScanIndex wraps scans that are already sorted ascending by precursor mass
// (see core.SortScans).
func NewScanIndex(scans []*core.Scan) (*ScanIndex, error) {
	masses := make([]float64, len(scans))
	for i, s := range scans {
		if s == nil {
			return nil, fmt.Errorf("scan at index %d is nil", i)
		}
		if math.IsNaN(s.PrecursorMass) {
			return nil, fmt.Errorf("%w: scan %s has NaN precursor mass", ErrUnsortedScans, s.Name())
		}
		if i > 0 && s.PrecursorMass < masses[i-1] {
			return nil, fmt.Errorf("%w: scan %s (%.6f) follows %.6f at index %d",
				ErrUnsortedScans, s.Name(), s.PrecursorMass, masses[i-1], i)
		}
		masses[i] = s.PrecursorMass
	}
	return &ScanIndex{scans: scans, masses: masses}, nil
}

// Len returns the number of scans.
func (x *ScanIndex) Len() int { return len(x.scans) }

// Scan returns the i-th scan.
func (x *ScanIndex) Scan(i int) *core.Scan { return x.scans[i] }

// Mass returns the precursor mass of the i-th scan.
func (x *ScanIndex) Mass(i int) float64 { return x.masses[i] }

// FirstAtOrAbove returns the smallest index whose mass is >= mass, or Len() if
// there is none.
func (x *ScanIndex) FirstAtOrAbove(mass float64) int {
	return sort.SearchFloat64s(x.masses, mass)
}

// Walk calls fn for every scan whose mass lies in the closed interval, in
// ascending order.
func (x *ScanIndex) Walk(iv massdiff.Interval, fn func(i int)) {
	for i := x.FirstAtOrAbove(iv.Min); i < len(x.masses) && x.masses[i] <= iv.Max; i++ {
		fn(i)
	}
}
