package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Scan represents a single MS2 scan with the precursor information the search needs.
// A Scan is immutable once built by NewScan and is shared read-only by search workers.
type Scan struct {
	ScanNumber      int     // One-based scan number in the source run
	PrecursorMZ     float64 // Selected ion m/z
	PrecursorCharge int     // Selected ion charge state
	PrecursorMass   float64 // Neutral precursor mass derived from m/z and charge
	RetentionTime   float64 // Minutes
	Peaks           []Peak  // Fragment peaks sorted by m/z
	TotalIonCurrent float64 // Sum of peak intensities
	SourceFile      string
}

// Peak represents a single m/z, intensity pair.
type Peak struct {
	MZ        float64
	Intensity float64
}

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based position; -1 for N-term, len(seq) for C-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
}

// ValidationError represents an error found during scan validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// NewScan builds a Scan, sorting a copy of the peaks and deriving the neutral
// precursor mass and total ion current.
func NewScan(scanNumber int, precursorMZ float64, charge int, retentionTime float64, peaks []Peak) *Scan {
	sorted := make([]Peak, len(peaks))
	copy(sorted, peaks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MZ < sorted[j].MZ
	})

	tic := 0.0
	for _, p := range sorted {
		tic += p.Intensity
	}

	return &Scan{
		ScanNumber:      scanNumber,
		PrecursorMZ:     precursorMZ,
		PrecursorCharge: charge,
		PrecursorMass:   ToMass(precursorMZ, charge),
		RetentionTime:   retentionTime,
		Peaks:           sorted,
		TotalIonCurrent: tic,
	}
}

// Validate checks that a scan meets all requirements for searching.
func (s *Scan) Validate() error {
	var errs []string

	if s.PrecursorCharge <= 0 {
		errs = append(errs, "charge must be positive")
	}
	if s.PrecursorMZ <= 0 || math.IsNaN(s.PrecursorMZ) || math.IsInf(s.PrecursorMZ, 0) {
		errs = append(errs, "precursor m/z must be positive")
	}
	if len(s.Peaks) == 0 {
		errs = append(errs, "at least one peak is required")
	}

	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   fmt.Sprintf("Scan %d", s.ScanNumber),
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Scan) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// WithPeaks returns a copy of the scan carrying a new peak list. The total ion
// current is recomputed; the receiver is left untouched.
func (s *Scan) WithPeaks(peaks []Peak) *Scan {
	out := NewScan(s.ScanNumber, s.PrecursorMZ, s.PrecursorCharge, s.RetentionTime, peaks)
	out.SourceFile = s.SourceFile
	return out
}

// Name returns the scan name in format "file:scanNumber"
func (s *Scan) Name() string {
	return fmt.Sprintf("%s:%d", s.SourceFile, s.ScanNumber)
}

// SortScans sorts scans ascending by precursor mass, keeping the original
// order of scans with equal mass.
func SortScans(scans []*Scan) {
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].PrecursorMass < scans[j].PrecursorMass
	})
}
