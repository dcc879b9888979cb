// Package score matches theoretical fragment masses against observed peaks.
package score

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/psmsearch/pkg/core"
	"github.com/ChrisMcGann/psmsearch/pkg/digest"
	"github.com/ChrisMcGann/psmsearch/pkg/massdiff"
)

// complementIntensityRatio scales the intensity of mirrored peaks.
const complementIntensityRatio = 0.01

// Params controls fragment matching.
type Params struct {
	Tolerance      massdiff.Tolerance
	ProductTypes   []digest.ProductType
	Complementary  bool // mirror observed peaks into the complementary ion series
	IntensityBonus bool // add matched intensity / TIC to the ion count
}

// Scorer scores candidates against scans. A Scorer owns scratch buffers and
// must not be shared between goroutines.
type Scorer struct {
	params  Params
	shifts  []float64 // complement m/z offsets, one per complementary series pair
	scratch []core.Peak
}

// NewScorer returns a scorer for the given parameters.
func NewScorer(p Params) *Scorer {
	s := &Scorer{params: p}
	if p.Complementary {
		var by, cz bool
		for _, t := range p.ProductTypes {
			switch t {
			case digest.B, digest.Y:
				by = true
			case digest.C, digest.ZDot:
				cz = true
			}
		}
		// b + y = M and c + z• = M + H, so a peak at m/z x mirrors to
		// M - x + 2 protons (b/y) or M - x + 3 protons (c/z•).
		if by {
			s.shifts = append(s.shifts, 2*core.ProtonMass)
		}
		if cz {
			s.shifts = append(s.shifts, 3*core.ProtonMass)
		}
	}
	return s
}

// Params returns the scorer configuration.
func (s *Scorer) Params() Params { return s.params }

// Score counts theoretical fragments (neutral masses, sorted ascending) that
// match an observed peak as singly protonated ions. Each peak and each
// theoretical mass is used at most once; NaN masses are skipped. With the
// intensity bonus, matched intensity divided by the scan TIC is added.
func (s *Scorer) Score(scan *core.Scan, theoretical []float64, candidateMass float64) float64 {
	peaks := s.observed(scan, candidateMass)
	if len(peaks) == 0 || len(theoretical) == 0 {
		return 0
	}

	var matched int
	var intensity float64
	j := 0
	for _, t := range theoretical {
		if math.IsNaN(t) {
			continue
		}
		mz := t + core.ProtonMass
		d := s.params.Tolerance.Delta(mz)
		lo, hi := mz-d, mz+d
		for j < len(peaks) && peaks[j].MZ < lo {
			j++
		}
		if j == len(peaks) {
			break
		}
		if peaks[j].MZ <= hi {
			matched++
			intensity += peaks[j].Intensity
			j++
		}
	}

	score := float64(matched)
	if s.params.IntensityBonus && scan.TotalIonCurrent > 0 {
		score += intensity / scan.TotalIonCurrent
	}
	return score
}

// observed returns the scan peaks, plus mirrored complementary peaks when
// enabled, sorted by m/z.
func (s *Scorer) observed(scan *core.Scan, candidateMass float64) []core.Peak {
	if len(s.shifts) == 0 {
		return scan.Peaks
	}
	s.scratch = append(s.scratch[:0], scan.Peaks...)
	for _, shift := range s.shifts {
		for _, p := range scan.Peaks {
			mz := candidateMass - p.MZ + shift
			if mz <= 0 {
				continue
			}
			s.scratch = append(s.scratch, core.Peak{MZ: mz, Intensity: p.Intensity * complementIntensityRatio})
		}
	}
	sort.Slice(s.scratch, func(i, j int) bool { return s.scratch[i].MZ < s.scratch[j].MZ })
	return s.scratch
}
