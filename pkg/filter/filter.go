// Package filter provides peak filtering applied to scans before searching
package filter

import (
	"sort"

	"github.com/ChrisMcGann/psmsearch/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks at or above this % of base peak (0 = no cutoff)
}

// Enabled reports whether any filter is configured.
func (c *Config) Enabled() bool {
	return c.TopN > 0 || c.IntensityCutoff > 0
}

// Apply returns a copy of the scan with zero-intensity peaks removed and the
// configured filters applied. Peaks stay sorted by m/z and the TIC is recomputed.
func (c *Config) Apply(scan *core.Scan) *core.Scan {
	peaks := RemoveZeroIntensityPeaks(scan.Peaks)

	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		peaks = filterByIntensity(peaks, c.IntensityCutoff)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		peaks = filterTopN(peaks, c.TopN)
	}

	return scan.WithPeaks(peaks)
}

// ApplyAll filters every scan. The input slice is not modified.
func (c *Config) ApplyAll(scans []*core.Scan) []*core.Scan {
	out := make([]*core.Scan, len(scans))
	for i, s := range scans {
		out[i] = c.Apply(s)
	}
	return out
}

// filterByIntensity removes peaks below the cutoff percentage of the base peak
func filterByIntensity(peaks []core.Peak, cutoff float64) []core.Peak {
	if len(peaks) == 0 {
		return peaks
	}

	// Find maximum intensity
	maxIntensity := 0.0
	for _, peak := range peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}

	threshold := (cutoff / 100.0) * maxIntensity

	var filtered []core.Peak
	for _, peak := range peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}

// filterTopN keeps only the N most intense peaks, returned in m/z order
func filterTopN(peaks []core.Peak, n int) []core.Peak {
	if len(peaks) <= n {
		return peaks
	}

	// Create a copy and sort by intensity descending
	sorted := make([]core.Peak, len(peaks))
	copy(sorted, peaks)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Intensity > sorted[j].Intensity
	})

	kept := sorted[:n]
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].MZ < kept[j].MZ
	})
	return kept
}

// RemoveZeroIntensityPeaks returns the peaks with positive intensity
func RemoveZeroIntensityPeaks(peaks []core.Peak) []core.Peak {
	var filtered []core.Peak
	for _, peak := range peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}
