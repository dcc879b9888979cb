package search

import (
	"fmt"
	"sync"
)

// aggregator owns the global result array. Partitions merge into it under a
// single lock, once per partition.
type aggregator struct {
	mu      sync.Mutex
	results []*PSM

	proteinsSeen int
	total        int
	lastPercent  int
	progress     func(percent int, message string)
}

func newAggregator(numScans, totalProteins int, progress func(int, string)) *aggregator {
	return &aggregator{
		results:     make([]*PSM, numScans),
		total:       totalProteins,
		lastPercent: -1,
		progress:    progress,
	}
}

// merge folds a partition's local results into the global array and advances
// the progress counter by the number of proteins the partition covered. Tied
// matches are all kept until resolveOrigins.
func (a *aggregator) merge(local map[int]*PSM, proteins int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for si, psm := range local {
		if a.results[si] == nil {
			a.results[si] = psm
			continue
		}
		a.results[si].Merge(psm, true)
	}

	a.proteinsSeen += proteins
	if a.progress == nil || a.total == 0 {
		return
	}
	percent := a.proteinsSeen * 100 / a.total
	if percent > a.lastPercent {
		a.lastPercent = percent
		a.progress(percent, fmt.Sprintf("Performing classic search... %d/%d proteins", a.proteinsSeen, a.total))
	}
}

// resolveOrigins attaches every recorded protein location to the matches.
// Without ambiguity reporting only the first-arriving match and its first
// location are kept.
func resolveOrigins(results []*PSM, dedup *Deduplicator, reportAll bool) {
	for _, psm := range results {
		if psm == nil {
			continue
		}
		for _, m := range psm.Matches {
			if dedup != nil {
				m.Origins = mergeOrigins(m.Origins, dedup.Origins(m.Fingerprint))
			} else {
				sortOrigins(m.Origins)
			}
		}
		if !reportAll {
			psm.KeepFirstArrival()
		}
	}
}
