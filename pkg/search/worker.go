package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/ChrisMcGann/psmsearch/pkg/digest"
	"github.com/ChrisMcGann/psmsearch/pkg/massdiff"
	"github.com/ChrisMcGann/psmsearch/pkg/score"
)

// worker holds the per-partition state. Nothing in it is shared.
type worker struct {
	e         *Engine
	dedup     *Deduplicator
	scorer    *score.Scorer
	intervals []massdiff.AllowedInterval
	local     map[int]*PSM // scan index -> best match within the partition
}

// searchPartition scores every candidate of proteins [lo, hi) and returns the
// partition-local best matches keyed by scan index.
func (e *Engine) searchPartition(lo, hi int, dedup *Deduplicator) (map[int]*PSM, error) {
	w := &worker{
		e:      e,
		dedup:  dedup,
		scorer: score.NewScorer(e.scoreParams()),
		local:  make(map[int]*PSM),
	}
	for i := lo; i < hi; i++ {
		for _, c := range e.provider.Digest(i) {
			if err := w.searchCandidate(c); err != nil {
				return nil, fmt.Errorf("protein %d: %w", i, err)
			}
		}
	}
	return w.local, nil
}

func (w *worker) searchCandidate(c digest.Candidate) error {
	if w.dedup != nil && !w.dedup.TryClaim(c.Fingerprint, c.Origin) {
		return nil
	}
	if math.IsNaN(c.Mass) {
		return nil
	}

	w.intervals = w.e.acceptor.AppendAllowedIntervals(w.intervals[:0], c.Mass)
	if err := massdiff.ValidateIntervals(w.intervals); err != nil {
		return fmt.Errorf("candidate %s: %w", c.Fingerprint, err)
	}

	var fragments []float64
	generated := false
	for _, iv := range w.intervals {
		w.e.index.Walk(iv.Interval, func(si int) {
			if !generated {
				fragments = c.FragmentMasses(w.e.products)
				sort.Float64s(fragments)
				generated = true
			}
			s := w.scorer.Score(w.e.index.Scan(si), fragments, c.Mass)
			w.fold(si, c, s, iv.Notch)
		})
	}
	return nil
}

// fold records a scored candidate. In e-value mode every score is kept so the
// null distribution can be fitted; otherwise only scores at or above the cutoff.
// Tied matches are all kept: with deduplication a candidate carries only the
// location that claimed it, so the first arrival is chosen after the search.
func (w *worker) fold(scanIndex int, c digest.Candidate, s float64, notch int) {
	evalue := w.e.params.ComputeEValue
	if !evalue && s < w.e.params.ScoreCutoff {
		return
	}
	psm, ok := w.local[scanIndex]
	if !ok {
		psm = NewPSM(scanIndex, c, s, notch)
		w.local[scanIndex] = psm
	} else {
		psm.AddOrReplace(c, s, notch, true)
	}
	if evalue {
		if psm.Histogram == nil {
			psm.Histogram = score.NewHistogram()
		}
		psm.Histogram.Add(s)
	}
}
