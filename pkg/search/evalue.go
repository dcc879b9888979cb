package search

import (
	"context"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ChrisMcGann/psmsearch/pkg/score"
)

// minLambda keeps the Poisson null model defined when every null score is zero.
const minLambda = 1e-3

// computeEValues runs after all partitions. Slots whose best score is below
// the cutoff are cleared; the rest get an e-value from a Poisson fit of the
// scan's other scores. Scans with no other scores use the mean over all scans.
func (e *Engine) computeEValues(ctx context.Context, results []*PSM) error {
	global := score.NewHistogram()
	for _, psm := range results {
		if psm != nil {
			global.Merge(psm.Histogram)
		}
	}
	globalMean := global.Mean()
	if math.IsNaN(globalMean) {
		globalMean = 0
	}
	e.logger.Debug("fitting null model", slog.Int("scores", global.Count()), slog.Float64("global_mean", globalMean))

	threads := e.params.threads()
	chunk := max(1, (len(results)+threads-1)/threads)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for lo := 0; lo < len(results); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(results))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				psm := results[i]
				if psm == nil {
					continue
				}
				if psm.Score < e.params.ScoreCutoff {
					results[i] = nil
					continue
				}
				psm.EValue, psm.EScore = eValue(psm, globalMean)
			}
			return gctx.Err()
		})
	}
	return g.Wait()
}

// eValue returns the expected number of null scores at least as high as the
// best score, and -10*log10 of it.
func eValue(psm *PSM, globalMean float64) (float64, float64) {
	var null *score.Histogram
	if psm.Histogram != nil {
		null = psm.Histogram.Without(psm.Score)
	}
	n := null.Count()
	lambda := globalMean
	if n > 0 {
		lambda = null.Mean()
	} else {
		n = 1
	}
	lambda = math.Max(lambda, minLambda)

	k := math.Floor(psm.Score)
	tail := 1.0
	if k > 0 {
		tail = 1 - distuv.Poisson{Lambda: lambda}.CDF(k-1)
	}
	ev := float64(n) * tail
	ev = math.Max(ev, math.SmallestNonzeroFloat64)
	return ev, -10 * math.Log10(ev)
}
