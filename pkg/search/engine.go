// Package search runs the classic peptide-spectrum search: every candidate
// peptide is compared with the scans whose precursor mass it can explain, and
// the best match per scan is kept.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/psmsearch/pkg/digest"
	"github.com/ChrisMcGann/psmsearch/pkg/massdiff"
	"github.com/ChrisMcGann/psmsearch/pkg/score"
)

var (
	// ErrInvalidParams is returned for out-of-range engine parameters.
	ErrInvalidParams = errors.New("invalid search parameters")
	// ErrConfigContradiction is returned when e-value mode is combined with a
	// cutoff that no score can pass.
	ErrConfigContradiction = errors.New("contradictory search configuration")
)

// CandidateProvider yields the candidate peptides of each protein.
// Implementations must be safe for concurrent calls with different indexes.
type CandidateProvider interface {
	NumProteins() int
	Digest(i int) []digest.Candidate
}

// Params configures a search.
type Params struct {
	ScoreCutoff        float64
	ConserveMemory     bool // disable deduplication; identical candidates are rescored
	ReportAllAmbiguity bool
	ComputeEValue      bool

	FragmentTolerance    massdiff.Tolerance
	ProductTypes         []digest.ProductType      // used when non-empty
	DissociationTypes    []digest.DissociationType // otherwise derived from these
	AddComplementaryIons bool
	IntensityBonus       bool

	Threads       int // <= 0 means GOMAXPROCS
	PartitionSize int // proteins per partition; <= 0 picks a size from Threads

	Progress func(percent int, message string)
	Logger   *slog.Logger
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		ScoreCutoff:        5,
		ReportAllAmbiguity: true,
		FragmentTolerance:  massdiff.NewAbsoluteTolerance(0.01),
		DissociationTypes:  []digest.DissociationType{digest.HCD},
		IntensityBonus:     true,
	}
}

// Validate checks the parameters for errors.
func (p Params) Validate() error {
	if p.ComputeEValue && (math.IsNaN(p.ScoreCutoff) || math.IsInf(p.ScoreCutoff, 1)) {
		return fmt.Errorf("%w: e-value mode with score cutoff %g", ErrConfigContradiction, p.ScoreCutoff)
	}
	if math.IsNaN(p.ScoreCutoff) {
		return fmt.Errorf("%w: score cutoff is NaN", ErrInvalidParams)
	}
	if err := p.FragmentTolerance.Validate(); err != nil {
		return fmt.Errorf("%w: fragment tolerance: %v", ErrInvalidParams, err)
	}
	if len(p.productTypes()) == 0 {
		return fmt.Errorf("%w: no product types or dissociation types", ErrInvalidParams)
	}
	return nil
}

func (p Params) productTypes() []digest.ProductType {
	if len(p.ProductTypes) > 0 {
		return p.ProductTypes
	}
	return digest.ProductTypesFor(p.DissociationTypes...)
}

func (p Params) threads() int {
	if p.Threads > 0 {
		return p.Threads
	}
	return runtime.GOMAXPROCS(0)
}

// Engine searches one set of scans against one candidate provider.
type Engine struct {
	index    *ScanIndex
	provider CandidateProvider
	acceptor massdiff.Acceptor
	params   Params
	products []digest.ProductType
	logger   *slog.Logger
}

// New validates the parameters and returns an engine.
func New(index *ScanIndex, provider CandidateProvider, acceptor massdiff.Acceptor, p Params) (*Engine, error) {
	if index == nil || provider == nil {
		return nil, fmt.Errorf("%w: scan index and candidate provider are required", ErrInvalidParams)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		index:    index,
		provider: provider,
		acceptor: acceptor,
		params:   p,
		products: p.productTypes(),
		logger:   logger.With(slog.String("component", "search")),
	}, nil
}

func (e *Engine) partitionSize(total int) int {
	if e.params.PartitionSize > 0 {
		return e.params.PartitionSize
	}
	return max(1, total/(e.params.threads()*4))
}

func (e *Engine) scoreParams() score.Params {
	return score.Params{
		Tolerance:      e.params.FragmentTolerance,
		ProductTypes:   e.products,
		Complementary:  e.params.AddComplementaryIons,
		IntensityBonus: e.params.IntensityBonus,
	}
}

// Run searches every protein and returns one slot per scan in index order;
// a nil slot means no candidate scored at or above the cutoff. If ctx is
// cancelled, partitions not yet started are skipped and ctx.Err() is returned
// after the running ones finish.
func (e *Engine) Run(ctx context.Context) ([]*PSM, error) {
	start := time.Now()
	total := e.provider.NumProteins()
	size := e.partitionSize(total)

	var dedup *Deduplicator
	if !e.params.ConserveMemory {
		dedup = NewDeduplicator()
	}
	agg := newAggregator(e.index.Len(), total, e.params.Progress)

	e.logger.Info("starting search",
		slog.Int("scans", e.index.Len()),
		slog.Int("proteins", total),
		slog.Int("partition_size", size),
		slog.Int("threads", e.params.threads()),
		slog.String("acceptor", e.acceptor.String()),
		slog.Bool("evalue", e.params.ComputeEValue))

	// gctx is also cancelled by the first failing partition.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.threads())
	for lo := 0; lo < total; lo += size {
		if gctx.Err() != nil {
			break
		}
		lo, hi := lo, min(lo+size, total)
		g.Go(func() error {
			local, err := e.searchPartition(lo, hi, dedup)
			if err != nil {
				return err
			}
			agg.merge(local, hi-lo)
			e.logger.Debug("partition done", slog.Int("from", lo), slog.Int("to", hi), slog.Int("scans_hit", len(local)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := agg.results
	if e.params.ComputeEValue {
		if err := e.computeEValues(ctx, results); err != nil {
			return nil, err
		}
	}
	resolveOrigins(results, dedup, e.params.ReportAllAmbiguity)

	matched := 0
	for _, r := range results {
		if r != nil {
			matched++
		}
	}
	attrs := []any{slog.Int("matched_scans", matched), slog.Duration("elapsed", time.Since(start))}
	if dedup != nil {
		attrs = append(attrs, slog.Int("distinct_candidates", dedup.Len()))
	}
	e.logger.Info("search finished", attrs...)
	return results, nil
}
