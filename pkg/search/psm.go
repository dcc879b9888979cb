package search

import (
	"sort"

	"github.com/ChrisMcGann/psmsearch/pkg/digest"
	"github.com/ChrisMcGann/psmsearch/pkg/score"
)

// ScoreTolerance is the largest score difference still treated as a tie.
const ScoreTolerance = 1e-9

// Match is one candidate in the ambiguity set of a PSM.
type Match struct {
	Fingerprint digest.Fingerprint
	Peptide     *digest.Peptide
	Mass        float64
	Notch       int
	Origins     []digest.Origin // sorted; filled completely after the search
}

// SingleOrigin returns the protein location when it is unambiguous.
func (m *Match) SingleOrigin() (digest.Origin, bool) {
	if len(m.Origins) != 1 {
		return digest.Origin{}, false
	}
	return m.Origins[0], true
}

func newMatch(c digest.Candidate, notch int) *Match {
	return &Match{
		Fingerprint: c.Fingerprint,
		Peptide:     c.Peptide,
		Mass:        c.Mass,
		Notch:       notch,
		Origins:     []digest.Origin{c.Origin},
	}
}

// absorb folds another sighting of the same fingerprint into m.
func (m *Match) absorb(notch int, origins []digest.Origin) {
	if notch < m.Notch {
		m.Notch = notch
	}
	m.Origins = mergeOrigins(m.Origins, origins)
}

func (m *Match) clone() *Match {
	c := *m
	c.Origins = append([]digest.Origin(nil), m.Origins...)
	return &c
}

// PSM is the best peptide-spectrum match of one scan.
type PSM struct {
	ScanIndex     int
	Score         float64
	RunnerUpScore float64
	Matches       map[digest.Fingerprint]*Match

	// Histogram holds every score considered for the scan in e-value mode.
	Histogram *score.Histogram
	EValue    float64
	EScore    float64
}

// NewPSM starts a PSM from its first candidate.
func NewPSM(scanIndex int, c digest.Candidate, s float64, notch int) *PSM {
	return &PSM{
		ScanIndex: scanIndex,
		Score:     s,
		Matches:   map[digest.Fingerprint]*Match{c.Fingerprint: newMatch(c, notch)},
	}
}

// AddOrReplace folds a scored candidate into the PSM. A strictly better score
// replaces the ambiguity set. A tied score joins the set when reportAll is
// set; otherwise the first-arriving peptide is kept, i.e. the one with the
// earliest protein location, so the outcome does not depend on partitioning.
func (p *PSM) AddOrReplace(c digest.Candidate, s float64, notch int, reportAll bool) {
	switch {
	case s-p.Score > ScoreTolerance:
		if p.Score-p.RunnerUpScore > ScoreTolerance {
			p.RunnerUpScore = p.Score
		}
		p.Score = s
		p.Matches = map[digest.Fingerprint]*Match{c.Fingerprint: newMatch(c, notch)}

	case s-p.Score > -ScoreTolerance:
		if m, ok := p.Matches[c.Fingerprint]; ok {
			m.absorb(notch, []digest.Origin{c.Origin})
			return
		}
		if reportAll {
			p.Matches[c.Fingerprint] = newMatch(c, notch)
			return
		}
		// A tied loser is still the runner-up.
		p.RunnerUpScore = s
		if m := newMatch(c, notch); arrivesBefore(m, p.onlyMatch()) {
			p.Matches = map[digest.Fingerprint]*Match{c.Fingerprint: m}
		}

	case s-p.RunnerUpScore > ScoreTolerance:
		p.RunnerUpScore = s
	}
}

// Merge folds other into p using the same rules as AddOrReplace. other is not
// modified. Histograms are summed.
func (p *PSM) Merge(other *PSM, reportAll bool) {
	if other == nil {
		return
	}
	if other.Histogram != nil {
		if p.Histogram == nil {
			p.Histogram = score.NewHistogram()
		}
		p.Histogram.Merge(other.Histogram)
	}

	switch {
	case other.Score-p.Score > ScoreTolerance:
		p.RunnerUpScore = maxScore(other.RunnerUpScore, p.Score)
		p.Score = other.Score
		p.Matches = cloneMatches(other.Matches)

	case p.Score-other.Score > ScoreTolerance:
		p.RunnerUpScore = maxScore(p.RunnerUpScore, other.Score)

	default:
		p.RunnerUpScore = maxScore(p.RunnerUpScore, other.RunnerUpScore)
		for fp, m := range other.Matches {
			if mine, ok := p.Matches[fp]; ok {
				mine.absorb(m.Notch, m.Origins)
				continue
			}
			if reportAll {
				p.Matches[fp] = m.clone()
				continue
			}
			p.RunnerUpScore = maxScore(p.RunnerUpScore, other.Score)
			if arrivesBefore(m, p.onlyMatch()) {
				p.Matches = map[digest.Fingerprint]*Match{fp: m.clone()}
			}
		}
	}
}

// BestMatches returns the ambiguity set ordered by fingerprint.
func (p *PSM) BestMatches() []*Match {
	out := make([]*Match, 0, len(p.Matches))
	for _, m := range p.Matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

// Notch returns the notch of the best match when all tied matches agree.
func (p *PSM) Notch() (int, bool) {
	notch := -1
	for _, m := range p.Matches {
		if notch >= 0 && m.Notch != notch {
			return 0, false
		}
		notch = m.Notch
	}
	return notch, notch >= 0
}

// KeepFirstArrival reduces a tied ambiguity set to its first-arriving match
// and the match to its first location. Call it once every origin is known.
func (p *PSM) KeepFirstArrival() {
	var first *Match
	for _, m := range p.Matches {
		if first == nil || arrivesBefore(m, first) {
			first = m
		}
	}
	if first == nil {
		return
	}
	if len(p.Matches) > 1 {
		p.RunnerUpScore = p.Score
		p.Matches = map[digest.Fingerprint]*Match{first.Fingerprint: first}
	}
	if len(first.Origins) > 1 {
		first.Origins = first.Origins[:1]
	}
}

func (p *PSM) onlyMatch() *Match {
	for _, m := range p.Matches {
		return m
	}
	return nil
}

// arrivesBefore orders matches by their earliest protein location, as a
// sequential walk over the database would meet them. Fingerprints break the
// remaining ties.
func arrivesBefore(a, b *Match) bool {
	if b == nil {
		return true
	}
	switch {
	case len(a.Origins) == 0 || len(b.Origins) == 0:
	case a.Origins[0].Less(b.Origins[0]):
		return true
	case b.Origins[0].Less(a.Origins[0]):
		return false
	}
	return a.Fingerprint < b.Fingerprint
}

func cloneMatches(in map[digest.Fingerprint]*Match) map[digest.Fingerprint]*Match {
	out := make(map[digest.Fingerprint]*Match, len(in))
	for fp, m := range in {
		out[fp] = m.clone()
	}
	return out
}

func maxScore(a, b float64) float64 {
	if b-a > ScoreTolerance {
		return b
	}
	return a
}
