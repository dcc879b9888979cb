package search

import (
	"sort"
	"sync"

	"github.com/ChrisMcGann/psmsearch/pkg/digest"
)

// Deduplicator ensures each distinct candidate fingerprint is scored once per
// search. It remembers every location a fingerprint was offered from so that
// locations skipped by later claimants can be reported afterwards.
type Deduplicator struct {
	seen sync.Map // digest.Fingerprint -> *originSet
}

type originSet struct {
	mu      sync.Mutex
	origins []digest.Origin
}

func (s *originSet) add(o digest.Origin) {
	s.mu.Lock()
	if !containsOrigin(s.origins, o) {
		s.origins = append(s.origins, o)
	}
	s.mu.Unlock()
}

// NewDeduplicator returns an empty deduplicator.
func NewDeduplicator() *Deduplicator { return &Deduplicator{} }

// TryClaim returns true for exactly one caller per fingerprint. The origin is
// recorded either way.
func (d *Deduplicator) TryClaim(fp digest.Fingerprint, origin digest.Origin) bool {
	v, loaded := d.seen.Load(fp)
	if !loaded {
		v, loaded = d.seen.LoadOrStore(fp, &originSet{})
	}
	v.(*originSet).add(origin)
	return !loaded
}

// Origins returns every recorded location of fp, sorted by protein index and
// start position.
func (d *Deduplicator) Origins(fp digest.Fingerprint) []digest.Origin {
	v, ok := d.seen.Load(fp)
	if !ok {
		return nil
	}
	set := v.(*originSet)
	set.mu.Lock()
	out := append([]digest.Origin(nil), set.origins...)
	set.mu.Unlock()

	sortOrigins(out)
	return out
}

// Len returns the number of distinct fingerprints claimed.
func (d *Deduplicator) Len() int {
	n := 0
	d.seen.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func containsOrigin(origins []digest.Origin, o digest.Origin) bool {
	for _, x := range origins {
		if x == o {
			return true
		}
	}
	return false
}

func sortOrigins(origins []digest.Origin) {
	sort.Slice(origins, func(i, j int) bool { return origins[i].Less(origins[j]) })
}

// mergeOrigins returns the sorted union of a and b without duplicates.
func mergeOrigins(a, b []digest.Origin) []digest.Origin {
	out := make([]digest.Origin, 0, len(a)+len(b))
	out = append(out, a...)
	for _, o := range b {
		if !containsOrigin(out, o) {
			out = append(out, o)
		}
	}
	sortOrigins(out)
	return out
}
