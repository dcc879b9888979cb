package digest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ChrisMcGann/psmsearch/pkg/core"
)

// ProductType is a fragment ion series.
type ProductType int

const (
	B ProductType = iota
	Y
	C
	ZDot
)

func (t ProductType) String() string {
	switch t {
	case B:
		return "b"
	case Y:
		return "y"
	case C:
		return "c"
	case ZDot:
		return "z."
	}
	return fmt.Sprintf("ProductType(%d)", int(t))
}

// zDotShift converts a y ion to the matching z• ion (loss of NH2).
const zDotShift = -(core.MassN + 2*core.MassH)

// DissociationType is an activation method.
type DissociationType int

const (
	HCD DissociationType = iota
	CID
	ETD
	EThcD
)

var dissociationNames = map[string]DissociationType{
	"hcd":   HCD,
	"cid":   CID,
	"etd":   ETD,
	"ethcd": EThcD,
}

func (d DissociationType) String() string {
	for name, v := range dissociationNames {
		if v == d {
			return strings.ToUpper(name)
		}
	}
	return fmt.Sprintf("DissociationType(%d)", int(d))
}

// ParseDissociationType parses "HCD", "CID", "ETD" or "EThcD" case-insensitively.
func ParseDissociationType(s string) (DissociationType, error) {
	d, ok := dissociationNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown dissociation type '%s'", s)
	}
	return d, nil
}

// ProductTypesFor returns the ion series produced by the dissociation types,
// without duplicates and in ProductType order.
func ProductTypesFor(types ...DissociationType) []ProductType {
	seen := make(map[ProductType]bool)
	for _, d := range types {
		switch d {
		case HCD, CID:
			seen[B], seen[Y] = true, true
		case ETD:
			seen[C], seen[ZDot] = true, true
		case EThcD:
			seen[B], seen[Y], seen[C], seen[ZDot] = true, true, true, true
		}
	}
	out := make([]ProductType, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fragments returns the sorted neutral masses of every fragment of the
// requested series. Unknown residues yield NaN masses, which sort first.
func (p *Peptide) Fragments(products []ProductType) []float64 {
	n := len(p.BaseSequence)
	if n < 2 || len(products) == 0 {
		return nil
	}

	// prefix[k] is the mass of the first k residues plus their modifications,
	// N-terminal modification included.
	prefix := make([]float64, n+1)
	for _, m := range p.Mods {
		if m.Position == 0 {
			prefix[0] += m.Rule.Mass
		}
	}
	mi := 0
	for k := 1; k <= n; k++ {
		rm, _ := core.ResidueMass(p.BaseSequence[k-1])
		prefix[k] = prefix[k-1] + rm
		for mi < len(p.Mods) && p.Mods[mi].Position < k {
			mi++
		}
		for mi < len(p.Mods) && p.Mods[mi].Position == k {
			prefix[k] += p.Mods[mi].Rule.Mass
			mi++
		}
	}
	total := prefix[n]

	out := make([]float64, 0, (n-1)*len(products))
	for _, t := range products {
		for k := 1; k < n; k++ {
			b := prefix[k]
			y := total - prefix[k] + core.WaterMass
			switch t {
			case B:
				out = append(out, b)
			case C:
				out = append(out, b+core.AmmoniaMass)
			case Y:
				out = append(out, y)
			case ZDot:
				out = append(out, y+zDotShift)
			}
		}
	}
	sort.Float64s(out)
	return out
}
