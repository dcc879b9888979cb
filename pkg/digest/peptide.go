package digest

import (
	"strings"

	"github.com/ChrisMcGann/psmsearch/pkg/core"
)

// Fingerprint identifies a candidate independently of the protein it came from:
// the full modified sequence.
type Fingerprint string

// Origin is one location of a peptide in the protein database.
type Origin struct {
	ProteinIndex  int
	Accession     string
	Start         int // 1-based, inclusive
	End           int // 1-based, inclusive
	ProteinLength int
}

// Less orders origins by protein index, then start position.
func (o Origin) Less(other Origin) bool {
	if o.ProteinIndex != other.ProteinIndex {
		return o.ProteinIndex < other.ProteinIndex
	}
	if o.Start != other.Start {
		return o.Start < other.Start
	}
	return o.End < other.End
}

// PlacedMod is a modification placed on a peptide. Position 0 is the
// N-terminus; positions 1..len are residues.
type PlacedMod struct {
	Position int
	Rule     core.ModRule
}

// Peptide is a digestion product with its modifications.
type Peptide struct {
	BaseSequence string
	Start        int // 1-based, inclusive
	End          int // 1-based, inclusive
	ProteinIndex int
	Protein      *Protein
	Mods         []PlacedMod // ascending by position

	mass float64
}

func newPeptide(protein *Protein, proteinIndex, start, end int, mods []PlacedMod) *Peptide {
	p := &Peptide{
		BaseSequence: protein.Sequence[start-1 : end],
		Start:        start,
		End:          end,
		ProteinIndex: proteinIndex,
		Protein:      protein,
		Mods:         mods,
	}
	p.mass = core.CalculateNeutralMass(p.BaseSequence, p.Modifications())
	return p
}

// Modifications returns the placed mods as core modifications with 0-based
// residue positions (-1 for the N-terminus).
func (p *Peptide) Modifications() []core.Modification {
	if len(p.Mods) == 0 {
		return nil
	}
	out := make([]core.Modification, len(p.Mods))
	for i, m := range p.Mods {
		out[i] = core.Modification{Mass: m.Rule.Mass, Position: m.Position - 1, Name: m.Rule.Name}
	}
	return out
}

// MonoisotopicMass returns the neutral monoisotopic mass including modifications.
func (p *Peptide) MonoisotopicMass() float64 { return p.mass }

// Len returns the number of residues.
func (p *Peptide) Len() int { return len(p.BaseSequence) }

// FullSequence renders the sequence with modifications in brackets after the
// residue they sit on, e.g. "PEPM[Oxidation]K" or "[Acetyl]PEPTIDE".
func (p *Peptide) FullSequence() string {
	if len(p.Mods) == 0 {
		return p.BaseSequence
	}
	var sb strings.Builder
	sb.Grow(len(p.BaseSequence) + 16*len(p.Mods))

	mi := 0
	for mi < len(p.Mods) && p.Mods[mi].Position == 0 {
		writeMod(&sb, p.Mods[mi].Rule)
		mi++
	}
	for i := 0; i < len(p.BaseSequence); i++ {
		sb.WriteByte(p.BaseSequence[i])
		for mi < len(p.Mods) && p.Mods[mi].Position == i+1 {
			writeMod(&sb, p.Mods[mi].Rule)
			mi++
		}
	}
	return sb.String()
}

func writeMod(sb *strings.Builder, r core.ModRule) {
	sb.WriteByte('[')
	sb.WriteString(r.Name)
	sb.WriteByte(']')
}

// Fingerprint returns the protein-independent identity of the peptide.
func (p *Peptide) Fingerprint() Fingerprint { return Fingerprint(p.FullSequence()) }

// Origin returns the protein location of this peptide.
func (p *Peptide) Origin() Origin {
	o := Origin{ProteinIndex: p.ProteinIndex, Start: p.Start, End: p.End}
	if p.Protein != nil {
		o.Accession = p.Protein.Accession
		o.ProteinLength = p.Protein.Len()
	}
	return o
}
