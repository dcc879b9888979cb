package digest

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/psmsearch/pkg/core"
)

// InitiatorMethionine controls the N-terminal methionine of a protein.
type InitiatorMethionine int

const (
	RetainMethionine InitiatorMethionine = iota
	CleaveMethionine
	VariableMethionine
)

// ParseInitiatorMethionine parses "retain", "cleave" or "variable".
func ParseInitiatorMethionine(s string) (InitiatorMethionine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "retain":
		return RetainMethionine, nil
	case "cleave":
		return CleaveMethionine, nil
	case "variable":
		return VariableMethionine, nil
	}
	return 0, fmt.Errorf("unknown initiator methionine option '%s'", s)
}

// Params controls digestion.
type Params struct {
	Protease            Protease
	MaxMissedCleavages  int
	MinLength           int
	MaxLength           int // 0 means no limit
	InitiatorMethionine InitiatorMethionine
	FixedMods           []core.ModRule
	VariableMods        []core.ModRule
	MaxModsPerPeptide   int // variable modifications only
}

// DefaultParams returns tryptic digestion with two missed cleavages, length
// 5 to 50, variable initiator methionine, carbamidomethyl C and oxidized M.
func DefaultParams() Params {
	return Params{
		Protease:            Proteases["trypsin"],
		MaxMissedCleavages:  2,
		MinLength:           5,
		MaxLength:           50,
		InitiatorMethionine: VariableMethionine,
		FixedMods:           []core.ModRule{{Name: "Carbamidomethyl", Mass: 57.021464, Residues: "C"}},
		VariableMods:        []core.ModRule{{Name: "Oxidation", Mass: 15.994915, Residues: "M"}},
		MaxModsPerPeptide:   2,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.MaxMissedCleavages < 0 {
		return fmt.Errorf("max missed cleavages must be >= 0, got %d", p.MaxMissedCleavages)
	}
	if p.MinLength < 1 {
		return fmt.Errorf("min peptide length must be >= 1, got %d", p.MinLength)
	}
	if p.MaxLength != 0 && p.MaxLength < p.MinLength {
		return fmt.Errorf("max peptide length %d is below min length %d", p.MaxLength, p.MinLength)
	}
	if p.MaxModsPerPeptide < 0 {
		return fmt.Errorf("max mods per peptide must be >= 0, got %d", p.MaxModsPerPeptide)
	}
	if p.Protease.CleaveAfter == "" {
		return fmt.Errorf("protease has no cleavage residues")
	}
	return nil
}

type span struct{ start, end int } // 0-based, half open

// Digest returns every modified peptide of the protein, in order of start
// position, then end position, then modification placement (unmodified first).
// Peptides containing residues without a known mass are skipped.
func Digest(protein *Protein, proteinIndex int, params Params) []*Peptide {
	seq := protein.Sequence
	if seq == "" {
		return nil
	}

	sites := params.Protease.CleavageSites(seq)
	var spans []span
	seen := make(map[span]bool)
	add := func(s span) {
		if seen[s] {
			return
		}
		seen[s] = true
		spans = append(spans, s)
	}

	for i := 0; i < len(sites)-1; i++ {
		for j := i + 1; j < len(sites) && j-i-1 <= params.MaxMissedCleavages; j++ {
			s := span{sites[i], sites[j]}
			if s.start == 0 && seq[0] == 'M' {
				switch params.InitiatorMethionine {
				case CleaveMethionine:
					s.start = 1
				case VariableMethionine:
					add(s)
					s.start = 1
				}
			}
			if s.start < s.end {
				add(s)
			}
		}
	}

	var out []*Peptide
	for _, s := range spans {
		length := s.end - s.start
		if length < params.MinLength || (params.MaxLength > 0 && length > params.MaxLength) {
			continue
		}
		base := seq[s.start:s.end]
		if !core.ValidSequence(base) {
			continue
		}
		for _, mods := range modForms(base, params) {
			out = append(out, newPeptide(protein, proteinIndex, s.start+1, s.end, mods))
		}
	}
	return out
}

// varMod is a candidate placement of a variable modification.
type varMod struct {
	pos  int
	rule core.ModRule
}

// modForms enumerates modification placements for a base sequence. Fixed mods
// occupy their positions first; variable mods fill free positions up to the
// per-peptide limit. The fixed-only form is always first.
func modForms(base string, params Params) [][]PlacedMod {
	n := len(base)
	occupied := make([]bool, n+1)
	var fixed []PlacedMod
	for pos := 0; pos <= n; pos++ {
		for _, r := range params.FixedMods {
			if ruleTargets(r, base, pos) {
				fixed = append(fixed, PlacedMod{Position: pos, Rule: r})
				occupied[pos] = true
				break
			}
		}
	}

	var options []varMod
	for pos := 0; pos <= n; pos++ {
		if occupied[pos] {
			continue
		}
		for _, r := range params.VariableMods {
			if ruleTargets(r, base, pos) {
				options = append(options, varMod{pos, r})
			}
		}
	}

	forms := [][]PlacedMod{fixed}
	if params.MaxModsPerPeptide == 0 || len(options) == 0 {
		return forms
	}

	// Depth-first over options; at most one variable mod per position.
	var chosen []varMod
	var walk func(from int)
	walk = func(from int) {
		for i := from; i < len(options); i++ {
			chosen = append(chosen, options[i])
			forms = append(forms, mergeMods(fixed, chosen))
			if len(chosen) < params.MaxModsPerPeptide {
				next := i + 1
				for next < len(options) && options[next].pos == options[i].pos {
					next++
				}
				walk(next)
			}
			chosen = chosen[:len(chosen)-1]
		}
	}
	walk(0)
	return forms
}

func ruleTargets(r core.ModRule, base string, pos int) bool {
	if pos == 0 {
		return r.Residues == ""
	}
	return r.Residues != "" && r.Targets(base[pos-1])
}

// mergeMods interleaves fixed and chosen variable mods by position.
func mergeMods(fixed []PlacedMod, chosen []varMod) []PlacedMod {
	out := make([]PlacedMod, 0, len(fixed)+len(chosen))
	fi, ci := 0, 0
	for fi < len(fixed) || ci < len(chosen) {
		if ci == len(chosen) || (fi < len(fixed) && fixed[fi].Position < chosen[ci].pos) {
			out = append(out, fixed[fi])
			fi++
			continue
		}
		c := chosen[ci]
		out = append(out, PlacedMod{Position: c.pos, Rule: c.rule})
		ci++
	}
	return out
}
