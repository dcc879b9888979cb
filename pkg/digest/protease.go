// Package digest enumerates candidate peptides from protein sequences: protease
// cleavage, missed cleavages, initiator methionine handling, fixed and variable
// modifications, and theoretical fragment masses.
package digest

import (
	"fmt"
	"sort"
	"strings"
)

// Protein is a database protein entry.
type Protein struct {
	Accession string
	Name      string
	Sequence  string
}

// Len returns the number of residues.
func (p *Protein) Len() int { return len(p.Sequence) }

// Protease cleaves C-terminal to any residue in CleaveAfter unless the next
// residue is in NotBefore.
type Protease struct {
	Name        string
	CleaveAfter string
	NotBefore   string
}

// Proteases known by name.
var Proteases = map[string]Protease{
	"trypsin":   {Name: "trypsin", CleaveAfter: "KR", NotBefore: "P"},
	"trypsin/p": {Name: "trypsin/p", CleaveAfter: "KR"},
	"lys-c":     {Name: "lys-c", CleaveAfter: "K"},
	"arg-c":     {Name: "arg-c", CleaveAfter: "R", NotBefore: "P"},
	"chymotrypsin": {
		Name: "chymotrypsin", CleaveAfter: "FWYL", NotBefore: "P",
	},
	"glu-c": {Name: "glu-c", CleaveAfter: "E", NotBefore: "P"},
}

// ParseProtease looks up a protease by name. "custom:<residues>" builds a
// protease that cleaves after the given residues without restriction.
func ParseProtease(name string) (Protease, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if rest, ok := strings.CutPrefix(name, "custom:"); ok {
		residues := strings.ToUpper(rest)
		if residues == "" {
			return Protease{}, fmt.Errorf("custom protease needs at least one residue")
		}
		return Protease{Name: name, CleaveAfter: residues}, nil
	}
	p, ok := Proteases[name]
	if !ok {
		known := make([]string, 0, len(Proteases))
		for k := range Proteases {
			known = append(known, k)
		}
		sort.Strings(known)
		return Protease{}, fmt.Errorf("unknown protease '%s' (known: %s)", name, strings.Join(known, ", "))
	}
	return p, nil
}

// CleavageSites returns the 0-based positions between residues where the
// protease cuts, always including 0 and len(sequence).
func (p Protease) CleavageSites(sequence string) []int {
	sites := []int{0}
	for i := 1; i < len(sequence); i++ {
		if strings.IndexByte(p.CleaveAfter, sequence[i-1]) < 0 {
			continue
		}
		if strings.IndexByte(p.NotBefore, sequence[i]) >= 0 {
			continue
		}
		sites = append(sites, i)
	}
	if len(sequence) > 0 {
		sites = append(sites, len(sequence))
	}
	return sites
}
