package digest

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ChrisMcGann/psmsearch/pkg/core"
)

func sequences(peptides []*Peptide) []string {
	out := make([]string, len(peptides))
	for i, p := range peptides {
		out[i] = p.FullSequence()
	}
	return out
}

func plainParams(missed, minLen int) Params {
	return Params{
		Protease:           Proteases["trypsin"],
		MaxMissedCleavages: missed,
		MinLength:          minLen,
	}
}

func TestDigestCleavage(t *testing.T) {
	tests := []struct {
		name     string
		sequence string
		params   Params
		want     []string
	}{
		{
			name:     "no missed cleavages",
			sequence: "PEPTIDEKAAAAR",
			params:   plainParams(0, 1),
			want:     []string{"PEPTIDEK", "AAAAR"},
		},
		{
			name:     "one missed cleavage",
			sequence: "PEPTIDEKAAAAR",
			params:   plainParams(1, 1),
			want:     []string{"PEPTIDEK", "PEPTIDEKAAAAR", "AAAAR"},
		},
		{
			name:     "no cleavage before proline",
			sequence: "AAKPAAR",
			params:   plainParams(0, 1),
			want:     []string{"AAKPAAR"},
		},
		{
			name:     "min length filter",
			sequence: "PEPTIDEKAAAAR",
			params:   plainParams(0, 6),
			want:     []string{"PEPTIDEK"},
		},
		{
			name:     "max length filter",
			sequence: "PEPTIDEKAAAAR",
			params:   Params{Protease: Proteases["trypsin"], MaxMissedCleavages: 1, MinLength: 1, MaxLength: 8},
			want:     []string{"PEPTIDEK", "AAAAR"},
		},
		{
			name:     "unknown residue skipped",
			sequence: "PEPXKAAAAR",
			params:   plainParams(0, 1),
			want:     []string{"AAAAR"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sequences(Digest(&Protein{Accession: "P1", Sequence: tt.sequence}, 0, tt.params))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("peptides mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDigestInitiatorMethionine(t *testing.T) {
	tests := []struct {
		name   string
		option InitiatorMethionine
		want   []string
	}{
		{"retain", RetainMethionine, []string{"MAAAK", "GGGR"}},
		{"cleave", CleaveMethionine, []string{"AAAK", "GGGR"}},
		{"variable", VariableMethionine, []string{"MAAAK", "AAAK", "GGGR"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := plainParams(0, 1)
			params.InitiatorMethionine = tt.option
			got := sequences(Digest(&Protein{Sequence: "MAAAKGGGR"}, 0, params))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("peptides mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDigestModifications(t *testing.T) {
	carbamidomethyl := core.ModRule{Name: "Carbamidomethyl", Mass: 57.021464, Residues: "C"}
	oxidation := core.ModRule{Name: "Oxidation", Mass: 15.994915, Residues: "M"}
	acetyl := core.ModRule{Name: "Acetyl", Mass: 42.010565}

	tests := []struct {
		name     string
		sequence string
		fixed    []core.ModRule
		variable []core.ModRule
		maxMods  int
		want     []string
	}{
		{
			name:     "fixed and variable",
			sequence: "ACMK",
			fixed:    []core.ModRule{carbamidomethyl},
			variable: []core.ModRule{oxidation},
			maxMods:  1,
			want:     []string{"AC[Carbamidomethyl]MK", "AC[Carbamidomethyl]M[Oxidation]K"},
		},
		{
			name:     "variable limit two",
			sequence: "MMK",
			variable: []core.ModRule{oxidation},
			maxMods:  2,
			want:     []string{"MMK", "M[Oxidation]MK", "M[Oxidation]M[Oxidation]K", "MM[Oxidation]K"},
		},
		{
			name:     "variable limit one",
			sequence: "MMK",
			variable: []core.ModRule{oxidation},
			maxMods:  1,
			want:     []string{"MMK", "M[Oxidation]MK", "MM[Oxidation]K"},
		},
		{
			name:     "n-terminal",
			sequence: "AGK",
			variable: []core.ModRule{acetyl},
			maxMods:  1,
			want:     []string{"AGK", "[Acetyl]AGK"},
		},
		{
			name:     "variable disabled",
			sequence: "MMK",
			variable: []core.ModRule{oxidation},
			maxMods:  0,
			want:     []string{"MMK"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := plainParams(0, 1)
			params.FixedMods = tt.fixed
			params.VariableMods = tt.variable
			params.MaxModsPerPeptide = tt.maxMods
			got := sequences(Digest(&Protein{Sequence: tt.sequence}, 0, params))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("peptides mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPeptideMassAndOrigin(t *testing.T) {
	protein := &Protein{Accession: "P42", Sequence: "GGGKACMK"}
	params := plainParams(0, 1)
	params.VariableMods = []core.ModRule{{Name: "Oxidation", Mass: 15.994915, Residues: "M"}}
	params.MaxModsPerPeptide = 1

	peptides := Digest(protein, 3, params)
	if len(peptides) != 3 {
		t.Fatalf("expected 3 peptides, got %v", sequences(peptides))
	}
	plain, oxidized := peptides[1], peptides[2]

	if d := oxidized.MonoisotopicMass() - plain.MonoisotopicMass(); math.Abs(d-15.994915) > 1e-9 {
		t.Errorf("oxidation mass difference = %f", d)
	}
	if math.Abs(plain.MonoisotopicMass()-core.CalculateNeutralMass("ACMK", nil)) > 1e-9 {
		t.Error("unmodified mass must match core.CalculateNeutralMass")
	}

	want := Origin{ProteinIndex: 3, Accession: "P42", Start: 5, End: 8, ProteinLength: 8}
	if diff := cmp.Diff(want, oxidized.Origin()); diff != "" {
		t.Errorf("origin mismatch (-want +got):\n%s", diff)
	}
	if plain.Fingerprint() == oxidized.Fingerprint() {
		t.Error("modified forms must have distinct fingerprints")
	}

	wantMods := []core.Modification{{Mass: 15.994915, Position: 2, Name: "Oxidation"}}
	if diff := cmp.Diff(wantMods, oxidized.Modifications()); diff != "" {
		t.Errorf("modifications mismatch (-want +got):\n%s", diff)
	}
	if plain.Modifications() != nil {
		t.Error("unmodified peptide should have no modifications")
	}
}

func TestFragments(t *testing.T) {
	a, _ := core.ResidueMass('A')
	g, _ := core.ResidueMass('G')
	pep := &Peptide{BaseSequence: "AG"}

	tests := []struct {
		name     string
		products []ProductType
		want     []float64
	}{
		{"b", []ProductType{B}, []float64{a}},
		{"y", []ProductType{Y}, []float64{g + core.WaterMass}},
		{"c", []ProductType{C}, []float64{a + core.AmmoniaMass}},
		{"z dot", []ProductType{ZDot}, []float64{g + core.WaterMass - core.MassN - 2*core.MassH}},
		{"b and y sorted", []ProductType{Y, B}, []float64{a, g + core.WaterMass}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pep.Fragments(tt.products)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("fragment %d = %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFragmentsComplementarity(t *testing.T) {
	protein := &Protein{Sequence: "PEPM"}
	params := plainParams(0, 1)
	params.VariableMods = []core.ModRule{{Name: "Oxidation", Mass: 15.994915, Residues: "M"}}
	params.MaxModsPerPeptide = 1

	for _, pep := range Digest(protein, 0, params) {
		bs := pep.Fragments([]ProductType{B})
		ys := pep.Fragments([]ProductType{Y})
		if len(bs) != 3 || len(ys) != 3 {
			t.Fatalf("%s: expected 3 b and 3 y ions", pep.FullSequence())
		}
		// b_k + y_(n-k) equals the precursor mass.
		for k := range bs {
			sum := bs[k] + ys[len(ys)-1-k]
			if math.Abs(sum-pep.MonoisotopicMass()) > 1e-6 {
				t.Errorf("%s: b%d + y%d = %f, want %f", pep.FullSequence(), k+1, 3-k, sum, pep.MonoisotopicMass())
			}
		}
	}
}

func TestProductTypesFor(t *testing.T) {
	tests := []struct {
		name  string
		types []DissociationType
		want  []ProductType
	}{
		{"HCD", []DissociationType{HCD}, []ProductType{B, Y}},
		{"CID", []DissociationType{CID}, []ProductType{B, Y}},
		{"ETD", []DissociationType{ETD}, []ProductType{C, ZDot}},
		{"EThcD", []DissociationType{EThcD}, []ProductType{B, Y, C, ZDot}},
		{"HCD and ETD", []DissociationType{ETD, HCD}, []ProductType{B, Y, C, ZDot}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ProductTypesFor(tt.types...)); diff != "" {
				t.Errorf("product types mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if d, err := ParseDissociationType("EThcD"); err != nil || d != EThcD {
		t.Errorf("ParseDissociationType(EThcD) = %v, %v", d, err)
	}
	if _, err := ParseDissociationType("UVPD"); err == nil {
		t.Error("expected error for unknown dissociation type")
	}
}

func TestParseProtease(t *testing.T) {
	p, err := ParseProtease("Trypsin")
	if err != nil || p.CleaveAfter != "KR" || p.NotBefore != "P" {
		t.Errorf("ParseProtease(Trypsin) = %+v, %v", p, err)
	}
	custom, err := ParseProtease("custom:k")
	if err != nil || custom.CleaveAfter != "K" {
		t.Errorf("ParseProtease(custom:k) = %+v, %v", custom, err)
	}
	if diff := cmp.Diff([]int{0, 3, 6}, custom.CleavageSites("AAKPGK")); diff != "" {
		t.Errorf("cleavage sites mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseProtease("pepsin"); err == nil {
		t.Error("expected error for unknown protease")
	}
}

func TestProvider(t *testing.T) {
	proteins := []*Protein{
		{Accession: "A", Sequence: "GGGKQQQ"},
		{Accession: "B", Sequence: "QQQ"},
	}
	provider, err := NewProvider(proteins, plainParams(0, 3))
	if err != nil {
		t.Fatal(err)
	}
	if provider.NumProteins() != 2 {
		t.Fatalf("expected 2 proteins, got %d", provider.NumProteins())
	}

	a := provider.Digest(0)
	b := provider.Digest(1)
	if len(a) != 2 || len(b) != 1 {
		t.Fatalf("unexpected candidate counts %d and %d", len(a), len(b))
	}
	if a[1].Fingerprint != b[0].Fingerprint {
		t.Errorf("QQQ from both proteins must share a fingerprint: %s vs %s", a[1].Fingerprint, b[0].Fingerprint)
	}
	if a[1].Origin.Accession != "A" || b[0].Origin.Accession != "B" || a[1].Origin.Start != 5 {
		t.Errorf("unexpected origins %+v and %+v", a[1].Origin, b[0].Origin)
	}
	if len(a[1].FragmentMasses([]ProductType{B, Y})) != 4 {
		t.Error("QQQ has two b and two y ions")
	}

	if _, err := NewProvider(proteins, Params{}); err == nil {
		t.Error("expected error for invalid params")
	}
}
