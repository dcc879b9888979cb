package sqlite

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ChrisMcGann/psmsearch/pkg/core"
	"github.com/ChrisMcGann/psmsearch/pkg/digest"
	"github.com/ChrisMcGann/psmsearch/pkg/massdiff"
	"github.com/ChrisMcGann/psmsearch/pkg/search"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "psm.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScanRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := []*core.Scan{
		core.NewScan(1, 500.25, 2, 1.5, []core.Peak{{MZ: 100.1, Intensity: 10}, {MZ: 200.2, Intensity: 20}}),
		core.NewScan(2, 650.75, 3, 2.5, nil),
	}
	in[0].SourceFile = "run1.raw"
	in[1].SourceFile = "run1.raw"

	if err := s.WriteScans(in); err != nil {
		t.Fatalf("WriteScans: %v", err)
	}
	out, err := s.LoadScans()
	if err != nil {
		t.Fatalf("LoadScans: %v", err)
	}

	if diff := cmp.Diff(in, out, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("scans mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeCorruptPeaks(t *testing.T) {
	if _, err := decodePeaks(make([]byte, 16), make([]byte, 8)); err == nil {
		t.Error("expected error for mismatched blobs")
	}
	if _, err := decodePeaks(make([]byte, 7), make([]byte, 7)); err == nil {
		t.Error("expected error for truncated blobs")
	}
}

// peptideScans returns one scan per sequence carrying its b and y ions.
func peptideScans(t *testing.T, seqs ...string) []*core.Scan {
	t.Helper()
	var scans []*core.Scan
	for i, seq := range seqs {
		peps := digest.Digest(&digest.Protein{Sequence: seq}, 0, digest.Params{MinLength: 1})
		if len(peps) != 1 {
			t.Fatalf("%s: expected one peptide, got %d", seq, len(peps))
		}
		pep := peps[0]
		var peaks []core.Peak
		for _, f := range pep.Fragments([]digest.ProductType{digest.B, digest.Y}) {
			peaks = append(peaks, core.Peak{MZ: f + core.ProtonMass, Intensity: 100})
		}
		scan := core.NewScan(i+1, core.ToMZ(pep.MonoisotopicMass(), 2), 2, float64(i), peaks)
		scan.SourceFile = "test.raw"
		scans = append(scans, scan)
	}
	return scans
}

func TestWriteRunAndSummarize(t *testing.T) {
	s := openTestStore(t)

	if err := s.WriteScans(peptideScans(t, "PEPTIDEK", "AAAGGGR")); err != nil {
		t.Fatal(err)
	}
	scans, err := s.LoadScans()
	if err != nil {
		t.Fatal(err)
	}
	core.SortScans(scans)
	index, err := search.NewScanIndex(scans)
	if err != nil {
		t.Fatal(err)
	}

	proteins := []*digest.Protein{
		{Accession: "P1", Sequence: "PEPTIDEKAAAGGGR"},
		{Accession: "P2", Sequence: "MPEPTIDEK"},
	}
	dp := digest.DefaultParams()
	dp.MaxMissedCleavages = 0
	dp.VariableMods = nil
	provider, err := digest.NewProvider(proteins, dp)
	if err != nil {
		t.Fatal(err)
	}
	acceptor, err := massdiff.NewFixedWindow(0.01)
	if err != nil {
		t.Fatal(err)
	}
	sp := search.DefaultParams()
	sp.Threads = 2
	engine, err := search.New(index, provider, acceptor, sp)
	if err != nil {
		t.Fatal(err)
	}
	results, err := engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	params := map[string]any{"cutoff": sp.ScoreCutoff, "acceptor": acceptor.String()}
	runID, err := s.WriteRun(params, index, len(proteins), results, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("WriteRun: %v", err)
	}

	sum, err := s.Summarize("")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Run.ID != runID {
		t.Errorf("summarized run %s, want %s", sum.Run.ID, runID)
	}
	if sum.MatchedScans != 2 || sum.Rows != 2 {
		t.Errorf("matched=%d rows=%d, want 2 and 2", sum.MatchedScans, sum.Rows)
	}
	if sum.Ambiguous != 1 {
		t.Errorf("ambiguous = %d, want 1 (PEPTIDEK maps to two proteins)", sum.Ambiguous)
	}
	if sum.MeanScore <= sp.ScoreCutoff {
		t.Errorf("mean score %f not above cutoff", sum.MeanScore)
	}
	if !math.IsNaN(sum.MeanEScore) {
		t.Errorf("expected no e-scores, got %f", sum.MeanEScore)
	}
	if sum.Run.Elapsed != 1500*time.Millisecond || sum.Run.NumScans != 2 || sum.Run.NumProteins != 2 {
		t.Errorf("unexpected run record: %+v", sum.Run)
	}
	var decoded map[string]any
	if err := json.Unmarshal(sum.Run.Params, &decoded); err != nil {
		t.Fatalf("params not JSON: %v", err)
	}
	if decoded["acceptor"] != acceptor.String() {
		t.Errorf("params acceptor = %v", decoded["acceptor"])
	}

	var start, end, length int
	var peptideMass, theoreticalMZ float64
	err = s.db.QueryRow(`SELECT StartResidue, EndResidue, ProteinLength, PeptideMass, TheoreticalMZ
		FROM PSMTable WHERE BaseSequence = 'AAAGGGR'`).
		Scan(&start, &end, &length, &peptideMass, &theoreticalMZ)
	if err != nil {
		t.Fatal(err)
	}
	if start != 9 || end != 15 || length != 15 {
		t.Errorf("AAAGGGR location = %d-%d of %d, want 9-15 of 15", start, end, length)
	}
	if want := core.ToMZ(peptideMass, 2); math.Abs(theoreticalMZ-want) > 1e-9 {
		t.Errorf("theoretical m/z = %f, want %f", theoreticalMZ, want)
	}

	var accs string
	var nullStart *int
	err = s.db.QueryRow(`SELECT Accessions, StartResidue FROM PSMTable WHERE BaseSequence = 'PEPTIDEK'`).
		Scan(&accs, &nullStart)
	if err != nil {
		t.Fatal(err)
	}
	if accs != "P1;P2" || nullStart != nil {
		t.Errorf("PEPTIDEK accessions=%q start=%v, want P1;P2 and NULL", accs, nullStart)
	}
}

func TestSummarizeUnknownRun(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Summarize(""); err == nil {
		t.Error("expected error for empty store")
	}
	if _, err := s.Summarize("missing"); err == nil {
		t.Error("expected error for unknown run")
	}
}
