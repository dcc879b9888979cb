package core

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScanValidation(t *testing.T) {
	tests := []struct {
		name    string
		scan    *Scan
		wantErr bool
	}{
		{
			name: "valid scan",
			scan: NewScan(1, 400.5, 2, 10.0, []Peak{
				{MZ: 100.0, Intensity: 1000.0},
				{MZ: 200.0, Intensity: 2000.0},
			}),
			wantErr: false,
		},
		{
			name: "zero charge",
			scan: &Scan{
				PrecursorMZ: 400.5,
				Peaks:       []Peak{{MZ: 100.0, Intensity: 1000.0}},
			},
			wantErr: true,
		},
		{
			name:    "no peaks",
			scan:    NewScan(1, 400.5, 2, 10.0, nil),
			wantErr: true,
		},
		{
			name: "unsorted peaks",
			scan: &Scan{
				PrecursorMZ:     400.5,
				PrecursorCharge: 2,
				Peaks: []Peak{
					{MZ: 200.0, Intensity: 2000.0},
					{MZ: 100.0, Intensity: 1000.0},
				},
			},
			wantErr: true,
		},
		{
			name:    "NaN m/z",
			scan:    NewScan(1, 400.5, 2, 10.0, []Peak{{MZ: math.NaN(), Intensity: 1000.0}}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scan.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var verr *ValidationError
			if err != nil && !errors.As(err, &verr) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestNewScanSortsPeaks(t *testing.T) {
	in := []Peak{
		{MZ: 300.0, Intensity: 100.0},
		{MZ: 100.0, Intensity: 200.0},
		{MZ: 200.0, Intensity: 150.0},
	}
	scan := NewScan(7, 500.0, 2, 1.0, in)

	want := []Peak{
		{MZ: 100.0, Intensity: 200.0},
		{MZ: 200.0, Intensity: 150.0},
		{MZ: 300.0, Intensity: 100.0},
	}
	if diff := cmp.Diff(want, scan.Peaks); diff != "" {
		t.Errorf("peaks mismatch (-want +got):\n%s", diff)
	}
	if in[0].MZ != 300.0 {
		t.Error("NewScan must not reorder the caller's slice")
	}
	if scan.TotalIonCurrent != 450.0 {
		t.Errorf("expected TIC 450, got %f", scan.TotalIonCurrent)
	}
	wantMass := 500.0*2 - 2*ProtonMass
	if math.Abs(scan.PrecursorMass-wantMass) > 1e-9 {
		t.Errorf("expected precursor mass %f, got %f", wantMass, scan.PrecursorMass)
	}
}

func TestSortScans(t *testing.T) {
	scans := []*Scan{
		NewScan(1, 600, 1, 0, nil),
		NewScan(2, 300, 1, 0, nil),
		NewScan(3, 300, 1, 0, nil),
		NewScan(4, 450, 1, 0, nil),
	}
	SortScans(scans)

	var got []int
	for _, s := range scans {
		got = append(got, s.ScanNumber)
	}
	if diff := cmp.Diff([]int{2, 3, 4, 1}, got); diff != "" {
		t.Errorf("scan order mismatch (-want +got):\n%s", diff)
	}
}

func TestWithPeaks(t *testing.T) {
	scan := NewScan(3, 500, 2, 1, []Peak{{MZ: 100, Intensity: 10}, {MZ: 200, Intensity: 20}})
	scan.SourceFile = "run1"
	trimmed := scan.WithPeaks([]Peak{{MZ: 200, Intensity: 20}})

	if trimmed.TotalIonCurrent != 20 {
		t.Errorf("expected TIC 20, got %f", trimmed.TotalIonCurrent)
	}
	if len(scan.Peaks) != 2 {
		t.Error("WithPeaks must not modify the receiver")
	}
	if !strings.HasPrefix(trimmed.Name(), "run1:") {
		t.Errorf("unexpected name %s", trimmed.Name())
	}
}

func TestParseRules(t *testing.T) {
	db := DefaultModDatabase()
	rules, err := db.ParseRules([]string{"Carbamidomethyl@C", "Oxidation@M", "42.010565@nterm", " "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []ModRule{
		{Name: "Carbamidomethyl", Mass: 57.021464, Residues: "C"},
		{Name: "Oxidation", Mass: 15.994915, Residues: "M"},
		{Name: "42.010565", Mass: 42.010565, Residues: ""},
	}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
	if !rules[1].Targets('M') || rules[1].Targets('C') {
		t.Error("Oxidation@M must target M only")
	}

	for _, bad := range []string{"Unknown@C", "Oxidation", "Oxidation@J"} {
		if _, err := db.ParseRule(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestLoadFromCSV(t *testing.T) {
	db := NewModDatabase()
	csv := "mod,massshift\nMyMod,12.5\n\nOther,-1.25\n"
	if err := db.LoadFromCSV(strings.NewReader(csv)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m, ok := db.GetMass("Other"); !ok || m != -1.25 {
		t.Errorf("expected Other=-1.25, got %f (%v)", m, ok)
	}
	if err := db.LoadFromCSV(strings.NewReader("h\nBad,notanumber\n")); err == nil {
		t.Error("expected error for invalid mass")
	}
}
