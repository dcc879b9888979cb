package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ModRule is a modification that may be placed on a set of residues.
type ModRule struct {
	Name     string
	Mass     float64
	Residues string // Target residues; "" means the peptide N-terminus
}

// Targets reports whether the rule applies to the residue.
func (r ModRule) Targets(aa byte) bool {
	return strings.IndexByte(r.Residues, aa) >= 0
}

// ModDatabase stores modification definitions
type ModDatabase struct {
	mods map[string]float64 // name -> mass shift
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]float64),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift)
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		db.mods[modName] = mass
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// ParseRules parses a list of rule strings like "Carbamidomethyl@C", "Oxidation@M",
// "Phospho@STY" or "42.010565@nterm". The part before '@' is a modification name
// looked up in the database or a literal mass.
func (db *ModDatabase) ParseRules(specs []string) ([]ModRule, error) {
	var rules []ModRule
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		rule, err := db.ParseRule(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ParseRule parses a single "name@residues" rule.
func (db *ModDatabase) ParseRule(spec string) (ModRule, error) {
	atParts := strings.Split(spec, "@")
	if len(atParts) != 2 {
		return ModRule{}, fmt.Errorf("invalid modification rule '%s', expected 'name@residues' or 'mass@residues'", spec)
	}

	nameOrMass := strings.TrimSpace(atParts[0])
	residues := strings.ToUpper(strings.TrimSpace(atParts[1]))

	// Try to parse as a number first (direct mass)
	mass, err := strconv.ParseFloat(nameOrMass, 64)
	if err != nil {
		var ok bool
		mass, ok = db.GetMass(nameOrMass)
		if !ok {
			return ModRule{}, fmt.Errorf("unknown modification '%s'", nameOrMass)
		}
	}

	if residues == "NTERM" {
		residues = ""
	} else {
		for i := 0; i < len(residues); i++ {
			if _, ok := ResidueMass(residues[i]); !ok {
				return ModRule{}, fmt.Errorf("invalid target residue '%c' in rule '%s'", residues[i], spec)
			}
		}
	}

	return ModRule{Name: nameOrMass, Mass: mass, Residues: residues}, nil
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	// Common modifications from unimod
	db.Add("Acetyl", 42.010565)
	db.Add("Amidated", -0.984016)
	db.Add("Biotin", 226.077598)
	db.Add("Carbamidomethyl", 57.021464)
	db.Add("Carbamyl", 43.005814)
	db.Add("Carboxymethyl", 58.005479)
	db.Add("Deamidated", 0.984016)
	db.Add("Met->Hse", -29.992806)
	db.Add("Met->Hsl", -48.003371)
	db.Add("NIPCAM", 99.068414)
	db.Add("Phospho", 79.966331)
	db.Add("Dehydrated", -18.010565)
	db.Add("Propionamide", 71.037114)
	db.Add("Pyro-carbamidomethyl", 39.994915)
	db.Add("Glu->pyro-Glu", -18.010565)
	db.Add("Gln->pyro-Glu", -17.026549)
	db.Add("Cation:Na", 21.981943)
	db.Add("Methyl", 14.01565)
	db.Add("Oxidation", 15.994915)
	db.Add("Dimethyl", 28.0313)
	db.Add("Trimethyl", 42.04695)
	db.Add("Methylthio", 45.987721)
	db.Add("Sulfo", 79.956815)
	db.Add("Hex", 162.052824)
	db.Add("HexNAc", 203.079373)
	db.Add("Guanidinyl", 42.021798)
	db.Add("Propionyl", 56.026215)
	db.Add("TMT6plex", 229.162932)
	db.Add("TMTPro", 304.207146)
	db.Add("iTRAQ4plex", 144.102063)
	db.Add("iTRAQ8plex", 304.205360)

	return db
}
