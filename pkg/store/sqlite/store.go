// Package sqlite provides SQLite persistence for scans, search runs and their PSMs
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/psmsearch/pkg/core"
	"github.com/ChrisMcGann/psmsearch/pkg/search"
)

const (
	// Date format for RunTable (ISO 8601)
	runDateFormat = time.RFC3339
	// MassDiff is stored rounded to this many decimals
	massDiffDecimals = 6
)

// Store handles reading scans and writing search results
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a store database
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// createTables creates the required database schema
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ScanTable (
		ScanId INTEGER PRIMARY KEY,
		SourceFile TEXT,
		ScanNumber INTEGER,
		PrecursorMZ DOUBLE,
		PrecursorCharge INTEGER,
		RetentionTime DOUBLE,
		blobMass BLOB,
		blobIntensity BLOB
	);

	CREATE TABLE IF NOT EXISTS RunTable (
		RunId TEXT PRIMARY KEY,
		CreationDate TEXT,
		Params TEXT,
		NumScans INTEGER,
		NumProteins INTEGER,
		ElapsedSeconds DOUBLE
	);

	CREATE TABLE IF NOT EXISTS PSMTable (
		PSMId INTEGER PRIMARY KEY,
		RunId TEXT REFERENCES RunTable(RunId),
		SourceFile TEXT,
		ScanNumber INTEGER,
		PrecursorMass DOUBLE,
		Score DOUBLE,
		RunnerUpScore DOUBLE,
		EValue DOUBLE,
		EScore DOUBLE,
		Notch INTEGER,
		BaseSequence TEXT,
		FullSequence TEXT,
		PeptideMass DOUBLE,
		TheoreticalMZ DOUBLE,
		MassDiff DOUBLE,
		Accessions TEXT,
		StartResidue INTEGER,
		EndResidue INTEGER,
		ProteinLength INTEGER
	);

	CREATE INDEX IF NOT EXISTS PSMRunIndex ON PSMTable(RunId);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// WriteScans stores scans in a single transaction. Peaks are encoded as
// little-endian float64 blobs.
func (s *Store) WriteScans(scans []*core.Scan) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO ScanTable (
			SourceFile, ScanNumber, PrecursorMZ, PrecursorCharge, RetentionTime,
			blobMass, blobIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare scan statement: %w", err)
	}
	defer stmt.Close()

	for _, scan := range scans {
		_, err := stmt.Exec(
			scan.SourceFile,
			scan.ScanNumber,
			scan.PrecursorMZ,
			scan.PrecursorCharge,
			scan.RetentionTime,
			encodePeaksFloat64(scan.Peaks, true),  // m/z values
			encodePeaksFloat64(scan.Peaks, false), // intensity values
		)
		if err != nil {
			return fmt.Errorf("failed to insert scan %s: %w", scan.Name(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scans: %w", err)
	}
	return nil
}

// LoadScans reads every stored scan in insertion order
func (s *Store) LoadScans() ([]*core.Scan, error) {
	rows, err := s.db.Query(`
		SELECT SourceFile, ScanNumber, PrecursorMZ, PrecursorCharge, RetentionTime,
			blobMass, blobIntensity
		FROM ScanTable ORDER BY ScanId
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []*core.Scan
	for rows.Next() {
		var (
			source          sql.NullString
			scanNumber      int
			precursorMZ     float64
			charge          int
			rt              sql.NullFloat64
			mzBlob, intBlob []byte
		)
		if err := rows.Scan(&source, &scanNumber, &precursorMZ, &charge, &rt, &mzBlob, &intBlob); err != nil {
			return nil, fmt.Errorf("failed to read scan row: %w", err)
		}

		peaks, err := decodePeaks(mzBlob, intBlob)
		if err != nil {
			return nil, fmt.Errorf("scan %d: %w", scanNumber, err)
		}

		scan := core.NewScan(scanNumber, precursorMZ, charge, rt.Float64, peaks)
		scan.SourceFile = source.String
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scans: %w", err)
	}
	return scans, nil
}

// encodePeaksFloat64 encodes peak data as little-endian float64 blob
func encodePeaksFloat64(peaks []core.Peak, useMZ bool) []byte {
	buf := make([]byte, len(peaks)*8)
	for i, peak := range peaks {
		var value float64
		if useMZ {
			value = peak.MZ
		} else {
			value = peak.Intensity
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// decodePeaks is the inverse of encodePeaksFloat64
func decodePeaks(mzBlob, intBlob []byte) ([]core.Peak, error) {
	if len(mzBlob) != len(intBlob) || len(mzBlob)%8 != 0 {
		return nil, fmt.Errorf("corrupt peak blobs (%d and %d bytes)", len(mzBlob), len(intBlob))
	}
	peaks := make([]core.Peak, len(mzBlob)/8)
	for i := range peaks {
		peaks[i] = core.Peak{
			MZ:        math.Float64frombits(binary.LittleEndian.Uint64(mzBlob[i*8:])),
			Intensity: math.Float64frombits(binary.LittleEndian.Uint64(intBlob[i*8:])),
		}
	}
	return peaks, nil
}

// Run describes one stored search run
type Run struct {
	ID          string
	CreatedAt   time.Time
	Params      json.RawMessage
	NumScans    int
	NumProteins int
	Elapsed     time.Duration
}

// WriteRun stores a finished search: the run record plus one PSM row per
// match in each scan's ambiguity set. results is indexed like index. The new
// run id is returned.
func (s *Store) WriteRun(params any, index *search.ScanIndex, numProteins int, results []*search.PSM, elapsed time.Duration) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}

	runID := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO RunTable (RunId, CreationDate, Params, NumScans, NumProteins, ElapsedSeconds)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, time.Now().UTC().Format(runDateFormat), string(paramsJSON), index.Len(), numProteins, elapsed.Seconds())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO PSMTable (
			RunId, SourceFile, ScanNumber, PrecursorMass, Score, RunnerUpScore,
			EValue, EScore, Notch, BaseSequence, FullSequence, PeptideMass, TheoreticalMZ,
			MassDiff, Accessions, StartResidue, EndResidue, ProteinLength
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare psm statement: %w", err)
	}
	defer stmt.Close()

	for i, psm := range results {
		if psm == nil {
			continue
		}
		scan := index.Scan(i)
		for _, m := range psm.BestMatches() {
			// Location columns stay NULL when the peptide maps to several places
			var start, end, length any
			if o, ok := m.SingleOrigin(); ok {
				start, end, length = o.Start, o.End, o.ProteinLength
			}

			_, err := stmt.Exec(
				runID,
				scan.SourceFile,
				scan.ScanNumber,
				scan.PrecursorMass,
				psm.Score,
				psm.RunnerUpScore,
				nullableFloat(psm.EValue, psm.Histogram != nil),
				nullableFloat(psm.EScore, psm.Histogram != nil),
				m.Notch,
				m.Peptide.BaseSequence,
				m.Peptide.FullSequence(),
				m.Mass,
				core.CalculatePeptideMass(m.Peptide.BaseSequence, scan.PrecursorCharge, m.Peptide.Modifications()),
				core.RoundFloat(scan.PrecursorMass-m.Mass, massDiffDecimals),
				accessions(m),
				start,
				end,
				length,
			)
			if err != nil {
				return "", fmt.Errorf("failed to insert psm for scan %s: %w", scan.Name(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

func nullableFloat(v float64, valid bool) any {
	if !valid || math.IsNaN(v) {
		return nil
	}
	return v
}

// accessions joins the distinct protein accessions of a match with ";"
func accessions(m *search.Match) string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range m.Origins {
		if !seen[o.Accession] {
			seen[o.Accession] = true
			out = append(out, o.Accession)
		}
	}
	return strings.Join(out, ";")
}

// Runs lists stored runs, newest first
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT RunId, CreationDate, Params, NumScans, NumProteins, ElapsedSeconds
		FROM RunTable ORDER BY rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			created string
			params  string
			elapsed float64
		)
		if err := rows.Scan(&r.ID, &created, &params, &r.NumScans, &r.NumProteins, &elapsed); err != nil {
			return nil, fmt.Errorf("failed to read run row: %w", err)
		}
		r.CreatedAt, err = time.Parse(runDateFormat, created)
		if err != nil {
			return nil, fmt.Errorf("run %s: invalid creation date: %w", r.ID, err)
		}
		r.Params = json.RawMessage(params)
		r.Elapsed = time.Duration(elapsed * float64(time.Second))
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// Summary holds statistics of one run's PSMs
type Summary struct {
	Run          Run
	MatchedScans int
	Rows         int     // one per match, so ambiguous scans count several times
	Ambiguous    int     // scans whose best match is not unique in sequence or location
	MeanScore    float64 // per scan
	StdDevScore  float64
	MedianScore  float64
	MeanEScore   float64 // NaN without e-values
}

// Summarize computes statistics for a run. An empty id selects the newest run.
func (s *Store) Summarize(runID string) (*Summary, error) {
	runs, err := s.Runs()
	if err != nil {
		return nil, err
	}
	var run *Run
	for i := range runs {
		if runID == "" || runs[i].ID == runID {
			run = &runs[i]
			break
		}
	}
	if run == nil {
		if runID == "" {
			return nil, fmt.Errorf("no search runs stored in %s", s.path)
		}
		return nil, fmt.Errorf("run %s not found", runID)
	}

	rows, err := s.db.Query(`
		SELECT SourceFile, ScanNumber, Score, EScore, FullSequence, StartResidue
		FROM PSMTable WHERE RunId = ?
	`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query psms: %w", err)
	}
	defer rows.Close()

	type scanKey struct {
		file   string
		number int
	}
	type scanStats struct {
		score     float64
		escore    sql.NullFloat64
		sequences map[string]bool
		located   bool
	}
	perScan := make(map[scanKey]*scanStats)

	sum := &Summary{Run: *run}
	for rows.Next() {
		var (
			file   sql.NullString
			number int
			score  float64
			escore sql.NullFloat64
			seq    string
			start  sql.NullInt64
		)
		if err := rows.Scan(&file, &number, &score, &escore, &seq, &start); err != nil {
			return nil, fmt.Errorf("failed to read psm row: %w", err)
		}
		sum.Rows++

		k := scanKey{file.String, number}
		st, ok := perScan[k]
		if !ok {
			st = &scanStats{score: score, escore: escore, sequences: make(map[string]bool), located: true}
			perScan[k] = st
		}
		st.sequences[seq] = true
		st.located = st.located && start.Valid
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read psms: %w", err)
	}

	scores := make([]float64, 0, len(perScan))
	var escores []float64
	for _, st := range perScan {
		scores = append(scores, st.score)
		if st.escore.Valid {
			escores = append(escores, st.escore.Float64)
		}
		if len(st.sequences) > 1 || !st.located {
			sum.Ambiguous++
		}
	}
	sum.MatchedScans = len(perScan)

	if len(scores) > 0 {
		sort.Float64s(scores)
		sum.MeanScore, sum.StdDevScore = stat.MeanStdDev(scores, nil)
		sum.MedianScore = stat.Quantile(0.5, stat.Empirical, scores, nil)
	}
	sum.MeanEScore = math.NaN()
	if len(escores) > 0 {
		sum.MeanEScore = stat.Mean(escores, nil)
	}
	return sum, nil
}
