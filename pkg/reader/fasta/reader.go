// Package fasta provides a streaming reader for FASTA protein databases
package fasta

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ChrisMcGann/psmsearch/pkg/digest"
)

// maxLineLength bounds a single FASTA line; some databases store each sequence on one line.
const maxLineLength = 16 * 1024 * 1024

// Reader provides streaming access to FASTA files
type Reader struct {
	scanner    *bufio.Scanner
	lineNum    int
	header     string // pending header read ahead of the current entry
	current    *digest.Protein
	err        error
	done       bool
	closeFuncs []func() error
}

// NewReader creates a new FASTA reader
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	return &Reader{scanner: scanner}
}

// Open opens a FASTA file for reading. Files ending in ".gz" are decompressed.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FASTA file: %w", err)
	}

	var src io.Reader = f
	closers := []func() error{f.Close}
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		src = gz
		closers = append([]func() error{gz.Close}, closers...)
	}

	r := NewReader(src)
	r.closeFuncs = closers
	return r, nil
}

// Close releases the underlying file when the reader was created by Open.
func (r *Reader) Close() error {
	var first error
	for _, c := range r.closeFuncs {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	r.closeFuncs = nil
	return first
}

// Next advances to the next protein. Returns false when no more proteins or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.done || r.err != nil {
		return false
	}

	protein, err := r.readProtein()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		r.done = true
		return false
	}

	r.current = protein
	return true
}

// Protein returns the current protein
func (r *Reader) Protein() *digest.Protein {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readProtein reads one entry: a header line and the sequence lines that follow it
func (r *Reader) readProtein() (*digest.Protein, error) {
	header := r.header
	r.header = ""
	var seq strings.Builder

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, ">") {
			if header == "" {
				header = line[1:]
				continue
			}
			// Start of the next entry
			r.header = line[1:]
			return newProtein(header, seq.String()), nil
		}

		if header == "" {
			return nil, fmt.Errorf("line %d: sequence data before first header", r.lineNum)
		}
		seq.WriteString(strings.ToUpper(strings.ReplaceAll(line, " ", "")))
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if header != "" {
		return newProtein(header, seq.String()), nil
	}

	return nil, io.EOF
}

// newProtein builds a protein from a header, stripping a trailing stop codon.
func newProtein(header, sequence string) *digest.Protein {
	accession, name := ParseHeader(header)
	return &digest.Protein{
		Accession: accession,
		Name:      name,
		Sequence:  strings.TrimSuffix(sequence, "*"),
	}
}

// ParseHeader splits a FASTA header into accession and description. UniProt
// headers ("sp|P12345|NAME_HUMAN Description") yield the middle field.
func ParseHeader(header string) (accession, name string) {
	header = strings.TrimSpace(header)
	id, desc, _ := strings.Cut(header, " ")
	desc = strings.TrimSpace(desc)

	parts := strings.Split(id, "|")
	if len(parts) >= 3 && (parts[0] == "sp" || parts[0] == "tr") {
		return parts[1], desc
	}
	return id, desc
}

// ReadAll reads every remaining protein.
func (r *Reader) ReadAll() ([]*digest.Protein, error) {
	var proteins []*digest.Protein
	for r.Next() {
		proteins = append(proteins, r.Protein())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return proteins, nil
}
