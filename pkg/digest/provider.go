package digest

// Candidate is a peptide offered to the search engine.
type Candidate struct {
	Mass        float64
	Fingerprint Fingerprint
	Peptide     *Peptide
	Origin      Origin

	// Fragments overrides Peptide.Fragments when set.
	Fragments func(products []ProductType) []float64
}

// FragmentMasses returns the neutral fragment masses of the candidate.
func (c Candidate) FragmentMasses(products []ProductType) []float64 {
	if c.Fragments != nil {
		return c.Fragments(products)
	}
	if c.Peptide == nil {
		return nil
	}
	return c.Peptide.Fragments(products)
}

// NewCandidate wraps a digested peptide.
func NewCandidate(p *Peptide) Candidate {
	return Candidate{
		Mass:        p.MonoisotopicMass(),
		Fingerprint: p.Fingerprint(),
		Peptide:     p,
		Origin:      p.Origin(),
	}
}

// Provider digests proteins on demand. It is safe for concurrent use as long
// as the protein slice is not modified.
type Provider struct {
	proteins []*Protein
	params   Params
}

// NewProvider returns a provider over proteins after validating params.
func NewProvider(proteins []*Protein, params Params) (*Provider, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Provider{proteins: proteins, params: params}, nil
}

// NumProteins returns the number of proteins.
func (p *Provider) NumProteins() int { return len(p.proteins) }

// Protein returns the i-th protein.
func (p *Provider) Protein(i int) *Protein { return p.proteins[i] }

// Digest returns the candidates of the i-th protein.
func (p *Provider) Digest(i int) []Candidate {
	peptides := Digest(p.proteins[i], i, p.params)
	out := make([]Candidate, len(peptides))
	for j, pep := range peptides {
		out[j] = NewCandidate(pep)
	}
	return out
}
