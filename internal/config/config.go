package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ChrisMcGann/psmsearch/pkg/core"
	"github.com/ChrisMcGann/psmsearch/pkg/digest"
	"github.com/ChrisMcGann/psmsearch/pkg/filter"
	"github.com/ChrisMcGann/psmsearch/pkg/massdiff"
	"github.com/ChrisMcGann/psmsearch/pkg/search"
)

// EnvConfigPath names the environment variable consulted when no --config flag is given.
const EnvConfigPath = "PSMSEARCH_CONFIG"

// Config is the complete psmsearch configuration.
type Config struct {
	Env       string          `yaml:"env" env:"PSMSEARCH_ENV" env-default:"local"`
	Database  string          `yaml:"database" env:"PSMSEARCH_DB" env-default:"psmsearch.db"`
	Fasta     string          `yaml:"fasta" env:"PSMSEARCH_FASTA"`
	ModsCSV   string          `yaml:"mods_csv" env:"PSMSEARCH_MODS_CSV"`
	Search    SearchConfig    `yaml:"search"`
	Digestion DigestionConfig `yaml:"digestion"`
	Filter    FilterConfig    `yaml:"filter"`
}

// SearchConfig holds the acceptor, scoring and engine settings.
//
// cleanenv applies env-default to any zero field, so only strings use it.
// Numeric, bool and list defaults come from Default.
type SearchConfig struct {
	Acceptor           string    `yaml:"mass_diff_acceptor" env:"PSMSEARCH_ACCEPTOR" env-default:"ppm"`
	PrecursorTolerance string    `yaml:"precursor_tolerance" env:"PSMSEARCH_PRECURSOR_TOLERANCE" env-default:"10ppm"`
	Intervals          []string  `yaml:"intervals" env:"PSMSEARCH_INTERVALS" env-separator:","`
	Notches            []float64 `yaml:"notches" env:"PSMSEARCH_NOTCHES" env-separator:","`

	ScoreCutoff        float64  `yaml:"score_cutoff" env:"PSMSEARCH_SCORE_CUTOFF"`
	ProductTolerance   string   `yaml:"product_tolerance" env:"PSMSEARCH_PRODUCT_TOLERANCE" env-default:"20ppm"`
	Dissociation       []string `yaml:"dissociation" env:"PSMSEARCH_DISSOCIATION" env-separator:","`
	ComplementaryIons  bool     `yaml:"complementary_ions" env:"PSMSEARCH_COMPLEMENTARY_IONS"`
	IntensityBonus     bool     `yaml:"intensity_bonus" env:"PSMSEARCH_INTENSITY_BONUS"`
	ComputeEValue      bool     `yaml:"compute_evalue" env:"PSMSEARCH_COMPUTE_EVALUE"`
	ReportAllAmbiguity bool     `yaml:"report_all_ambiguity" env:"PSMSEARCH_REPORT_ALL_AMBIGUITY"`
	ConserveMemory     bool     `yaml:"conserve_memory" env:"PSMSEARCH_CONSERVE_MEMORY"`
	Threads            int      `yaml:"threads" env:"PSMSEARCH_THREADS"`
	PartitionSize      int      `yaml:"partition_size" env:"PSMSEARCH_PARTITION_SIZE"`
}

// DigestionConfig selects the protease, length limits and modifications.
type DigestionConfig struct {
	Protease            string   `yaml:"protease" env:"PSMSEARCH_PROTEASE" env-default:"trypsin"`
	MaxMissedCleavages  int      `yaml:"max_missed_cleavages" env:"PSMSEARCH_MAX_MISSED_CLEAVAGES"`
	MinLength           int      `yaml:"min_length" env:"PSMSEARCH_MIN_LENGTH"`
	MaxLength           int      `yaml:"max_length" env:"PSMSEARCH_MAX_LENGTH"`
	InitiatorMethionine string   `yaml:"initiator_methionine" env:"PSMSEARCH_INITIATOR_METHIONINE" env-default:"variable"`
	FixedMods           []string `yaml:"fixed_mods" env:"PSMSEARCH_FIXED_MODS" env-separator:","`
	VariableMods        []string `yaml:"variable_mods" env:"PSMSEARCH_VARIABLE_MODS" env-separator:","`
	MaxModsPerPeptide   int      `yaml:"max_mods_per_peptide" env:"PSMSEARCH_MAX_MODS_PER_PEPTIDE"`
}

// FilterConfig controls peak filtering before the search.
type FilterConfig struct {
	TopN            int     `yaml:"top_n" env:"PSMSEARCH_TOP_N"`
	IntensityCutoff float64 `yaml:"intensity_cutoff" env:"PSMSEARCH_INTENSITY_CUTOFF"`
}

// Default returns the configuration used for keys that neither the file nor
// the environment sets.
func Default() Config {
	return Config{
		Search: SearchConfig{
			ScoreCutoff:        5,
			Dissociation:       []string{"HCD"},
			IntensityBonus:     true,
			ReportAllAmbiguity: true,
		},
		Digestion: DigestionConfig{
			MaxMissedCleavages: 2,
			MinLength:          5,
			MaxLength:          50,
			FixedMods:          []string{"Carbamidomethyl@C"},
			VariableMods:       []string{"Oxidation@M"},
			MaxModsPerPeptide:  2,
		},
		Filter: FilterConfig{
			TopN: 200,
		},
	}
}

// Load reads the configuration file at path, falling back to PSMSEARCH_CONFIG.
// Without a file, values come from the environment and defaults alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read config from environment: %w", err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	return &cfg, nil
}

// Acceptor builds the precursor mass-difference acceptor.
func (c *Config) Acceptor() (massdiff.Acceptor, error) {
	s := c.Search
	return massdiff.Parse(s.Acceptor, s.PrecursorTolerance, s.Intervals, s.Notches)
}

// SearchParams maps the search section onto engine parameters. Progress and
// Logger are left for the caller.
func (c *Config) SearchParams() (search.Params, error) {
	s := c.Search

	tol, err := massdiff.ParseTolerance(s.ProductTolerance)
	if err != nil {
		return search.Params{}, fmt.Errorf("product tolerance: %w", err)
	}

	var dissociation []digest.DissociationType
	for _, name := range s.Dissociation {
		d, err := digest.ParseDissociationType(name)
		if err != nil {
			return search.Params{}, err
		}
		dissociation = append(dissociation, d)
	}

	p := search.Params{
		ScoreCutoff:          s.ScoreCutoff,
		ConserveMemory:       s.ConserveMemory,
		ReportAllAmbiguity:   s.ReportAllAmbiguity,
		ComputeEValue:        s.ComputeEValue,
		FragmentTolerance:    tol,
		DissociationTypes:    dissociation,
		AddComplementaryIons: s.ComplementaryIons,
		IntensityBonus:       s.IntensityBonus,
		Threads:              s.Threads,
		PartitionSize:        s.PartitionSize,
	}
	if err := p.Validate(); err != nil {
		return search.Params{}, err
	}
	return p, nil
}

// DigestionParams resolves protease and modification names against modDB.
func (c *Config) DigestionParams(modDB *core.ModDatabase) (digest.Params, error) {
	d := c.Digestion

	protease, err := digest.ParseProtease(d.Protease)
	if err != nil {
		return digest.Params{}, err
	}
	met, err := digest.ParseInitiatorMethionine(d.InitiatorMethionine)
	if err != nil {
		return digest.Params{}, err
	}
	fixed, err := modDB.ParseRules(d.FixedMods)
	if err != nil {
		return digest.Params{}, fmt.Errorf("fixed modifications: %w", err)
	}
	variable, err := modDB.ParseRules(d.VariableMods)
	if err != nil {
		return digest.Params{}, fmt.Errorf("variable modifications: %w", err)
	}

	p := digest.Params{
		Protease:            protease,
		MaxMissedCleavages:  d.MaxMissedCleavages,
		MinLength:           d.MinLength,
		MaxLength:           d.MaxLength,
		InitiatorMethionine: met,
		FixedMods:           fixed,
		VariableMods:        variable,
		MaxModsPerPeptide:   d.MaxModsPerPeptide,
	}
	if err := p.Validate(); err != nil {
		return digest.Params{}, err
	}
	return p, nil
}

// FilterConfig returns the peak filter applied to scans before searching.
func (c *Config) FilterConfig() *filter.Config {
	return &filter.Config{
		TopN:            c.Filter.TopN,
		IntensityCutoff: c.Filter.IntensityCutoff,
	}
}
