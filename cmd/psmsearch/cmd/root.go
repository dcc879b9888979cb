// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmsearch/internal/config"
	"github.com/ChrisMcGann/psmsearch/internal/logger"
	"github.com/ChrisMcGann/psmsearch/pkg/core"
)

// customModsFile is picked up from the working directory when present.
const customModsFile = "unimod_custom.csv"

var (
	// Global flags
	configPath string
	logEnv     string
	dbPath     string

	// Flags for search command
	fastaFile      string
	threads        int
	scoreCutoff    float64
	computeEValue  bool
	conserveMemory bool
	reportAll      bool
	acceptorMode   string
	precursorTol   string
)

var rootCmd = &cobra.Command{
	Use:   "psmsearch",
	Short: "psmsearch - Classic peptide-spectrum match search",
	Long: `psmsearch matches MS/MS scans against peptides digested from a FASTA
protein database and stores the best peptide-spectrum matches in SQLite.

Supports:
- Precursor mass-difference acceptors (Da, ppm, open, interval lists, notches)
- Fixed and variable modifications
- Ambiguity reporting with protein locations
- Poisson e-values from per-scan score histograms`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logEnv, "log-env", "", "Logging environment: local, dev or prod (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database holding scans and results (overrides config)")

	// Search command flags
	searchCmd.Flags().StringVarP(&fastaFile, "fasta", "f", "", "FASTA protein database, optionally gzipped (overrides config)")
	searchCmd.Flags().IntVar(&threads, "threads", 0, "Number of worker threads (0 = all CPUs)")
	searchCmd.Flags().Float64Var(&scoreCutoff, "cutoff", 0, "Minimum score to keep a match")
	searchCmd.Flags().BoolVar(&computeEValue, "evalue", false, "Compute Poisson e-values from per-scan score histograms")
	searchCmd.Flags().BoolVar(&conserveMemory, "conserve-memory", false, "Do not deduplicate candidate peptides")
	searchCmd.Flags().BoolVar(&reportAll, "report-all-ambiguity", true, "Keep every tied peptide instead of the first-arriving one")
	searchCmd.Flags().StringVar(&acceptorMode, "acceptor", "", "Mass-difference acceptor: da, ppm, open, interval, dot")
	searchCmd.Flags().StringVar(&precursorTol, "precursor-tolerance", "", "Precursor tolerance, e.g. 10ppm or 0.5Da")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and stored scans",
	Long: `Check that the configuration resolves to valid search parameters and that
every scan in the database passes validation after peak filtering.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

// loadConfig reads the config and applies flag overrides shared by all commands.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-env") {
		cfg.Env = logEnv
	}
	if flags.Changed("db") {
		cfg.Database = dbPath
	}
	if flags.Changed("fasta") {
		cfg.Fasta = fastaFile
	}
	if flags.Changed("threads") {
		cfg.Search.Threads = threads
	}
	if flags.Changed("cutoff") {
		cfg.Search.ScoreCutoff = scoreCutoff
	}
	if flags.Changed("evalue") {
		cfg.Search.ComputeEValue = computeEValue
	}
	if flags.Changed("conserve-memory") {
		cfg.Search.ConserveMemory = conserveMemory
	}
	if flags.Changed("report-all-ambiguity") {
		cfg.Search.ReportAllAmbiguity = reportAll
	}
	if flags.Changed("acceptor") {
		cfg.Search.Acceptor = acceptorMode
	}
	if flags.Changed("precursor-tolerance") {
		cfg.Search.PrecursorTolerance = precursorTol
	}

	return cfg, logger.Setup(cfg.Env, os.Stderr), nil
}

// loadModDatabase returns the default modifications extended by the configured
// CSV file, or by unimod_custom.csv in the working directory.
func loadModDatabase(cfg *config.Config) (*core.ModDatabase, error) {
	modDB := core.DefaultModDatabase()

	path := cfg.ModsCSV
	if path == "" {
		if _, err := os.Stat(customModsFile); err != nil {
			return modDB, nil
		}
		path = customModsFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open modifications file: %w", err)
	}
	defer f.Close()

	if err := modDB.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return modDB, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	modDB, err := loadModDatabase(cfg)
	if err != nil {
		return err
	}
	acceptor, err := cfg.Acceptor()
	if err != nil {
		return fmt.Errorf("invalid acceptor: %w", err)
	}
	if _, err := cfg.SearchParams(); err != nil {
		return err
	}
	if _, err := cfg.DigestionParams(modDB); err != nil {
		return fmt.Errorf("invalid digestion: %w", err)
	}
	fmt.Printf("Configuration OK (acceptor: %s)\n", acceptor)

	scans, skipped, err := loadScans(cfg, log)
	if err != nil {
		return err
	}
	fmt.Printf("Scans: %d valid, %d invalid\n", len(scans), skipped)
	return nil
}
