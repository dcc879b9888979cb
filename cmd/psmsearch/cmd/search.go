package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmsearch/internal/config"
	"github.com/ChrisMcGann/psmsearch/pkg/core"
	"github.com/ChrisMcGann/psmsearch/pkg/digest"
	"github.com/ChrisMcGann/psmsearch/pkg/reader/fasta"
	"github.com/ChrisMcGann/psmsearch/pkg/search"
	"github.com/ChrisMcGann/psmsearch/pkg/store/sqlite"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search stored scans against a FASTA database",
	Long: `Digest the FASTA database, score every candidate peptide against the scans
in the SQLite database and store the best match per scan as a new run.

Examples:
  # Search with a 10 ppm precursor window
  psmsearch search --db scans.db --fasta human.fasta --acceptor ppm --precursor-tolerance 10ppm

  # Open search with e-values and a config file
  psmsearch search --config search.yaml --acceptor open --evalue`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

// runParams is the configuration snapshot stored with each run.
type runParams struct {
	Fasta     string
	Acceptor  string
	Search    config.SearchConfig
	Digestion config.DigestionConfig
	Filter    config.FilterConfig
}

// loadScans reads the scans from the database, filters their peaks and drops
// scans that fail validation. The result is sorted by precursor mass.
func loadScans(cfg *config.Config, log *slog.Logger) ([]*core.Scan, int, error) {
	if _, err := os.Stat(cfg.Database); os.IsNotExist(err) {
		return nil, 0, fmt.Errorf("database does not exist: %s", cfg.Database)
	}

	store, err := sqlite.Open(cfg.Database)
	if err != nil {
		return nil, 0, err
	}
	defer store.Close()

	raw, err := store.LoadScans()
	if err != nil {
		return nil, 0, err
	}

	filtered := cfg.FilterConfig().ApplyAll(raw)

	scans := make([]*core.Scan, 0, len(filtered))
	skipped := 0
	for _, scan := range filtered {
		if err := scan.Validate(); err != nil {
			log.Warn("skipping invalid scan", slog.String("scan", scan.Name()), slog.String("error", err.Error()))
			skipped++
			continue
		}
		scans = append(scans, scan)
	}

	core.SortScans(scans)
	return scans, skipped, nil
}

func loadProteins(path string) ([]*digest.Protein, error) {
	if path == "" {
		return nil, fmt.Errorf("no FASTA database given (use --fasta or the config file)")
	}
	reader, err := fasta.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	proteins, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading FASTA file: %w", err)
	}
	if len(proteins) == 0 {
		return nil, fmt.Errorf("no proteins in %s", path)
	}
	return proteins, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
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
	params, err := cfg.SearchParams()
	if err != nil {
		return err
	}
	digestion, err := cfg.DigestionParams(modDB)
	if err != nil {
		return fmt.Errorf("invalid digestion: %w", err)
	}

	fmt.Printf("Searching %s against %s...\n", cfg.Database, cfg.Fasta)
	fmt.Printf("Acceptor: %s\n", acceptor)
	fmt.Printf("Protease: %s (%d missed cleavages)\n", digestion.Protease.Name, digestion.MaxMissedCleavages)
	if params.ComputeEValue {
		fmt.Printf("E-values: on\n")
	}

	proteins, err := loadProteins(cfg.Fasta)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d proteins\n", len(proteins))

	scans, skipped, err := loadScans(cfg, log)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d scans", len(scans))
	if skipped > 0 {
		fmt.Printf(" (skipped %d invalid)", skipped)
	}
	fmt.Println()

	index, err := search.NewScanIndex(scans)
	if err != nil {
		return err
	}
	provider, err := digest.NewProvider(proteins, digestion)
	if err != nil {
		return err
	}

	params.Logger = log
	params.Progress = func(percent int, message string) {
		fmt.Printf("\r%3d%% %s", percent, message)
		if percent == 100 {
			fmt.Println()
		}
	}

	engine, err := search.New(index, provider, acceptor, params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	elapsed := time.Since(start)

	store, err := sqlite.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	snapshot := runParams{
		Fasta:     cfg.Fasta,
		Acceptor:  acceptor.String(),
		Search:    cfg.Search,
		Digestion: cfg.Digestion,
		Filter:    cfg.Filter,
	}
	runID, err := store.WriteRun(snapshot, index, len(proteins), results, elapsed)
	if err != nil {
		return fmt.Errorf("failed to store results: %w", err)
	}

	matched := 0
	for _, r := range results {
		if r != nil {
			matched++
		}
	}

	fmt.Printf("\nSearch complete!\n")
	fmt.Printf("Run: %s\n", color.CyanString(runID))
	fmt.Printf("Matched: %s of %d scans\n", color.GreenString("%d", matched), len(scans))
	fmt.Printf("Elapsed: %s\n", elapsed.Round(time.Millisecond))

	return nil
}
