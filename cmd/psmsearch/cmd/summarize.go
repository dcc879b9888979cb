package cmd

import (
	"fmt"
	"math"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmsearch/pkg/store/sqlite"
)

var listRuns bool

var summarizeCmd = &cobra.Command{
	Use:   "summarize [run-id]",
	Short: "Summarize a stored search run",
	Long: `Print summary statistics about a search run: matched scans, ambiguous
matches and score distribution. Without a run id the newest run is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().BoolVar(&listRuns, "list", false, "List stored runs instead")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Database); os.IsNotExist(err) {
		return fmt.Errorf("database does not exist: %s", cfg.Database)
	}
	store, err := sqlite.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if listRuns {
		runs, err := store.Runs()
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %d scans  %d proteins  %s\n",
				color.CyanString(r.ID), r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				r.NumScans, r.NumProteins, r.Elapsed)
		}
		return nil
	}

	var runID string
	if len(args) == 1 {
		runID = args[0]
	}
	sum, err := store.Summarize(runID)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Printf("Run %s\n", sum.Run.ID)
	fmt.Printf("Created: %s\n", sum.Run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Params:  %s\n", string(sum.Run.Params))
	fmt.Printf("Scans:   %d searched, %s matched\n", sum.Run.NumScans, color.GreenString("%d", sum.MatchedScans))
	fmt.Printf("Rows:    %d (%d ambiguous scans)\n", sum.Rows, sum.Ambiguous)
	if sum.MatchedScans > 0 {
		fmt.Printf("Score:   mean %.3f, sd %.3f, median %.3f\n", sum.MeanScore, sum.StdDevScore, sum.MedianScore)
	}
	if !math.IsNaN(sum.MeanEScore) {
		fmt.Printf("EScore:  mean %.3f\n", sum.MeanEScore)
	}
	fmt.Printf("Elapsed: %s\n", sum.Run.Elapsed)

	return nil
}
