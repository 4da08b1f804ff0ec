package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealsync/internal/matching"
)

var (
	matchFile     string
	matchLimit    int
	matchPipeline string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "List existing CRM deals that may correspond to an extraction",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ext, err := readExtraction(matchFile, cmd.InOrStdin())
		if err != nil {
			return err
		}

		limit := matchLimit
		if limit <= 0 {
			limit = cfg.Sync.MatchLimit
		}

		candidates, err := matching.New(initHubSpot()).FindMatchingDeals(cmd.Context(), ext, limit, matchPipeline)
		if err != nil {
			return eris.Wrap(err, "match")
		}
		if len(candidates) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No matching deals found.")
		}
		return printJSON(cmd.OutOrStdout(), candidates)
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchFile, "file", "", "extraction JSON file (- for stdin)")
	matchCmd.Flags().IntVar(&matchLimit, "limit", 0, "maximum candidates (default sync.match_limit)")
	matchCmd.Flags().StringVar(&matchPipeline, "pipeline", "", "only consider deals in this pipeline id")
	_ = matchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(matchCmd)
}
