package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/dealsync/internal/store"
	"github.com/sells-group/dealsync/internal/syncer"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find and remove records left behind by failed syncs",
}

var (
	orphansApproval  string
	orphansOlderThan time.Duration
)

var orphansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List companies and contacts created by a sync whose deal step failed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Listing reads only the ledger.
		orphans, err := newReconciler(nil, st).FindOrphans(ctx, orphansApproval)
		if err != nil {
			return err
		}
		if len(orphans) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No orphans found.")
		}
		return printJSON(cmd.OutOrStdout(), orphans)
	},
}

var orphansCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the orphans of an approval from the CRM",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		removed, cleanupErr := newReconciler(initHubSpot(), st).Cleanup(ctx, orphansApproval)
		if err := printJSON(cmd.OutOrStdout(), removed); err != nil {
			return err
		}
		return cleanupErr
	},
}

var orphansExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Mark pending audit records older than a threshold as abandoned",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		olderThan := orphansOlderThan
		if olderThan <= 0 {
			olderThan = time.Duration(cfg.Sync.OrphanPendingMins) * time.Minute
		}
		n, err := newReconciler(nil, st).ExpireStale(ctx, olderThan)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"expired":    n,
			"older_than": olderThan.String(),
		})
	},
}

func newReconciler(crm hubspot.Client, st store.Store) *syncer.Reconciler {
	return syncer.NewReconciler(crm, st, cfg.HubSpot.ConnectionID)
}

func init() {
	for _, c := range []*cobra.Command{orphansListCmd, orphansCleanupCmd} {
		c.Flags().StringVar(&orphansApproval, "approval", "", "approval id")
		_ = c.MarkFlagRequired("approval")
	}
	orphansExpireCmd.Flags().DurationVar(&orphansOlderThan, "older-than", 0, "age threshold (default sync.orphan_pending_mins)")
	orphansCmd.AddCommand(orphansListCmd, orphansCleanupCmd, orphansExpireCmd)
	rootCmd.AddCommand(orphansCmd)
}
