package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealsync/internal/model"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the CRM mutation audit ledger",
}

var (
	auditApproval string
	auditTable    bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the audit records of one approval",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListAuditRecords(ctx, auditApproval)
		if err != nil {
			return eris.Wrap(err, "audit list")
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No audit records found.")
			return nil
		}
		if auditTable {
			formatAuditTable(cmd.OutOrStdout(), records)
			return nil
		}
		return printJSON(cmd.OutOrStdout(), records)
	},
}

func formatAuditTable(w io.Writer, records []model.AuditRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tACTION\tSTATUS\tRESOURCE\tRETRIES\tERROR")
	for _, r := range records {
		resource := r.ResourceType
		if r.ResourceID != "" {
			resource += "/" + r.ResourceID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime),
			r.Action, r.Status, resource, r.RetryCount, truncate(r.Error, 60))
	}
	tw.Flush() //nolint:errcheck
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	auditListCmd.Flags().StringVar(&auditApproval, "approval", "", "approval id")
	auditListCmd.Flags().BoolVar(&auditTable, "table", false, "print a table instead of JSON")
	_ = auditListCmd.MarkFlagRequired("approval")
	auditCmd.AddCommand(auditListCmd)
	rootCmd.AddCommand(auditCmd)
}
