package main

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealsync/internal/mapper"
	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/internal/syncer"
)

var (
	syncFile       string
	syncDealID     string
	syncFields     []string
	syncApproval   string
	syncTranscript string
)

// syncOutput is the printed result of one sync.
type syncOutput struct {
	ApprovalID string `json:"approval_id"`
	model.SyncResult
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Write an approved extraction to the CRM",
	Long: "Finds or creates the company and contact, creates a deal or updates --deal-id, and syncs follow-up tasks. " +
		"Every CRM mutation is recorded in the audit ledger under the approval id.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(); err != nil {
			return err
		}

		ext, err := readExtraction(syncFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		transcript, err := readTranscript(syncTranscript)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		crm := initHubSpot()
		orch := syncer.New(crm, mapper.New(initSchemas(crm, st)), initMerger(), st, syncer.Config{
			ConnectionID:           cfg.HubSpot.ConnectionID,
			PlaceholderEmailDomain: cfg.Sync.PlaceholderEmailDomain,
			TaskDueDays:            cfg.Sync.TaskDueDays,
		})

		approvalID := syncApproval
		if approvalID == "" {
			approvalID = uuid.NewString()
		}
		req := syncer.Request{
			ApprovalID:    approvalID,
			Extraction:    ext,
			Target:        model.SyncTarget{DealID: syncDealID, IsNewDeal: syncDealID == ""},
			AllowedFields: splitFields(syncFields),
			Transcript:    transcript,
		}

		res := orch.SyncExtraction(ctx, req)
		if err := printJSON(cmd.OutOrStdout(), syncOutput{ApprovalID: approvalID, SyncResult: res}); err != nil {
			return err
		}
		if !res.Success {
			zap.L().Error("sync failed", zap.String("approval_id", approvalID), zap.String("code", string(res.ErrorCode)))
			return eris.Errorf("sync failed: %s", res.ErrorCode)
		}
		return nil
	},
}

func readTranscript(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read transcript %s", path)
	}
	return string(b), nil
}

// splitFields accepts repeated and comma-separated --fields values.
func splitFields(values []string) []string {
	var out []string
	for _, v := range values {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}

func init() {
	syncCmd.Flags().StringVar(&syncFile, "file", "", "extraction JSON file (- for stdin)")
	syncCmd.Flags().StringVar(&syncDealID, "deal-id", "", "update this existing deal instead of creating one")
	syncCmd.Flags().StringSliceVar(&syncFields, "fields", nil, "deal properties the user approved for update")
	syncCmd.Flags().StringVar(&syncApproval, "approval", "", "approval id for the audit trail (generated when empty)")
	syncCmd.Flags().StringVar(&syncTranscript, "transcript", "", "call transcript file used by assisted merge")
	_ = syncCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(syncCmd)
}
