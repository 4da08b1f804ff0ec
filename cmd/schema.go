package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and invalidate cached CRM schemas",
}

var schemaFresh bool

var schemaShowCmd = &cobra.Command{
	Use:   "show <objectType>",
	Short: "Print the property and pipeline definitions of an object type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sc, err := initSchemas(initHubSpot(), st).GetSchema(ctx, args[0], !schemaFresh)
		if err != nil {
			return eris.Wrapf(err, "schema show %s", args[0])
		}
		return printJSON(cmd.OutOrStdout(), sc)
	},
}

var schemaInvalidateCmd = &cobra.Command{
	Use:   "invalidate [objectType]",
	Short: "Drop cached schemas of one object type, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		objectType := ""
		if len(args) == 1 {
			objectType = args[0]
		}
		initSchemas(initHubSpot(), st).Invalidate(ctx, objectType)

		if objectType == "" {
			objectType = "all object types"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Schema cache invalidated for %s (connection %s).\n", objectType, cfg.HubSpot.ConnectionID)
		return nil
	},
}

func init() {
	schemaShowCmd.Flags().BoolVar(&schemaFresh, "fresh", false, "bypass the cache and fetch from the CRM")
	schemaCmd.AddCommand(schemaShowCmd, schemaInvalidateCmd)
	rootCmd.AddCommand(schemaCmd)
}
