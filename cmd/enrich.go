package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/pipeline"
)

var (
	enrichCompanyID string
	enrichUserID    string
	enrichProviders []string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich one company from the configured vendors",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		company, err := env.Service.Enrich(ctx, pipeline.EnrichRequest{
			CompanyID: enrichCompanyID,
			UserID:    enrichUserID,
			Providers: enrichProviders,
		})
		if err != nil {
			return err
		}

		e := company.EnrichmentData
		zap.L().Info("enrichment complete",
			zap.String("company_id", company.ID),
			zap.Strings("fields", e.FieldNames()),
			zap.Float64("confidence", e.Confidence),
		)

		out, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichCompanyID, "company", "", "company id (required)")
	enrichCmd.Flags().StringVar(&enrichUserID, "user", "", "acting user id for the audit log")
	enrichCmd.Flags().StringSliceVar(&enrichProviders, "providers", nil, "override the vendor order (e.g. hunter,apollo)")
	_ = enrichCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(enrichCmd)
}
