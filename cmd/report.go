package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/pipeline"
)

var (
	reportCompanyID string
	reportUserID    string
	reportTier      string
	reportOut       string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate an Enhanced or BI report for a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "report")
		if err != nil {
			return err
		}
		defer env.Close()

		r, company, err := env.Service.GenerateReport(ctx, pipeline.ReportRequest{
			CompanyID: reportCompanyID,
			UserID:    reportUserID,
			Tier:      reportTier,
		})
		if err != nil {
			return err
		}

		zap.L().Info("report generated",
			zap.String("report_id", r.ID),
			zap.String("company", company.Name),
			zap.String("tier", string(r.Tier)),
			zap.Int("fallback_sections", len(r.ContentJSON.FallbackSections)),
		)

		if reportOut == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s report %s generated for %s\n", r.Tier.Label(), r.ID, company.Name)
			return nil
		}
		if err := os.WriteFile(reportOut, []byte(r.ContentHTML), 0o644); err != nil {
			return eris.Wrap(err, "write report html")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", reportOut, humanize.Bytes(uint64(len(r.ContentHTML))))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportCompanyID, "company", "", "company id (required)")
	reportCmd.Flags().StringVar(&reportUserID, "user", "", "requesting user id; must own the company's search (required)")
	reportCmd.Flags().StringVar(&reportTier, "tier", "ENHANCED", "report tier: ENHANCED or BI")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "write the rendered HTML to this file")
	_ = reportCmd.MarkFlagRequired("company")
	_ = reportCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(reportCmd)
}
