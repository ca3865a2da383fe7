package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var credentialsUserID string

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage encrypted vendor credentials",
}

var credentialsRotateCmd = &cobra.Command{
	Use:   "rotate <service>",
	Short: "Store a new secret for a vendor, read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		secret, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && secret == "" {
			return eris.Wrap(err, "read secret from stdin")
		}

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		service := strings.ToLower(args[0])
		if err := env.Service.RotateCredential(ctx, credentialsUserID, service, strings.TrimSpace(secret)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rotated %s credential\n", service)
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List enrichment sources in resolved priority order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		sources, err := env.Service.ListSources(ctx)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-10s %-12s %-8s\n", "SOURCE", "PRIORITY", "ENABLED")
		for _, s := range sources {
			fmt.Fprintf(w, "%-10s %-12s %-8t\n", s.SourceName, s.Priority, s.IsEnabled)
		}
		return nil
	},
}

func init() {
	credentialsRotateCmd.Flags().StringVar(&credentialsUserID, "user", "cli", "acting user id for the audit log")
	credentialsCmd.AddCommand(credentialsRotateCmd)
	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(sourcesCmd)
}
