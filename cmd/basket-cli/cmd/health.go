package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that basket-server is up",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	status, err := newClient().Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", serverURL, status)
	return nil
}
