package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh <name>",
	Short: "Refresh a backend's tools",
	Long: "Re-query a backend MCP server for its current tool list and replace the\n" +
		"backend's tools in the catalog with the fresh set.",
	Args: cobra.ExactArgs(1),
	RunE: runRefreshBackend,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "3",
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefreshBackend(cmd *cobra.Command, args []string) error {
	result, err := apiClient.RefreshBackend(args[0])
	if err != nil {
		return fmt.Errorf("failed to refresh backend '%s': %w", args[0], err)
	}

	cmd.Printf("Backend '%s' refreshed, %d tool(s) available:\n", result.BackendName, result.ToolCount)
	for _, name := range result.Tools {
		cmd.Println("  " + name)
	}
	return nil
}
