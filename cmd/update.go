package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgearmory/armory/pkg/types"
)

var (
	updateCmdURL     string
	updateCmdPrefix  string
	updateCmdTimeout float64
	updateCmdMount   bool
)

var updateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Update a backend's configuration",
	Long: "Update one or more settings of a registered backend.\n" +
		"Only the flags you supply are changed. Changing the URL, prefix or timeout\n" +
		"of an enabled backend reconnects it and refreshes its tools.",
	Args: cobra.ExactArgs(1),
	RunE: runUpdateBackend,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "4",
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateCmdURL, "url", "", "New URL of the backend MCP server")
	updateCmd.Flags().StringVar(&updateCmdPrefix, "prefix", "", "New tool-name prefix for the backend")
	updateCmd.Flags().Float64Var(&updateCmdTimeout, "timeout", 0, "New per-call timeout in seconds")
	updateCmd.Flags().BoolVar(&updateCmdMount, "mount", true, "Whether the backend is exposed on its own mount endpoint")

	rootCmd.AddCommand(updateCmd)
}

func runUpdateBackend(cmd *cobra.Command, args []string) error {
	input := &types.UpdateBackendInput{}
	if cmd.Flags().Changed("url") {
		input.URL = &updateCmdURL
	}
	if cmd.Flags().Changed("prefix") {
		input.Prefix = &updateCmdPrefix
	}
	if cmd.Flags().Changed("timeout") {
		input.Timeout = &updateCmdTimeout
	}
	if cmd.Flags().Changed("mount") {
		input.MountEnabled = &updateCmdMount
	}

	backend, err := apiClient.UpdateBackend(args[0], input)
	if err != nil {
		return fmt.Errorf("failed to update backend '%s': %w", args[0], err)
	}

	cmd.Printf("Backend '%s' updated successfully\n", backend.Name)
	cmd.Printf("   url: %s\n", backend.URL)
	cmd.Printf("   prefix: %s\n", backend.EffectivePrefix)
	cmd.Printf("   timeout: %gs\n", backend.Timeout)
	return nil
}
