package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a backend",
	Long: "Enable a disabled backend.\n" +
		"The gateway connects to it, refreshes its tools and adds them back to the catalog.",
	Args: cobra.ExactArgs(1),
	RunE: runEnableBackend,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "1",
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a backend",
	Long: "Disable a backend without deregistering it.\n" +
		"Its tools disappear from the catalog but its configuration and call history are kept.",
	Args: cobra.ExactArgs(1),
	RunE: runDisableBackend,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "2",
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

func runEnableBackend(cmd *cobra.Command, args []string) error {
	backend, err := apiClient.EnableBackend(args[0])
	if err != nil {
		return fmt.Errorf("failed to enable backend '%s': %w", args[0], err)
	}
	cmd.Printf("Backend '%s' is enabled, %d tool(s) available\n", backend.Name, backend.ToolCount)
	return nil
}

func runDisableBackend(cmd *cobra.Command, args []string) error {
	backend, err := apiClient.DisableBackend(args[0])
	if err != nil {
		return fmt.Errorf("failed to disable backend '%s': %w", args[0], err)
	}
	cmd.Printf("Backend '%s' is disabled, its tools are no longer served\n", backend.Name)
	return nil
}
