package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities in the gateway",
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "4",
	},
}

var listBackendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List all registered backends",
	RunE:  runListBackends,
}

var listToolsCmdBackend string

var listToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List tools in the unified catalog",
	Long: "List the tools currently available in the unified catalog.\n" +
		"Use --backend to list only a single backend's tools.",
	RunE: runListTools,
}

func init() {
	listToolsCmd.Flags().StringVar(
		&listToolsCmdBackend,
		"backend",
		"",
		"Only list tools belonging to this backend",
	)

	listCmd.AddCommand(listBackendsCmd)
	listCmd.AddCommand(listToolsCmd)

	rootCmd.AddCommand(listCmd)
}

func runListBackends(cmd *cobra.Command, args []string) error {
	backends, err := apiClient.ListBackends()
	if err != nil {
		return fmt.Errorf("failed to list backends: %w", err)
	}
	if len(backends) == 0 {
		cmd.Println("No backends registered in the gateway")
		return nil
	}

	for i, b := range backends {
		state := b.ConnectionState
		if !b.Enabled {
			state = "disabled"
		}
		cmd.Printf("%d. %s [%s]\n", i+1, b.Name, state)
		cmd.Printf("   url: %s\n", b.URL)
		cmd.Printf("   prefix: %s\n", b.EffectivePrefix)
		cmd.Printf("   tools: %d\n", b.ToolCount)
		cmd.Println()
	}

	return nil
}

func runListTools(cmd *cobra.Command, args []string) error {
	tools, err := apiClient.ListTools(listToolsCmdBackend)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	if len(tools) == 0 {
		cmd.Println("No tools available in the catalog")
		return nil
	}

	for i, t := range tools {
		cmd.Printf("%d. %s\n", i+1, t.PrefixedName)
		if t.Description != "" {
			cmd.Println("   " + t.Description)
		}
		cmd.Println()
	}

	cmd.Println("Call a tool through the gateway using its full name shown above.")
	return nil
}
