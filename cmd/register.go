package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forgearmory/armory/internal/config"
	"github.com/forgearmory/armory/pkg/types"
)

var (
	registerCmdName     string
	registerCmdURL      string
	registerCmdPrefix   string
	registerCmdTimeout  float64
	registerCmdDisabled bool
	registerCmdNoMount  bool
	registerCmdConfig   string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register one or more MCP backends with the gateway",
	Long: "Register a backend MCP server with the gateway.\n" +
		"The gateway connects to the backend, fetches its tools and adds them to the unified catalog.\n\n" +
		"Supply --name and --url for a single backend, or --conf with a YAML file declaring several.",
	RunE: runRegisterBackend,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "2",
	},
}

var deregisterCmd = &cobra.Command{
	Use:   "deregister <name>",
	Short: "Deregister a backend from the gateway",
	Long: "Deregister a backend MCP server from the gateway.\n" +
		"All of its tools are removed from the unified catalog and its rows are deleted.",
	Args: cobra.ExactArgs(1),
	RunE: runDeregisterBackend,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "3",
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerCmdName, "name", "", "Name of the backend")
	registerCmd.Flags().StringVar(&registerCmdURL, "url", "", "URL of the backend MCP server")
	registerCmd.Flags().StringVar(
		&registerCmdPrefix,
		"prefix",
		"",
		"Prefix applied to the backend's tool names in the catalog (defaults to the backend name)",
	)
	registerCmd.Flags().Float64Var(
		&registerCmdTimeout,
		"timeout",
		0,
		"Per-call timeout in seconds for this backend",
	)
	registerCmd.Flags().BoolVar(&registerCmdDisabled, "disabled", false, "Register the backend without connecting to it")
	registerCmd.Flags().BoolVar(&registerCmdNoMount, "no-mount", false, "Do not expose the backend on its own mount endpoint")
	registerCmd.Flags().StringVarP(
		&registerCmdConfig,
		"conf",
		"c",
		"",
		"Path to a YAML configuration file declaring backends to register",
	)

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(deregisterCmd)
}

func runRegisterBackend(cmd *cobra.Command, args []string) error {
	if registerCmdConfig != "" {
		return registerFromConfig(cmd, registerCmdConfig)
	}
	if registerCmdName == "" || registerCmdURL == "" {
		return fmt.Errorf("either --conf or both --name and --url must be supplied")
	}

	input := &types.CreateBackendInput{
		Name:   registerCmdName,
		URL:    registerCmdURL,
		Prefix: registerCmdPrefix,
	}
	if registerCmdTimeout > 0 {
		input.Timeout = registerCmdTimeout
	}
	if registerCmdDisabled {
		enabled := false
		input.Enabled = &enabled
	}
	if registerCmdNoMount {
		mountEnabled := false
		input.MountEnabled = &mountEnabled
	}

	backend, err := apiClient.RegisterBackend(input)
	if err != nil {
		return fmt.Errorf("failed to register backend: %w", err)
	}

	printRegistered(cmd, backend)
	return nil
}

func registerFromConfig(cmd *cobra.Command, path string) error {
	file, err := config.Load(afero.NewOsFs(), path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	for i := range file.Backends {
		backend, err := apiClient.RegisterBackend(&file.Backends[i])
		if err != nil {
			return fmt.Errorf("failed to register backend '%s': %w", file.Backends[i].Name, err)
		}
		printRegistered(cmd, backend)
	}
	return nil
}

func printRegistered(cmd *cobra.Command, backend *types.Backend) {
	cmd.Printf("Backend '%s' registered successfully!\n", backend.Name)
	if !backend.Enabled {
		cmd.Println("The backend is disabled. Enable it to expose its tools.")
		return
	}
	cmd.Printf(
		"Its tools are now available in the catalog under the prefix '%s__'\n",
		backend.EffectivePrefix,
	)
	if backend.ToolCount > 0 {
		cmd.Printf("%d tool(s) fetched\n", backend.ToolCount)
	}
}

func runDeregisterBackend(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := apiClient.DeregisterBackend(name); err != nil {
		return fmt.Errorf("failed to deregister backend '%s': %w", name, err)
	}
	cmd.Printf("Backend '%s' deregistered, its tools are no longer available\n", name)
	return nil
}
