// Package cmd contains the Forge Armory command line interface.
package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/forgearmory/armory/client"
	"github.com/forgearmory/armory/pkg/version"
	"github.com/spf13/cobra"
)

const (
	GatewayURLEnvVar  = "ARMORY_URL"
	GatewayURLDefault = "http://127.0.0.1:8080"
)

type subCommandGroup string

const (
	subCommandGroupBasic    subCommandGroup = "Basic Commands"
	subCommandGroupAdvanced subCommandGroup = "Advanced Commands"
)

const asciiArt = `
  _____                       _
 |  ___|__  _ __ __ _  ___   / \   _ __ _ __ ___   ___  _ __ _   _
 | |_ / _ \| '__/ _' |/ _ \ / _ \ | '__| '_ ' _ \ / _ \| '__| | | |
 |  _| (_) | | | (_| |  __// ___ \| |  | | | | | | (_) | |  | |_| |
 |_|  \___/|_|  \__, |\___/_/   \_\_|  |_| |_| |_|\___/|_|   \__, |
                |___/                                        |___/
`

var gatewayURL string

// apiClient is used by all subcommands that talk to a running gateway.
var apiClient *client.Client

var rootCmd = &cobra.Command{
	Use:     "armory",
	Short:   "Forge Armory lets you use multiple MCP servers as one",
	Long:    "Forge Armory is a gateway that aggregates tools from multiple MCP servers\nand exposes them to MCP clients as a single unified catalog.",
	Version: version.GetVersion(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		u := gatewayURL
		if u == "" {
			u = os.Getenv(GatewayURLEnvVar)
		}
		if u == "" {
			u = GatewayURLDefault
		}
		apiClient = client.NewClient(u, http.DefaultClient)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&gatewayURL,
		"gateway",
		"",
		fmt.Sprintf("Base URL of the Forge Armory server (overrides env var %s)", GatewayURLEnvVar),
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
