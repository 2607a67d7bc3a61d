package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	usageCmdBackend string
	usageCmdTool    string
	usageCmdLimit   int
	usageCmdStats   bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show recorded tool calls and usage statistics",
	Long: "Show the most recent tool calls recorded by the gateway.\n" +
		"Use --stats to show aggregate statistics (success rate, latency percentiles) instead.",
	RunE: runUsage,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "5",
	},
}

func init() {
	usageCmd.Flags().StringVar(&usageCmdBackend, "backend", "", "Only include calls to this backend")
	usageCmd.Flags().StringVar(&usageCmdTool, "tool", "", "Only include calls to this tool (original name)")
	usageCmd.Flags().IntVar(&usageCmdLimit, "limit", 20, "Maximum number of calls to show")
	usageCmd.Flags().BoolVar(&usageCmdStats, "stats", false, "Show aggregate statistics instead of individual calls")

	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	if usageCmdStats {
		return runUsageStats(cmd)
	}

	list, err := apiClient.ListToolCalls(usageCmdBackend, usageCmdTool, usageCmdLimit)
	if err != nil {
		return fmt.Errorf("failed to list tool calls: %w", err)
	}
	if list.Total == 0 {
		cmd.Println("No tool calls recorded")
		return nil
	}

	cmd.Printf("Showing %d of %d recorded call(s), newest first:\n\n", len(list.Calls), list.Total)
	for _, c := range list.Calls {
		status := "ok"
		if !c.Success {
			status = "FAILED"
		}
		cmd.Printf("%s  %s/%s  %dms  [%s]\n", c.CalledAt.Format("2006-01-02 15:04:05"), c.BackendName, c.ToolName, c.LatencyMs, status)
		if c.ErrorMessage != "" {
			cmd.Println("    " + c.ErrorMessage)
		}
	}
	return nil
}

func runUsageStats(cmd *cobra.Command) error {
	stats, err := apiClient.CallStats(usageCmdBackend, usageCmdTool)
	if err != nil {
		return fmt.Errorf("failed to get call stats: %w", err)
	}
	if stats.TotalCalls == 0 {
		cmd.Println("No tool calls recorded")
		return nil
	}

	cmd.Printf("Total calls:   %d\n", stats.TotalCalls)
	cmd.Printf("Succeeded:     %d\n", stats.SuccessCount)
	cmd.Printf("Failed:        %d\n", stats.ErrorCount)
	cmd.Printf("Success rate:  %.1f%%\n", stats.SuccessRate*100)
	cmd.Println()
	cmd.Printf("Latency (ms):  avg=%.1f min=%d max=%d\n", stats.AvgLatencyMs, stats.MinLatencyMs, stats.MaxLatencyMs)
	cmd.Printf("Percentiles:   p50=%d p95=%d p99=%d\n", stats.P50LatencyMs, stats.P95LatencyMs, stats.P99LatencyMs)
	return nil
}
