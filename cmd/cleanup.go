package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete captures older than the retention window",
	Long: `Removes files in the capture directory whose modification time is older
than the retention window. Each file is handled on its own; failures are
logged and do not stop the run.

Examples:
  cybereye cleanup
  cybereye cleanup --days 30 --json`,
	Args: cobra.NoArgs,
	RunE: runCleanupCmd,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().Int("days", 0, "Retention window in days (default from config)")
	cleanupCmd.Flags().Bool("json", false, "Output the result as JSON")
}

// CleanupResult represents the result of a cleanup run
type CleanupResult struct {
	Cutoff  string   `json:"cutoff"`
	Scanned int      `json:"scanned"`
	Deleted []string `json:"deleted"`
	Kept    int      `json:"kept"`
	Failed  int      `json:"failed"`
}

func runCleanupCmd(cmd *cobra.Command, args []string) error {
	days := mustGetInt(cmd, "days")
	if days <= 0 {
		days = cfg.Retention.Days
	}

	report := runCleanup(cfg, days)

	if !mustGetBool(cmd, "json") {
		return nil
	}
	result := CleanupResult{
		Cutoff:  report.Cutoff.Format("2006-01-02 15:04:05"),
		Scanned: report.Scanned,
		Deleted: report.Deleted,
		Kept:    report.Kept,
		Failed:  len(report.Failed),
	}
	if result.Deleted == nil {
		result.Deleted = []string{}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
