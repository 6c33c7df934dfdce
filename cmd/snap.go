package cmd

import (
	"github.com/spf13/cobra"
)

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Capture a photo and alert without face recognition",
	Long: `Takes one webcam photo and emails it, without checking who is in it.
Meant to be wired to the session unlock event. Runs within the snap cooldown of
the last capture are skipped before the camera is opened.

Like check, failures are logged and the exit status is always 0.`,
	Args: cobra.NoArgs,
	RunE: runSnapCmd,
}

func init() {
	rootCmd.AddCommand(snapCmd)

	snapCmd.Flags().Bool("no-cleanup", false, "Skip removing expired captures after the capture")
}

func runSnapCmd(cmd *cobra.Command, args []string) error {
	runSnap(cmd.Context(), cfg)

	if !mustGetBool(cmd, "no-cleanup") {
		runCleanup(cfg, cfg.Retention.Days)
	}
	return nil
}
