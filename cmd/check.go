package cmd

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Capture a photo and alert if the owner is not recognized",
	Long: `Takes one webcam photo and runs face recognition against the trained model.

If no face is found, or none of the faces is the owner, the photo is saved to
the capture directory and emailed together with an approximate location. A new
alert within the cooldown of the previous capture is saved but not emailed.

Problems (missing model, busy camera, SMTP errors) are logged and the command
still exits with status 0, so it is safe to call from an unlock hook.

Examples:
  # Run once with the configured threshold
  cybereye check

  # Stricter matching, keep old captures
  cybereye check --threshold 45 --no-cleanup`,
	Args: cobra.NoArgs,
	RunE: runCheckCmd,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().Float64("threshold", 0, "Override the recognition threshold (lower is stricter)")
	checkCmd.Flags().Bool("no-cleanup", false, "Skip removing expired captures after the check")
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	if threshold := mustGetFloat64(cmd, "threshold"); threshold > 0 {
		cfg.Recognition.Threshold = threshold
	}

	runCheck(cmd.Context(), cfg)

	if !mustGetBool(cmd, "no-cleanup") {
		runCleanup(cfg, cfg.Retention.Days)
	}
	return nil
}
