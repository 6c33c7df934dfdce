package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/cybereye/internal/schedule"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run check periodically and cleanup once a day",
	Long: `Keeps running and triggers a recognition check at a fixed interval and the
retention cleanup once a day. Only one job runs at a time. Stops on SIGINT or
SIGTERM.

Examples:
  cybereye daemon
  cybereye daemon --every 30s --cleanup-at 04:15`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().Duration("every", time.Minute, "Interval between recognition checks")
	daemonCmd.Flags().String("cleanup-at", "03:00", "Time of day (HH:MM) for the retention cleanup")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	d := schedule.New(time.Local)

	if err := d.Every("check", mustGetDuration(cmd, "every"), func(ctx context.Context) {
		runCheck(ctx, cfg)
	}); err != nil {
		return err
	}
	if err := d.DailyAt("cleanup", mustGetString(cmd, "cleanup-at"), func(context.Context) {
		runCleanup(cfg, cfg.Retention.Days)
	}); err != nil {
		return err
	}

	return d.Run(cmd.Context())
}
