package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/cybereye/internal/config"
	"github.com/kozaktomas/cybereye/internal/logging"
)

var (
	configPath string
	logFile    string
	debug      bool

	cfg      *config.Config
	closeLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "cybereye",
	Short: "Webcam intrusion alerts for your laptop",
	Long: `CyberEye takes a webcam photo when triggered (manually, from an unlock
hook or on a schedule), checks it against the enrolled owner's face and emails
the photo with an approximate location when someone else is at the keyboard.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		closeLog()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $CYBEREYE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append log lines to this file instead of the configured one")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if logFile != "" {
		cfg.Paths.LogFile = logFile
	}

	_, closeFn, err := logging.Setup(cfg.Paths.LogFile, debug)
	closeLog = closeFn
	if err != nil {
		slog.Warn("Could not open log file, logging to stdout only", "path", cfg.Paths.LogFile, "error", err)
	}
	return nil
}
