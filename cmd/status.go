package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/cybereye/internal/captures"
	"github.com/kozaktomas/cybereye/internal/facemodel"
	"github.com/kozaktomas/cybereye/internal/guard"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show model, capture and cooldown state",
	Long: `Prints the trained model summary, the number of saved captures, the time of
the most recent one and whether an alert raised now would be suppressed.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Bool("json", false, "Output as JSON")
}

// StatusResult represents the current state on disk
type StatusResult struct {
	ModelFile      string     `json:"model_file"`
	ModelTrained   bool       `json:"model_trained"`
	ModelSamples   int        `json:"model_samples,omitempty"`
	ModelBuilt     *time.Time `json:"model_built,omitempty"`
	CaptureDir     string     `json:"capture_dir"`
	Captures       int        `json:"captures"`
	LastCapture    *time.Time `json:"last_capture,omitempty"`
	CheckCooldown  bool       `json:"check_cooldown_active"`
	SnapCooldown   bool       `json:"snap_cooldown_active"`
	EmailEnabled   bool       `json:"email_enabled"`
	RetentionDays  int        `json:"retention_days"`
	GeolocationURL string     `json:"geolocation_url,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	result := StatusResult{
		ModelFile:     cfg.Paths.ModelFile,
		EmailEnabled:  cfg.Email.Enabled(),
		RetentionDays: cfg.Retention.Days,
	}
	if cfg.Geolocation.Enabled {
		result.GeolocationURL = cfg.Geolocation.URL
	}

	meta, err := facemodel.LoadMetadata(cfg.Paths.ModelFile)
	switch {
	case err == nil:
		result.ModelTrained = true
		result.ModelSamples = meta.SampleCount
		result.ModelBuilt = &meta.BuildTime
	case errors.Is(err, facemodel.ErrModelNotFound):
	default:
		return err
	}

	store := captures.NewStore(cfg.Paths.CaptureDir)
	result.CaptureDir = store.Dir()
	list, err := store.List()
	if err != nil {
		return err
	}
	result.Captures = len(list)
	if len(list) > 0 {
		last := list[len(list)-1].ModTime
		now := time.Now()
		result.LastCapture = &last
		result.CheckCooldown = guard.CooldownActive(last, true, now, cfg.Alert.Cooldown)
		result.SnapCooldown = guard.CooldownActive(last, true, now, cfg.Alert.SnapCooldown)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("Model: %s\n", result.ModelFile)
	if result.ModelTrained {
		fmt.Printf("  Samples: %d\n", result.ModelSamples)
		fmt.Printf("  Built:   %s\n", result.ModelBuilt.Local().Format(time.DateTime))
	} else {
		fmt.Println("  Not trained, run: cybereye train")
	}
	fmt.Printf("Captures: %s\n", result.CaptureDir)
	fmt.Printf("  Count: %d\n", result.Captures)
	if result.LastCapture != nil {
		fmt.Printf("  Last:  %s\n", result.LastCapture.Format(time.DateTime))
	}
	fmt.Printf("  Check cooldown active: %v\n", result.CheckCooldown)
	fmt.Printf("  Snap cooldown active:  %v\n", result.SnapCooldown)
	fmt.Printf("Email alerts: %v\n", result.EmailEnabled)
	fmt.Printf("Retention: %d days\n", result.RetentionDays)
	return nil
}
