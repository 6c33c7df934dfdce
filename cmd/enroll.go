package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/cybereye/internal/enroll"
	"github.com/kozaktomas/cybereye/internal/vision/opencv"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Capture owner face samples from the webcam",
	Long: `Opens a preview window. Press SPACE to save the detected face as a
training sample, ESC to stop early. Run "cybereye train" afterwards.`,
	Args: cobra.NoArgs,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int("count", 0, "Number of samples to capture (default from config)")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	target := mustGetInt(cmd, "count")
	if target <= 0 {
		target = cfg.Enrollment.TargetCount
	}

	cam, err := opencv.OpenCamera(cfg.Camera.Index)
	if err != nil {
		return err
	}
	defer cam.Close()

	detector, err := newDetector(cfg)
	if err != nil {
		return err
	}
	defer detector.Close()

	window := opencv.NewWindow("Enrollment - Press SPACE to capture")
	defer window.Close()

	result, err := enroll.Run(cam, detector, window, enroll.Options{
		DatasetDir:  cfg.Paths.DatasetDir,
		OwnerID:     cfg.Recognition.OwnerID,
		TargetCount: target,
	})
	if errors.Is(err, enroll.ErrCancelled) {
		fmt.Printf("Enrollment cancelled, %d sample(s) saved\n", len(result.Saved))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Captured %d sample(s) in %s\n", len(result.Saved), cfg.Paths.DatasetDir)
	return nil
}
