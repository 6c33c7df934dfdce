package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/cybereye/internal/vision"
	"github.com/kozaktomas/cybereye/internal/vision/opencv"
)

var cameraTestCmd = &cobra.Command{
	Use:   "camera-test",
	Short: "Show a live camera preview to check the device works",
	Long:  `Opens the configured camera and shows a live preview. Press q to quit.`,
	Args:  cobra.NoArgs,
	RunE:  runCameraTest,
}

func init() {
	rootCmd.AddCommand(cameraTestCmd)

	cameraTestCmd.Flags().Int("index", -1, "Camera index to open (default from config)")
}

func runCameraTest(cmd *cobra.Command, args []string) error {
	index := mustGetInt(cmd, "index")
	if index < 0 {
		index = cfg.Camera.Index
	}

	cam, err := opencv.OpenCamera(index)
	if err != nil {
		return fmt.Errorf("%w, check that no other application is using it", err)
	}
	defer cam.Close()

	window := opencv.NewWindow("Camera Test - Press q to quit")
	defer window.Close()

	shown, err := vision.Live(cam, window, fmt.Sprintf("Camera %d", index))
	fmt.Printf("Camera %d delivered %d frame(s)\n", index, shown)
	return err
}
