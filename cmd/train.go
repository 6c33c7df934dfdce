package cmd

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/cybereye/internal/facemodel"
	"github.com/kozaktomas/cybereye/internal/trainer"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the owner face model from the dataset directory",
	Long: `Reads every JPEG and PNG image in the dataset directory, detects the first
face in each one and fits the recognition model. Images without a detectable
face are skipped. The previous model is replaced.

Add photos with "cybereye enroll" or copy them into the dataset directory.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	detector, err := newDetector(cfg)
	if err != nil {
		return err
	}
	defer detector.Close()

	result, err := trainer.Train(detector, trainer.Options{
		DatasetDir:   cfg.Paths.DatasetDir,
		ModelFile:    cfg.Paths.ModelFile,
		OwnerID:      cfg.Recognition.OwnerID,
		MinFaceSize:  cfg.Detection.TrainMinFaceSize,
		MaxDimension: cfg.Detection.MaxTrainDimension,
		Params:       facemodel.DefaultParams(),
		Progress:     os.Stdout,
	})
	if result != nil {
		for _, name := range slices.Sorted(maps.Keys(result.Skipped)) {
			fmt.Printf("[!] %s: %s\n", name, result.Skipped[name])
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("Training complete. Model saved to %s\n", result.ModelFile)
	fmt.Printf("  Images: %d\n", result.Found)
	fmt.Printf("  Face samples: %d\n", result.Samples)
	return nil
}
