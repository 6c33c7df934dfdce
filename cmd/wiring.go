package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/kozaktomas/cybereye/internal/captures"
	"github.com/kozaktomas/cybereye/internal/config"
	"github.com/kozaktomas/cybereye/internal/constants"
	"github.com/kozaktomas/cybereye/internal/facemodel"
	"github.com/kozaktomas/cybereye/internal/geo"
	"github.com/kozaktomas/cybereye/internal/guard"
	"github.com/kozaktomas/cybereye/internal/notify"
	"github.com/kozaktomas/cybereye/internal/vision"
	"github.com/kozaktomas/cybereye/internal/vision/opencv"
)

// cameraOpener returns a function opening the configured capture device.
func cameraOpener(cfg *config.Config) func() (vision.Camera, error) {
	return func() (vision.Camera, error) {
		return opencv.OpenCamera(cfg.Camera.Index)
	}
}

func newDetector(cfg *config.Config) (*opencv.FaceDetector, error) {
	return opencv.NewFaceDetector(cfg.Paths.CascadeFile, cfg.Detection.ScaleFactor, cfg.Detection.MinNeighbors)
}

func grabOptions(cfg *config.Config, warmupFrames int) vision.GrabOptions {
	return vision.GrabOptions{
		SettleDelay:    cfg.Camera.SettleDelay,
		WarmupFrames:   warmupFrames,
		WarmupInterval: cfg.Camera.WarmupInterval,
	}
}

func modelLoader(cfg *config.Config) guard.ModelLoader {
	return func() (guard.Predictor, error) {
		model, err := facemodel.Load(cfg.Paths.ModelFile)
		if err != nil {
			return nil, err
		}
		return model, nil
	}
}

// unknownLocation is used when geolocation is turned off.
type unknownLocation struct{}

func (unknownLocation) Describe(context.Context) string {
	return constants.LocationUnavailable
}

func newLocator(cfg *config.Config) guard.Locator {
	if !cfg.Geolocation.Enabled {
		return unknownLocation{}
	}
	return geo.NewClient(cfg.Geolocation.URL, cfg.Geolocation.Token, cfg.Geolocation.Timeout)
}

func newGuard(cfg *config.Config, detector vision.Detector) *guard.Guard {
	return guard.New(
		cameraOpener(cfg),
		detector,
		captures.NewStore(cfg.Paths.CaptureDir),
		notify.NewMailer(cfg.Email),
		newLocator(cfg),
	)
}

func checkOptions(cfg *config.Config) guard.CheckOptions {
	return guard.CheckOptions{
		OwnerID:     cfg.Recognition.OwnerID,
		Threshold:   cfg.Recognition.Threshold,
		Cooldown:    cfg.Alert.Cooldown,
		MinFaceSize: cfg.Detection.MinFaceSize,
		Subject:     cfg.Alert.Subject,
		Grab:        grabOptions(cfg, cfg.Camera.WarmupFrames),
	}
}

// runCheck performs one recognition run. Failures are logged, not returned:
// there is nobody to report them to when triggered by a hook or schedule.
func runCheck(ctx context.Context, cfg *config.Config) *guard.Outcome {
	detector, err := newDetector(cfg)
	if err != nil {
		slog.Error("Face detector unavailable", "error", err)
		return nil
	}
	defer detector.Close()

	out, err := newGuard(cfg, detector).Check(ctx, modelLoader(cfg), checkOptions(cfg))
	if err != nil {
		slog.Error("Recognition run failed", "error", err)
		return out
	}
	logOutcome(out)
	return out
}

func runSnap(ctx context.Context, cfg *config.Config) *guard.Outcome {
	out, err := newGuard(cfg, nil).Snap(ctx, guard.SnapOptions{
		Cooldown: cfg.Alert.SnapCooldown,
		Subject:  cfg.Alert.SnapSubject,
		Grab:     grabOptions(cfg, cfg.Alert.SnapWarmupFrames),
	})
	if err != nil {
		slog.Error("Capture failed", "error", err)
		return out
	}
	logOutcome(out)
	return out
}

// runCleanup prunes the capture directory, logging failures.
func runCleanup(cfg *config.Config, days int) captures.PruneReport {
	report, err := captures.NewStore(cfg.Paths.CaptureDir).Prune(time.Now(), days)
	if err != nil {
		slog.Error("Cleanup failed", "error", err)
		return report
	}
	slog.Info("Cleanup finished", "deleted", len(report.Deleted), "kept", report.Kept, "failed", len(report.Failed))
	return report
}

func logOutcome(out *guard.Outcome) {
	attrs := []any{"verdict", out.Verdict, "faces", len(out.Faces)}
	if out.CapturePath != "" {
		attrs = append(attrs, "capture", out.CapturePath)
	}
	if out.IncidentID != "" {
		attrs = append(attrs, "incident", out.IncidentID)
	}
	attrs = append(attrs, "suppressed", out.Suppressed, "emailed", out.Emailed)
	slog.Info("Run finished", attrs...)
}
