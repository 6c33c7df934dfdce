// Package guard decides whether the person in front of the camera is the
// owner and raises intrusion alerts, subject to a cooldown.
package guard

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/cybereye/internal/facemodel"
	"github.com/kozaktomas/cybereye/internal/imaging"
	"github.com/kozaktomas/cybereye/internal/notify"
	"github.com/kozaktomas/cybereye/internal/vision"
)

// Verdict is the outcome of classifying one frame.
type Verdict string

const (
	VerdictOwner    Verdict = "owner"
	VerdictStranger Verdict = "stranger"
	// VerdictUnchecked is used by snap, which captures without recognition.
	VerdictUnchecked Verdict = "unchecked"
)

// Predictor classifies a cropped grayscale face.
type Predictor interface {
	Predict(face *image.Gray) (facemodel.Prediction, error)
}

// ModelLoader loads the trained face model.
type ModelLoader func() (Predictor, error)

// Store is the capture directory as seen by the alert routine.
type Store interface {
	LastCaptureTime() (time.Time, bool, error)
	Save(frame image.Image, t time.Time) (string, error)
}

// Notifier delivers alert emails.
type Notifier interface {
	Enabled() bool
	Recipient() string
	Send(ctx context.Context, a notify.Alert) error
}

// Locator describes the current approximate location. It never fails; an
// unknown location is reported as a placeholder string.
type Locator interface {
	Describe(ctx context.Context) string
}

// CheckOptions configures one recognition run.
type CheckOptions struct {
	OwnerID     int
	Threshold   float64 // inclusive upper bound on confidence for the owner
	Cooldown    time.Duration
	MinFaceSize int
	Subject     string
	Grab        vision.GrabOptions
}

// SnapOptions configures one unconditional capture.
type SnapOptions struct {
	Cooldown time.Duration
	Subject  string
	Grab     vision.GrabOptions
}

// FaceResult is the prediction for one detected face.
type FaceResult struct {
	Rect       image.Rectangle
	Prediction facemodel.Prediction
	Err        error
}

// Outcome describes what a run did.
type Outcome struct {
	Verdict     Verdict
	Faces       []FaceResult
	CapturePath string
	Suppressed  bool
	Emailed     bool
	EmailErr    error
	IncidentID  string
}

// Guard runs the recognition and unconditional capture flows against a
// camera, a capture store and a notifier.
type Guard struct {
	openCamera func() (vision.Camera, error)
	detector   vision.Detector
	store      Store
	notifier   Notifier
	locator    Locator

	now   func() time.Time
	newID func() string
}

// New creates a Guard using the wall clock and random incident IDs.
func New(openCamera func() (vision.Camera, error), detector vision.Detector, store Store, notifier Notifier, locator Locator) *Guard {
	return &Guard{
		openCamera: openCamera,
		detector:   detector,
		store:      store,
		notifier:   notifier,
		locator:    locator,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// IsOwner reports whether a prediction identifies the owner. A confidence
// equal to the threshold is accepted.
func IsOwner(p facemodel.Prediction, ownerID int, threshold float64) bool {
	return p.Label == ownerID && p.Confidence <= threshold
}

// Classify turns per-face predictions into a verdict. A frame with no faces
// is a stranger, and a face whose prediction failed never counts as the owner.
func Classify(faces []FaceResult, ownerID int, threshold float64) Verdict {
	for _, f := range faces {
		if f.Err == nil && IsOwner(f.Prediction, ownerID, threshold) {
			return VerdictOwner
		}
	}
	return VerdictStranger
}

// CooldownActive reports whether an alert at now falls within window of the
// last capture. Without a previous capture there is no cooldown.
func CooldownActive(last time.Time, ok bool, now time.Time, window time.Duration) bool {
	if !ok {
		return false
	}
	return now.Sub(last) < window
}

// Check captures one frame, classifies it and alerts when the owner is not
// recognized.
func (g *Guard) Check(ctx context.Context, load ModelLoader, opts CheckOptions) (*Outcome, error) {
	model, err := load()
	if err != nil {
		if errors.Is(err, facemodel.ErrModelNotFound) {
			return nil, fmt.Errorf("%w, run train first", err)
		}
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	slog.Info("Opening camera for recognition")
	frame, err := g.capture(opts.Grab)
	if err != nil {
		return nil, err
	}

	gray := imaging.ToGray(frame)
	rects, err := g.detector.Detect(gray, opts.MinFaceSize)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	out := &Outcome{Faces: predictFaces(model, gray, rects)}
	out.Verdict = Classify(out.Faces, opts.OwnerID, opts.Threshold)

	switch {
	case out.Verdict == VerdictOwner:
		slog.Info("Owner recognized, skipping alert")
		return out, nil
	case len(rects) == 0:
		slog.Info("No face detected in frame, treating as stranger")
	default:
		slog.Info("Owner not recognized, saving photo and sending alert")
	}

	last, ok, err := g.store.LastCaptureTime()
	if err != nil {
		// An unreadable directory must not silence an alert.
		slog.Warn("Could not determine last capture time", "error", err)
		ok = false
	}
	now := g.now()
	if err := g.save(out, frame, now); err != nil {
		return out, err
	}

	if CooldownActive(last, ok, now, opts.Cooldown) {
		out.Suppressed = true
		slog.Info("Suppressed: within cooldown period", "cooldown", opts.Cooldown, "last_capture", last)
		return out, nil
	}

	g.alert(ctx, out, opts.Subject, fmt.Sprintf("CyberEye detected an unrecognized face at %s.", now.Format(time.DateTime)))
	return out, nil
}

// Snap captures and alerts without recognition. The cooldown is checked
// before the camera is opened so a suppressed run leaves no trace on disk.
func (g *Guard) Snap(ctx context.Context, opts SnapOptions) (*Outcome, error) {
	out := &Outcome{Verdict: VerdictUnchecked}

	last, ok, err := g.store.LastCaptureTime()
	if err != nil {
		slog.Warn("Could not determine last capture time", "error", err)
		ok = false
	}
	if CooldownActive(last, ok, g.now(), opts.Cooldown) {
		out.Suppressed = true
		slog.Info("Alert suppressed: within cooldown", "cooldown", opts.Cooldown)
		return out, nil
	}

	slog.Info("Opening camera")
	frame, err := g.capture(opts.Grab)
	if err != nil {
		return out, err
	}

	now := g.now()
	if err := g.save(out, frame, now); err != nil {
		return out, err
	}

	g.alert(ctx, out, opts.Subject, fmt.Sprintf("CyberEye detected an unlock at %s.", now.Format(time.DateTime)))
	return out, nil
}

func (g *Guard) capture(opts vision.GrabOptions) (image.Image, error) {
	cam, err := g.openCamera()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cam.Close(); err != nil {
			slog.Warn("Failed to release camera", "error", err)
		}
	}()

	return vision.Grab(cam, opts)
}

func (g *Guard) save(out *Outcome, frame image.Image, now time.Time) error {
	path, err := g.store.Save(frame, now)
	if err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}
	out.CapturePath = path
	slog.Info("Photo captured and saved", "path", path)
	return nil
}

// alert emails the saved capture. Delivery problems are logged and recorded
// on the outcome; the capture itself is already on disk.
func (g *Guard) alert(ctx context.Context, out *Outcome, subject, headline string) {
	out.IncidentID = g.newID()
	log := slog.With("incident", out.IncidentID)

	if !g.notifier.Enabled() {
		log.Info("Email not configured, skipping email")
		out.EmailErr = notify.ErrEmailDisabled
		return
	}

	location := g.locator.Describe(ctx)
	log.Info("Sending email", "location", location)

	err := g.notifier.Send(ctx, notify.Alert{
		Subject:    subject,
		Body:       composeBody(headline, location, out.IncidentID),
		Attachment: out.CapturePath,
	})
	if err != nil {
		log.Error("Email error", "error", err)
		out.EmailErr = err
		return
	}
	out.Emailed = true
	log.Info("Email sent successfully", "to", g.notifier.Recipient())
}

func composeBody(headline, location, incidentID string) string {
	return fmt.Sprintf("%s\n\nApproximate Location: %s\n\nIncident: %s\n\nAttached is the captured image.",
		headline, location, incidentID)
}

func predictFaces(model Predictor, gray *image.Gray, rects []image.Rectangle) []FaceResult {
	results := make([]FaceResult, 0, len(rects))
	for _, r := range rects {
		res := FaceResult{Rect: r}
		face := imaging.Crop(gray, r)
		if face == nil {
			res.Err = fmt.Errorf("face %v outside frame", r)
		} else {
			res.Prediction, res.Err = model.Predict(face)
		}

		if res.Err != nil {
			slog.Warn("Recognizer predict error", "rect", r, "error", res.Err)
		} else {
			slog.Info("Predict", "label", res.Prediction.Label, "confidence", fmt.Sprintf("%.2f", res.Prediction.Confidence))
		}
		results = append(results, res)
	}
	return results
}
