package guard

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/cybereye/internal/captures"
	"github.com/kozaktomas/cybereye/internal/facemodel"
	"github.com/kozaktomas/cybereye/internal/logging"
	"github.com/kozaktomas/cybereye/internal/notify"
	"github.com/kozaktomas/cybereye/internal/vision"
)

type fakeCamera struct {
	frame  image.Image
	closed bool
}

func (c *fakeCamera) Read() (image.Image, error) {
	if c.frame == nil {
		return nil, errors.New("no frame")
	}
	return c.frame, nil
}

func (c *fakeCamera) Close() error {
	c.closed = true
	return nil
}

type fakeDetector struct {
	rects   []image.Rectangle
	minSize int
}

func (d *fakeDetector) Detect(_ *image.Gray, minSize int) ([]image.Rectangle, error) {
	d.minSize = minSize
	return d.rects, nil
}

// fakePredictor returns predictions in order, one per call.
type fakePredictor struct {
	preds []facemodel.Prediction
	errs  []error
	calls int
}

func (p *fakePredictor) Predict(_ *image.Gray) (facemodel.Prediction, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return facemodel.Prediction{}, p.errs[i]
	}
	return p.preds[i], nil
}

type memStore struct {
	last  time.Time
	ok    bool
	saved []time.Time
}

func (s *memStore) LastCaptureTime() (time.Time, bool, error) {
	return s.last, s.ok, nil
}

func (s *memStore) Save(_ image.Image, t time.Time) (string, error) {
	s.saved = append(s.saved, t)
	return captures.FileName(t), nil
}

type fakeNotifier struct {
	enabled bool
	err     error
	sent    []notify.Alert
}

func (n *fakeNotifier) Enabled() bool { return n.enabled }

func (n *fakeNotifier) Recipient() string { return "owner@example.com" }

func (n *fakeNotifier) Send(_ context.Context, a notify.Alert) error {
	n.sent = append(n.sent, a)
	return n.err
}

type fixedLocator string

func (l fixedLocator) Describe(context.Context) string { return string(l) }

type fixture struct {
	camera   *fakeCamera
	detector *fakeDetector
	store    *memStore
	notifier *fakeNotifier
	guard    *Guard
	now      time.Time
}

func newFixture(rects ...image.Rectangle) *fixture {
	frame := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for i := range frame.Pix {
		frame.Pix[i] = uint8(i % 251)
	}

	f := &fixture{
		camera:   &fakeCamera{frame: frame},
		detector: &fakeDetector{rects: rects},
		store:    &memStore{},
		notifier: &fakeNotifier{enabled: true},
		now:      time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local),
	}
	f.guard = New(
		func() (vision.Camera, error) { return f.camera, nil },
		f.detector, f.store, f.notifier, fixedLocator("Brno, South Moravian, CZ (Lat/Long: 49.19,16.60)"),
	)
	f.guard.now = func() time.Time { return f.now }
	f.guard.newID = func() string { return "incident-1" }
	return f
}

func checkOpts() CheckOptions {
	return CheckOptions{
		OwnerID:     1,
		Threshold:   60,
		Cooldown:    5 * time.Second,
		MinFaceSize: 40,
		Subject:     "Cyber Eye Alert - Stranger detected",
		Grab:        vision.GrabOptions{WarmupFrames: 3, Sleep: func(time.Duration) {}},
	}
}

func loaderFor(p Predictor) ModelLoader {
	return func() (Predictor, error) { return p, nil }
}

func TestIsOwner(t *testing.T) {
	tests := []struct {
		name string
		pred facemodel.Prediction
		want bool
	}{
		{"close match", facemodel.Prediction{Label: 1, Confidence: 12.5}, true},
		{"exactly at threshold", facemodel.Prediction{Label: 1, Confidence: 60}, true},
		{"just above threshold", facemodel.Prediction{Label: 1, Confidence: 60.01}, false},
		{"other label", facemodel.Prediction{Label: 2, Confidence: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOwner(tt.pred, 1, 60); got != tt.want {
				t.Errorf("IsOwner(%+v) = %v, want %v", tt.pred, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	owner := FaceResult{Prediction: facemodel.Prediction{Label: 1, Confidence: 30}}
	stranger := FaceResult{Prediction: facemodel.Prediction{Label: 1, Confidence: 95}}
	failed := FaceResult{Prediction: facemodel.Prediction{Label: 1, Confidence: 0}, Err: errors.New("boom")}

	tests := []struct {
		name  string
		faces []FaceResult
		want  Verdict
	}{
		{"no faces", nil, VerdictStranger},
		{"single owner", []FaceResult{owner}, VerdictOwner},
		{"single stranger", []FaceResult{stranger}, VerdictStranger},
		{"owner among strangers", []FaceResult{stranger, owner}, VerdictOwner},
		{"failed prediction is not owner", []FaceResult{failed}, VerdictStranger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.faces, 1, 60); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCooldownActive(t *testing.T) {
	last := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	for _, window := range []time.Duration{time.Second, 5 * time.Second, 30 * time.Second, time.Hour} {
		eps := window / 10
		require.True(t, CooldownActive(last, true, last.Add(eps), window), "window %s at T+eps", window)
		require.True(t, CooldownActive(last, true, last.Add(window-time.Nanosecond), window), "window %s just before end", window)
		require.False(t, CooldownActive(last, true, last.Add(window), window), "window %s at T+W", window)
		require.False(t, CooldownActive(last, true, last.Add(window+eps), window), "window %s at T+W+eps", window)
	}

	require.False(t, CooldownActive(time.Time{}, false, last, time.Hour))
	require.False(t, CooldownActive(last, true, last, 0))
}

func TestCheck_OwnerSkipsAlert(t *testing.T) {
	f := newFixture(image.Rect(10, 10, 70, 70))
	model := &fakePredictor{preds: []facemodel.Prediction{{Label: 1, Confidence: 60}}}

	out, err := f.guard.Check(context.Background(), loaderFor(model), checkOpts())
	require.NoError(t, err)
	require.Equal(t, VerdictOwner, out.Verdict)
	require.Empty(t, out.CapturePath)
	require.Empty(t, f.store.saved)
	require.Empty(t, f.notifier.sent)
	require.Equal(t, 40, f.detector.minSize)
	require.True(t, f.camera.closed)
}

func TestCheck_NoFacesIsStranger(t *testing.T) {
	f := newFixture()
	model := &fakePredictor{}

	out, err := f.guard.Check(context.Background(), loaderFor(model), checkOpts())
	require.NoError(t, err)
	require.Equal(t, VerdictStranger, out.Verdict)
	require.Zero(t, model.calls)
	require.Len(t, f.store.saved, 1)
	require.True(t, out.Emailed)
	require.Equal(t, "incident-1", out.IncidentID)
}

func TestCheck_StrangerSendsAlert(t *testing.T) {
	f := newFixture(image.Rect(10, 10, 70, 70))
	model := &fakePredictor{preds: []facemodel.Prediction{{Label: 1, Confidence: 88.4}}}

	out, err := f.guard.Check(context.Background(), loaderFor(model), checkOpts())
	require.NoError(t, err)
	require.Equal(t, VerdictStranger, out.Verdict)
	require.False(t, out.Suppressed)
	require.True(t, out.Emailed)
	require.Equal(t, "intruder_20250314_093000.jpg", out.CapturePath)

	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	require.Equal(t, "Cyber Eye Alert - Stranger detected", sent.Subject)
	require.Equal(t, out.CapturePath, sent.Attachment)
	require.Contains(t, sent.Body, "unrecognized face at 2025-03-14 09:30:00")
	require.Contains(t, sent.Body, "Approximate Location: Brno, South Moravian, CZ")
	require.Contains(t, sent.Body, "Incident: incident-1")
}

func TestCheck_PredictErrorCountsAsStranger(t *testing.T) {
	f := newFixture(image.Rect(0, 0, 50, 50), image.Rect(60, 60, 110, 110))
	model := &fakePredictor{
		preds: []facemodel.Prediction{{}, {Label: 1, Confidence: 75}},
		errs:  []error{errors.New("bad face")},
	}

	out, err := f.guard.Check(context.Background(), loaderFor(model), checkOpts())
	require.NoError(t, err)
	require.Equal(t, VerdictStranger, out.Verdict)
	require.Len(t, out.Faces, 2)
	require.Error(t, out.Faces[0].Err)
	require.Equal(t, 2, model.calls)
}

func TestCheck_Cooldown(t *testing.T) {
	const window = 5 * time.Second

	tests := []struct {
		name           string
		sinceLast      time.Duration
		wantSuppressed bool
	}{
		{"just after last capture", time.Second, true},
		{"just before window ends", window - time.Millisecond, true},
		{"after window", window + time.Millisecond, false},
		{"long after", time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.store.last = f.now.Add(-tt.sinceLast)
			f.store.ok = true

			out, err := f.guard.Check(context.Background(), loaderFor(&fakePredictor{}), checkOpts())
			require.NoError(t, err)
			require.Equal(t, tt.wantSuppressed, out.Suppressed)
			require.Equal(t, !tt.wantSuppressed, out.Emailed)
			// the frame is kept either way
			require.Len(t, f.store.saved, 1)
			require.NotEmpty(t, out.CapturePath)
		})
	}
}

func TestCheck_FirstCaptureIsNotSuppressedByItself(t *testing.T) {
	dir := t.TempDir()
	f := newFixture()
	f.guard.store = captures.NewStore(dir)
	f.guard.now = time.Now

	out, err := f.guard.Check(context.Background(), loaderFor(&fakePredictor{}), checkOpts())
	require.NoError(t, err)
	require.False(t, out.Suppressed)
	require.True(t, out.Emailed)
	require.True(t, strings.HasPrefix(out.CapturePath, dir))

	// an immediate second run is inside the window
	out, err = f.guard.Check(context.Background(), loaderFor(&fakePredictor{}), checkOpts())
	require.NoError(t, err)
	require.True(t, out.Suppressed)
	require.Len(t, f.notifier.sent, 1)
}

func TestCheck_EmailDisabled(t *testing.T) {
	f := newFixture()
	f.notifier.enabled = false

	out, err := f.guard.Check(context.Background(), loaderFor(&fakePredictor{}), checkOpts())
	require.NoError(t, err)
	require.False(t, out.Emailed)
	require.ErrorIs(t, out.EmailErr, notify.ErrEmailDisabled)
	require.Empty(t, f.notifier.sent)
	require.Len(t, f.store.saved, 1)
}

func TestCheck_EmailFailureIsRecorded(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("535 auth failed")

	out, err := f.guard.Check(context.Background(), loaderFor(&fakePredictor{}), checkOpts())
	require.NoError(t, err)
	require.False(t, out.Emailed)
	require.EqualError(t, out.EmailErr, "535 auth failed")
}

func TestCheck_MissingModel(t *testing.T) {
	f := newFixture()
	opened := false
	f.guard.openCamera = func() (vision.Camera, error) {
		opened = true
		return f.camera, nil
	}
	load := func() (Predictor, error) {
		return nil, facemodel.ErrModelNotFound
	}

	_, err := f.guard.Check(context.Background(), load, checkOpts())
	require.ErrorIs(t, err, facemodel.ErrModelNotFound)
	require.Contains(t, err.Error(), "run train first")
	require.False(t, opened)
}

func TestCheck_CameraUnavailable(t *testing.T) {
	f := newFixture()
	f.guard.openCamera = func() (vision.Camera, error) {
		return nil, vision.ErrCameraUnavailable
	}

	_, err := f.guard.Check(context.Background(), loaderFor(&fakePredictor{}), checkOpts())
	require.ErrorIs(t, err, vision.ErrCameraUnavailable)
	require.Empty(t, f.store.saved)
}

func TestCheck_NoFrame(t *testing.T) {
	f := newFixture()
	f.camera.frame = nil

	_, err := f.guard.Check(context.Background(), loaderFor(&fakePredictor{}), checkOpts())
	require.ErrorIs(t, err, vision.ErrNoFrame)
	require.True(t, f.camera.closed)
}

func TestCheck_UsesRealModel(t *testing.T) {
	face := image.NewGray(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			face.SetGray(x, y, color.Gray{Y: uint8((x*7 + y*13) % 256)})
		}
	}
	model, err := facemodel.Train([]*image.Gray{face}, []int{1}, facemodel.DefaultParams())
	require.NoError(t, err)

	f := newFixture(image.Rect(0, 0, 60, 60))
	frame := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			v := face.GrayAt(x, y).Y
			frame.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	f.camera.frame = frame

	out, err := f.guard.Check(context.Background(), func() (Predictor, error) { return model, nil }, checkOpts())
	require.NoError(t, err)
	require.Equal(t, VerdictOwner, out.Verdict)
	require.InDelta(t, 0, out.Faces[0].Prediction.Confidence, 1e-6)
}

func snapOpts() SnapOptions {
	return SnapOptions{
		Cooldown: 30 * time.Second,
		Subject:  "Cyber Eye Alert: Unlock detected",
		Grab:     vision.GrabOptions{WarmupFrames: 5, Sleep: func(time.Duration) {}},
	}
}

func TestSnap_SendsAlert(t *testing.T) {
	f := newFixture()

	out, err := f.guard.Snap(context.Background(), snapOpts())
	require.NoError(t, err)
	require.Equal(t, VerdictUnchecked, out.Verdict)
	require.True(t, out.Emailed)
	require.Len(t, f.notifier.sent, 1)
	require.Equal(t, "Cyber Eye Alert: Unlock detected", f.notifier.sent[0].Subject)
	require.Contains(t, f.notifier.sent[0].Body, "detected an unlock at 2025-03-14 09:30:00")
}

func TestSnap_CooldownSkipsCamera(t *testing.T) {
	f := newFixture()
	f.store.last = f.now.Add(-10 * time.Second)
	f.store.ok = true
	opened := false
	f.guard.openCamera = func() (vision.Camera, error) {
		opened = true
		return f.camera, nil
	}

	out, err := f.guard.Snap(context.Background(), snapOpts())
	require.NoError(t, err)
	require.True(t, out.Suppressed)
	require.False(t, opened)
	require.Empty(t, f.store.saved)
	require.Empty(t, f.notifier.sent)
}

func TestSnap_AfterCooldown(t *testing.T) {
	f := newFixture()
	f.store.last = f.now.Add(-31 * time.Second)
	f.store.ok = true

	out, err := f.guard.Snap(context.Background(), snapOpts())
	require.NoError(t, err)
	require.False(t, out.Suppressed)
	require.True(t, out.Emailed)
}

func TestCheck_LogsRecipientAndIncident(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(logging.NewLineHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	f := newFixture()
	_, err := f.guard.Check(context.Background(), loaderFor(&fakePredictor{}), checkOpts())
	require.NoError(t, err)

	require.Contains(t, buf.String(), "Email sent successfully incident=incident-1 to=owner@example.com")
}
