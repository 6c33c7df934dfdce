package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Camera      CameraConfig      `yaml:"camera"`
	Detection   DetectionConfig   `yaml:"detection"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Alert       AlertConfig       `yaml:"alert"`
	Enrollment  EnrollmentConfig  `yaml:"enrollment"`
	Retention   RetentionConfig   `yaml:"retention"`
	Email       EmailConfig       `yaml:"email"`
	Geolocation GeolocationConfig `yaml:"geolocation"`
}

type PathsConfig struct {
	CaptureDir  string `yaml:"capture_dir"`
	DatasetDir  string `yaml:"dataset_dir"`
	ModelFile   string `yaml:"model_file"`
	LogFile     string `yaml:"log_file"`
	CascadeFile string `yaml:"cascade_file"` // Haar cascade XML for frontal faces
}

type CameraConfig struct {
	Index          int           `yaml:"index"`
	SettleDelay    time.Duration `yaml:"settle_delay"` // pause after opening before the first read
	WarmupFrames   int           `yaml:"warmup_frames"`
	WarmupInterval time.Duration `yaml:"warmup_interval"`
}

type DetectionConfig struct {
	ScaleFactor       float64 `yaml:"scale_factor"`
	MinNeighbors      int     `yaml:"min_neighbors"`
	MinFaceSize       int     `yaml:"min_face_size"`       // pixels, used on live frames
	TrainMinFaceSize  int     `yaml:"train_min_face_size"` // pixels, used on dataset images
	MaxTrainDimension int     `yaml:"max_train_dimension"` // dataset images are scaled down to this
}

type RecognitionConfig struct {
	OwnerID   int     `yaml:"owner_id"`
	Threshold float64 `yaml:"threshold"` // lower = stricter, 0 is a perfect match
}

type AlertConfig struct {
	Cooldown         time.Duration `yaml:"cooldown"`
	SnapCooldown     time.Duration `yaml:"snap_cooldown"`
	SnapWarmupFrames int           `yaml:"snap_warmup_frames"`
	Subject          string        `yaml:"subject"`
	SnapSubject      string        `yaml:"snap_subject"`
}

type EnrollmentConfig struct {
	TargetCount int `yaml:"target_count"`
}

type RetentionConfig struct {
	Days int `yaml:"days"`
}

type EmailConfig struct {
	Username string        `yaml:"-"` // sender address, from CYBEREYE_EMAIL only
	Password string        `yaml:"-"` // app password, from CYBEREYE_APP_PASSWORD only
	To       string        `yaml:"to"`
	SMTPHost string        `yaml:"smtp_host"`
	SMTPPort int           `yaml:"smtp_port"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Enabled reports whether both SMTP credentials are present.
func (c *EmailConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

// Recipient returns the alert recipient, defaulting to the sender.
func (c *EmailConfig) Recipient() string {
	if c.To != "" {
		return c.To
	}
	return c.Username
}

type GeolocationConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Token   string        `yaml:"-"` // IPINFO_TOKEN
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the embedded defaults without consulting files or the environment.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load builds the configuration from the embedded defaults, an optional YAML
// file at path and CYBEREYE_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CYBEREYE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is from the operator
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Paths.CaptureDir = envString("CYBEREYE_CAPTURE_DIR", c.Paths.CaptureDir)
	c.Paths.DatasetDir = envString("CYBEREYE_DATASET_DIR", c.Paths.DatasetDir)
	c.Paths.ModelFile = envString("CYBEREYE_MODEL_FILE", c.Paths.ModelFile)
	c.Paths.LogFile = envString("CYBEREYE_LOG_FILE", c.Paths.LogFile)
	c.Paths.CascadeFile = envString("CYBEREYE_CASCADE_FILE", c.Paths.CascadeFile)

	c.Camera.Index = envInt("CYBEREYE_CAMERA_INDEX", c.Camera.Index)

	c.Recognition.OwnerID = envInt("CYBEREYE_OWNER_ID", c.Recognition.OwnerID)
	c.Recognition.Threshold = envFloat("CYBEREYE_THRESHOLD", c.Recognition.Threshold)

	c.Alert.Cooldown = envDuration("CYBEREYE_COOLDOWN", c.Alert.Cooldown)
	c.Alert.SnapCooldown = envDuration("CYBEREYE_SNAP_COOLDOWN", c.Alert.SnapCooldown)

	c.Retention.Days = envInt("CYBEREYE_RETENTION_DAYS", c.Retention.Days)

	c.Email.Username = strings.TrimSpace(os.Getenv("CYBEREYE_EMAIL"))
	c.Email.Password = strings.TrimSpace(os.Getenv("CYBEREYE_APP_PASSWORD"))
	c.Email.To = envString("CYBEREYE_TO", c.Email.To)
	c.Email.SMTPHost = envString("CYBEREYE_SMTP_HOST", c.Email.SMTPHost)
	c.Email.SMTPPort = envInt("CYBEREYE_SMTP_PORT", c.Email.SMTPPort)

	c.Geolocation.URL = envString("CYBEREYE_GEO_URL", c.Geolocation.URL)
	c.Geolocation.Token = strings.TrimSpace(os.Getenv("IPINFO_TOKEN"))
	if v := strings.TrimSpace(os.Getenv("CYBEREYE_GEO_ENABLED")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Geolocation.Enabled = b
		}
	}
}

// Validate checks that the configuration can drive every command.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Paths.CaptureDir) == "" {
		errs = append(errs, errors.New("capture directory cannot be empty"))
	}
	if strings.TrimSpace(c.Paths.DatasetDir) == "" {
		errs = append(errs, errors.New("dataset directory cannot be empty"))
	}
	if strings.TrimSpace(c.Paths.ModelFile) == "" {
		errs = append(errs, errors.New("model file cannot be empty"))
	}
	if c.Recognition.Threshold <= 0 {
		errs = append(errs, errors.New("recognition threshold must be positive"))
	}
	if c.Alert.Cooldown < 0 || c.Alert.SnapCooldown < 0 {
		errs = append(errs, errors.New("cooldown cannot be negative"))
	}
	if c.Retention.Days <= 0 {
		errs = append(errs, errors.New("retention days must be positive"))
	}
	if c.Enrollment.TargetCount <= 0 {
		errs = append(errs, errors.New("enrollment target count must be positive"))
	}
	if c.Detection.ScaleFactor <= 1 {
		errs = append(errs, errors.New("detection scale factor must be greater than 1"))
	}
	if c.Camera.WarmupFrames < 0 {
		errs = append(errs, errors.New("camera warmup frames cannot be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func envString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// envInt reads an environment variable as a non-negative integer.
// Returns the fallback if the env var is unset, empty, or invalid.
func envInt(key string, fallback int) int {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return fallback
}

// envDuration accepts Go durations ("30s") or a bare number of seconds ("30").
func envDuration(key string, fallback time.Duration) time.Duration {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
