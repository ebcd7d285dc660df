package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/logic/geometry"
	"gopkg.in/yaml.v3"
)

// Camera backend types.
const (
	CameraSimulated = "simulated"
	CameraGPIORig   = "gpio_rig"
	CameraV4L2      = "v4l2"
)

// Authorization modes for the simulated authorizer.
const (
	AuthGranted       = "granted"
	AuthDenied        = "denied"
	AuthNotDetermined = "not_determined"
)

// CameraConfig selects the capture device backend.
// For gpio_rig, FocusPin/ShutterPin are the lines of the camera's wired remote.
type CameraConfig struct {
	Type            string `yaml:"type"`               // simulated, gpio_rig, v4l2
	Name            string `yaml:"name"`               // display name
	DevicePath      string `yaml:"device_path"`        // v4l2 only, e.g. /dev/video0
	FocusPin        int    `yaml:"focus_pin"`          // GPIO pin for FOCUS line
	ShutterPin      int    `yaml:"shutter_pin"`        // GPIO pin for SHUTTER line
	FocusDelayMs    int    `yaml:"focus_delay_ms"`     // autofocus delay (ms)
	ShutterDelayMs  int    `yaml:"shutter_delay_ms"`   // shutter hold time (ms)
	PostShotDelayMs int    `yaml:"post_shot_delay_ms"` // settle time after a shot (ms)
}

// LensConfig describes the mounted lens. Used to derive the field of view
// when profile.field_of_view_deg is not set.
type LensConfig struct {
	Name          string  `yaml:"name"`
	FocalLengthMm float64 `yaml:"focal_length_mm"`
}

// SensorConfig is optional: physical sensor size in mm.
type SensorConfig struct {
	WidthMm  float64 `yaml:"width_mm"`
	HeightMm float64 `yaml:"height_mm"`
}

// ProfileConfig describes the optical properties of the device.
type ProfileConfig struct {
	MinFocusDistanceMm    float64   `yaml:"min_focus_distance_mm"` // -1 = not reported by device
	FieldOfViewDeg        float64   `yaml:"field_of_view_deg"`     // horizontal FOV of the active format
	MaxZoomFactor         float64   `yaml:"max_zoom_factor"`
	SwitchOverZoomFactors []float64 `yaml:"switch_over_zoom_factors"`
	FormatWidthPx         int       `yaml:"format_width_px"`
	FormatHeightPx        int       `yaml:"format_height_px"`
	Presets               []string  `yaml:"presets"` // presets the device supports
}

// ZoomStepperConfig is the stepper turning the zoom ring of a gpio_rig.
type ZoomStepperConfig struct {
	StepPin        int `yaml:"step_pin"`
	DirPin         int `yaml:"dir_pin"`
	EnablePin      int `yaml:"enable_pin"`       // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerFactor int `yaml:"steps_per_factor"` // motor (micro)steps per 1.0 of zoom factor
	StepDelayUs    int `yaml:"step_delay_us"`
}

// CloseUpConfig holds close-up variant parameters.
type CloseUpConfig struct {
	TargetSizeMm  float64 `yaml:"target_size_mm"` // smallest subject that must fill the ROI width
	SliderMaxZoom float64 `yaml:"slider_max_zoom"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	Variant       string `yaml:"variant"`       // close_up, tap_focus, switch_lens
	Authorization string `yaml:"authorization"` // granted, denied, not_determined
	DebugLevel    int    `yaml:"debug_level"`   // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO      bool   `yaml:"mock_gpio"`     // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera      CameraConfig       `yaml:"camera"`
	Lens        *LensConfig        `yaml:"lens,omitempty"`   // optional
	Sensor      *SensorConfig      `yaml:"sensor,omitempty"` // optional
	Profile     ProfileConfig      `yaml:"profile"`
	ZoomStepper *ZoomStepperConfig `yaml:"zoom_stepper,omitempty"` // gpio_rig only
	CloseUp     CloseUpConfig      `yaml:"close_up"`
	Defaults    DefaultsConfig     `yaml:"defaults"`
}

// ValidateConfigPath checks that path points to a .yaml file inside a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Ext(abs) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	switch cfg.Camera.Type {
	case CameraSimulated, CameraGPIORig, CameraV4L2:
	case "":
		return nil, fmt.Errorf("camera.type is required")
	default:
		return nil, fmt.Errorf("unsupported camera.type: %s", cfg.Camera.Type)
	}
	if cfg.Camera.Type == CameraV4L2 && cfg.Camera.DevicePath == "" {
		cfg.Camera.DevicePath = "/dev/video0"
	}
	if cfg.Camera.Type == CameraGPIORig && cfg.ZoomStepper == nil {
		return nil, fmt.Errorf("zoom_stepper is required for camera.type %s", CameraGPIORig)
	}
	if cfg.Camera.Name == "" {
		cfg.Camera.Name = "Back Camera"
	}

	// Field of view: explicit, or derived from lens + sensor.
	if cfg.Profile.FieldOfViewDeg == 0 && cfg.Lens != nil && cfg.Sensor != nil {
		fov, err := geometry.FieldOfView(cfg.Sensor.WidthMm, cfg.Lens.FocalLengthMm)
		if err != nil {
			return nil, fmt.Errorf("derive field of view from lens and sensor: %w", err)
		}
		cfg.Profile.FieldOfViewDeg = fov
	}
	if cfg.Profile.FieldOfViewDeg <= 0 || cfg.Profile.FieldOfViewDeg >= 180 {
		return nil, fmt.Errorf("profile.field_of_view_deg must be in (0, 180), got %.2f", cfg.Profile.FieldOfViewDeg)
	}
	if cfg.Profile.MinFocusDistanceMm == 0 {
		cfg.Profile.MinFocusDistanceMm = -1 // not reported
	}
	if cfg.Profile.MinFocusDistanceMm < 0 && cfg.Profile.MinFocusDistanceMm != -1 {
		return nil, fmt.Errorf("profile.min_focus_distance_mm must be > 0 or -1, got %.2f", cfg.Profile.MinFocusDistanceMm)
	}
	if cfg.Profile.MaxZoomFactor == 0 {
		cfg.Profile.MaxZoomFactor = 1
	}
	if cfg.Profile.MaxZoomFactor < 1 {
		return nil, fmt.Errorf("profile.max_zoom_factor must be >= 1, got %.2f", cfg.Profile.MaxZoomFactor)
	}
	for _, f := range cfg.Profile.SwitchOverZoomFactors {
		if f < 1 || f > cfg.Profile.MaxZoomFactor {
			return nil, fmt.Errorf("profile.switch_over_zoom_factors: %.2f outside [1, %.2f]", f, cfg.Profile.MaxZoomFactor)
		}
	}
	if cfg.Profile.FormatWidthPx <= 0 {
		cfg.Profile.FormatWidthPx = 1920
	}
	if cfg.Profile.FormatHeightPx <= 0 {
		cfg.Profile.FormatHeightPx = 1080
	}
	if len(cfg.Profile.Presets) == 0 {
		cfg.Profile.Presets = []string{"photo", "high", "medium", "low"}
	}

	if cfg.CloseUp.TargetSizeMm == 0 {
		cfg.CloseUp.TargetSizeMm = 40 // 40mm subject
	}
	if cfg.CloseUp.TargetSizeMm < 0 {
		return nil, fmt.Errorf("close_up.target_size_mm must be > 0, got %.2f", cfg.CloseUp.TargetSizeMm)
	}
	if cfg.CloseUp.SliderMaxZoom <= 0 {
		cfg.CloseUp.SliderMaxZoom = 8.0
	}

	if cfg.Defaults.Variant == "" {
		cfg.Defaults.Variant = "close_up"
	}
	switch cfg.Defaults.Authorization {
	case "":
		cfg.Defaults.Authorization = AuthGranted
	case AuthGranted, AuthDenied, AuthNotDetermined:
	default:
		return nil, fmt.Errorf("unsupported defaults.authorization: %s", cfg.Defaults.Authorization)
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be 0-4, got %d", cfg.Defaults.DebugLevel)
	}

	// Default values for remote delays
	if cfg.Camera.FocusDelayMs <= 0 {
		cfg.Camera.FocusDelayMs = 500 // 500ms for autofocus
	}
	if cfg.Camera.ShutterDelayMs <= 0 {
		cfg.Camera.ShutterDelayMs = 200 // 200ms shutter hold
	}
	if cfg.Camera.PostShotDelayMs <= 0 {
		cfg.Camera.PostShotDelayMs = 300
	}
	if cfg.ZoomStepper != nil {
		if cfg.ZoomStepper.StepsPerFactor <= 0 {
			return nil, fmt.Errorf("zoom_stepper.steps_per_factor must be > 0")
		}
		if cfg.ZoomStepper.StepDelayUs <= 0 {
			cfg.ZoomStepper.StepDelayUs = 1000
		}
	}

	return &cfg, nil
}

// FocusDelay returns the autofocus delay duration.
func (c *Config) FocusDelay() time.Duration {
	return time.Duration(c.Camera.FocusDelayMs) * time.Millisecond
}

// ShutterDelay returns the shutter hold duration.
func (c *Config) ShutterDelay() time.Duration {
	return time.Duration(c.Camera.ShutterDelayMs) * time.Millisecond
}

// PostShotDelay returns the settle time after a shot.
func (c *Config) PostShotDelay() time.Duration {
	return time.Duration(c.Camera.PostShotDelayMs) * time.Millisecond
}

// StepDelay returns the zoom stepper half-cycle delay.
func (c *Config) StepDelay() time.Duration {
	if c.ZoomStepper == nil {
		return 0
	}
	return time.Duration(c.ZoomStepper.StepDelayUs) * time.Microsecond
}

// SliderMaxZoom returns the slider limit: min(device max, close_up.slider_max_zoom).
func (c *Config) SliderMaxZoom() float64 {
	return math.Min(c.Profile.MaxZoomFactor, c.CloseUp.SliderMaxZoom)
}
