package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cjeanneret/CloseUpCam/internal/config"
	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
	"github.com/cjeanneret/CloseUpCam/internal/hw/gpio"
	"github.com/cjeanneret/CloseUpCam/internal/hw/stepper"
	"github.com/cjeanneret/CloseUpCam/internal/logic/session"
	"github.com/cjeanneret/CloseUpCam/internal/logic/variant"
	"github.com/cjeanneret/CloseUpCam/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	variantName := flag.String("variant", "", "override preview variant (close_up, tap_focus, switch_lens)")
	targetSizeMm := flag.Float64("target_size_mm", 0, "override close-up target size in mm")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Empty/zero overrides mean "use config default"
	if err := validateCLIOverrides(*variantName, *targetSizeMm); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *variantName, *targetSizeMm)

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Variant", cfg.Defaults.Variant)
	if cfg.Defaults.Variant == variant.NameCloseUp {
		debug.Value("Zoom slider range", fmt.Sprintf("1.0-%.1f", cfg.SliderMaxZoom()))
	}

	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing capture device")
	dev, err := newDeviceFromConfig(gpioDriver, cfg)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)
	debug.PrintStruct("Device profile", dev.Profile())
	out := newOutputFromConfig(gpioDriver, cfg)
	debug.Value("Photo output", out.Name())

	debug.Step(3, "Creating session controller")
	behavior, err := variant.New(cfg.Defaults.Variant, variant.Options{
		TargetSizeMm:  cfg.CloseUp.TargetSizeMm,
		SliderMaxZoom: cfg.CloseUp.SliderMaxZoom,
	})
	if err != nil {
		log.Fatalf("init variant failed: %v", err)
	}

	go func() {
		err := config.Watch(ctx, *cfgPath, func(c *config.Config) {
			debug.SetLevel(c.Defaults.DebugLevel)
		})
		if err != nil {
			debug.Error(fmt.Errorf("config watch: %w", err))
		}
	}()

	opts := session.Options{
		Session:    camera.NewMemorySession(camera.PresetsByFidelity...),
		Picker:     camera.PickFirst(camera.PositionBack, dev),
		Output:     out,
		Authorizer: newAuthorizer(cfg.Defaults.Authorization),
		Behavior:   behavior,
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		opts.Observer = web.BroadcastObserver{B: broadcaster}
		ctrl := session.NewController(opts)
		defer ctrl.Close()
		if err := ctrl.Load(); err != nil {
			log.Fatalf("load session: %v", err)
		}

		srv := web.NewServer(webAddr, broadcaster, ctrl, cfg.Defaults.Variant)
		srv.SetBracketDelays(cfg.FocusDelay(), cfg.PostShotDelay())
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		<-ctrl.Disappear()
		return
	}

	{
		// Headless: show the preview until interrupted.
		ctrl := session.NewController(opts)
		defer ctrl.Close()
		if err := runHeadless(ctx, ctrl); err != nil {
			log.Fatalf("preview failed: %v", err)
		}
	}
}

// runHeadless loads and appears the preview, waits for ctx, then stops it.
func runHeadless(ctx context.Context, ctrl *session.Controller) error {
	debug.Section("Starting preview")
	if err := ctrl.Load(); err != nil {
		return err
	}
	if err := <-ctrl.Appear(); err != nil {
		return err
	}
	if state, reason := ctrl.State(); state == session.StateStalled {
		return fmt.Errorf("%s: %w", reason.Message(), ctrl.StallError())
	}
	if z, ok := ctrl.Zoom(); ok {
		debug.Info("Zoom %.2fx (range %.1f-%.1f)", z.Current, z.Min, z.Max)
	}

	<-ctx.Done()
	debug.Section("Stopping preview")
	return <-ctrl.Disappear()
}

// validateCLIOverrides checks the non-empty CLI overrides.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(variantName string, targetSizeMm float64) error {
	if variantName != "" {
		known := false
		for _, n := range variant.Names {
			if n == variantName {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("variant must be one of %v, got %q", variant.Names, variantName)
		}
	}
	if targetSizeMm != 0 {
		if math.IsNaN(targetSizeMm) || math.IsInf(targetSizeMm, 0) || targetSizeMm <= 0 || targetSizeMm > 1000 {
			return fmt.Errorf("target_size_mm must be between 0 and 1000, got %g", targetSizeMm)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, variantName string, targetSizeMm float64) {
	if variantName != "" {
		cfg.Defaults.Variant = variantName
	}
	if targetSizeMm > 0 {
		cfg.CloseUp.TargetSizeMm = targetSizeMm
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// profileFromConfig builds the device profile from the profile section.
func profileFromConfig(cfg *config.Config) camera.Profile {
	presets := make([]camera.Preset, 0, len(cfg.Profile.Presets))
	for _, p := range cfg.Profile.Presets {
		presets = append(presets, camera.Preset(p))
	}
	id := cfg.Camera.Type
	if cfg.Camera.Type == config.CameraV4L2 {
		id = cfg.Camera.DevicePath
	}
	return camera.Profile{
		ID:                   id,
		Name:                 cfg.Camera.Name,
		Position:             camera.PositionBack,
		MinimumFocusDistance: cfg.Profile.MinFocusDistanceMm,
		ActiveFormat: camera.Format{
			Width:         cfg.Profile.FormatWidthPx,
			Height:        cfg.Profile.FormatHeightPx,
			FieldOfView:   cfg.Profile.FieldOfViewDeg,
			MaxZoomFactor: cfg.Profile.MaxZoomFactor,
		},
		SwitchOverZoomFactors:         cfg.Profile.SwitchOverZoomFactors,
		Presets:                       presets,
		FocusPointOfInterestSupported: cfg.Camera.Type == config.CameraSimulated,
	}
}

// newDeviceFromConfig selects a capture device implementation based on configuration.
func newDeviceFromConfig(g gpio.Driver, cfg *config.Config) (camera.Device, error) {
	profile := profileFromConfig(cfg)
	switch cfg.Camera.Type {
	case config.CameraSimulated:
		return camera.NewSimulatedDevice(profile), nil
	case config.CameraGPIORig:
		if cfg.ZoomStepper == nil {
			return nil, fmt.Errorf("camera type %s needs a zoom_stepper section", cfg.Camera.Type)
		}
		debug.PrintStruct("Zoom stepper config", *cfg.ZoomStepper)
		rig, err := camera.NewRigDevice(g, camera.RigConfig{
			Profile: profile,
			Stepper: stepper.Config{
				StepPin:   cfg.ZoomStepper.StepPin,
				DirPin:    cfg.ZoomStepper.DirPin,
				EnablePin: cfg.ZoomStepper.EnablePin,
				StepDelay: cfg.StepDelay(),
			},
			StepsPerFactor: cfg.ZoomStepper.StepsPerFactor,
			FocusPin:       cfg.Camera.FocusPin,
			FocusDelay:     cfg.FocusDelay(),
		})
		if err != nil {
			return nil, err
		}
		return rig, nil
	case config.CameraV4L2:
		return camera.NewV4L2Device(cfg.Camera.DevicePath, profile), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// newOutputFromConfig returns the photo output: the wired remote for a
// rig, a rendered JPEG otherwise.
func newOutputFromConfig(g gpio.Driver, cfg *config.Config) camera.Output {
	if cfg.Camera.Type == config.CameraGPIORig {
		return camera.NewRemoteShutterOutput(
			g,
			cfg.Camera.FocusPin,
			cfg.Camera.ShutterPin,
			cfg.FocusDelay(),
			cfg.ShutterDelay(),
		)
	}
	return camera.NewSimulatedPhotoOutput(0)
}

// newAuthorizer maps defaults.authorization to a static authorizer.
// not_determined prompts and grants.
func newAuthorizer(mode string) camera.Authorizer {
	switch mode {
	case config.AuthDenied:
		return camera.NewStaticAuthorizer(camera.AuthorizationDenied, false)
	case config.AuthNotDetermined:
		return camera.NewStaticAuthorizer(camera.AuthorizationNotDetermined, true)
	default:
		return camera.NewStaticAuthorizer(camera.AuthorizationAuthorized, true)
	}
}
