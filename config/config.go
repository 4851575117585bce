// Package config loads the YAML configuration of a tracking session.
package config

import (
	"errors"
	"fmt"
	"github.com/BenCrafterRED/colortracker"
	"github.com/BenCrafterRED/colortracker/chart"
	"github.com/BenCrafterRED/colortracker/kinematics"
	"github.com/BenCrafterRED/colortracker/segment"
	"gopkg.in/yaml.v3"
	"image"
	"log/slog"
	"os"
	"time"
)

// ErrInvalid is wrapped by all validation errors
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete tracker configuration
type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Viewer      ViewerConfig      `yaml:"viewer"`
	Store       StoreConfig       `yaml:"store"`
}

// SourceConfig contains capture device settings
type SourceConfig struct {
	// Selector is a device index or a file path/URI
	Selector     string        `yaml:"selector"`
	EmitInterval time.Duration `yaml:"emit_interval"`
	StopTimeout  time.Duration `yaml:"stop_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	// CPUCores pins the acquisition loop, eg. "4,5"
	CPUCores string `yaml:"cpu_cores"`
}

// TrackingConfig contains segmentation settings
type TrackingConfig struct {
	TargetHue int `yaml:"target_hue"`
	Threshold int `yaml:"threshold"`
	// ROI is [x1, y1, x2, y2], empty for the full frame
	ROI []int `yaml:"roi,omitempty"`
}

// CalibrationConfig defines the pixel scale either directly or from a
// reference segment of known length
type CalibrationConfig struct {
	PixelsPerUnit float64          `yaml:"pixels_per_unit"`
	Unit          string           `yaml:"unit"`
	Reference     *ReferenceConfig `yaml:"reference,omitempty"`
}

// ReferenceConfig is a segment between two pixel points of known length
type ReferenceConfig struct {
	From   [2]int  `yaml:"from"`
	To     [2]int  `yaml:"to"`
	Length float64 `yaml:"length"`
}

// AnalysisConfig contains kinematics and plotting settings
type AnalysisConfig struct {
	Sigma  float64  `yaml:"sigma"`
	Plots  []string `yaml:"plots"`
	Output string   `yaml:"output"`
	// HTML is an optional interactive chart output path
	HTML string `yaml:"html,omitempty"`
}

// ViewerConfig contains the live MJPEG viewer settings
type ViewerConfig struct {
	Addr   string `yaml:"addr"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// StoreConfig contains session persistence settings
type StoreConfig struct {
	// Path of the SQLite database, empty disables persistence
	Path string `yaml:"path"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Selector:     "0",
			EmitInterval: colortracker.DefaultEmitInterval,
			StopTimeout:  colortracker.DefaultStopTimeout,
			ReadTimeout:  colortracker.DefaultReadTimeout,
		},
		Tracking: TrackingConfig{
			TargetHue: 0,
			Threshold: segment.DefaultThreshold,
		},
		Calibration: CalibrationConfig{
			PixelsPerUnit: 1,
			Unit:          string(kinematics.DefaultUnit),
		},
		Analysis: AnalysisConfig{
			Sigma:  kinematics.DefaultSigma,
			Plots:  []string{kinematics.KindVelocity.String(), kinematics.KindAcceleration.String()},
			Output: chart.DefaultFigure,
		},
		Viewer: ViewerConfig{
			Addr:   ":8080",
			Width:  1280,
			Height: 720,
		},
	}
}

// Load reads a YAML configuration file over the defaults and validates it
func Load(path string) (*Config, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks all values that can be checked without knowing the frame
// size
func Validate(cfg *Config) error {

	if cfg.Source.Selector == "" {
		return invalid("source.selector must not be empty")
	}

	if cfg.Source.EmitInterval <= 0 {
		return invalid("source.emit_interval must be positive, got %v", cfg.Source.EmitInterval)
	}

	if cfg.Source.StopTimeout <= 0 {
		return invalid("source.stop_timeout must be positive, got %v", cfg.Source.StopTimeout)
	}

	if cfg.Source.ReadTimeout < 0 {
		return invalid("source.read_timeout must not be negative, got %v", cfg.Source.ReadTimeout)
	}

	if _, err := colortracker.ParseCPUCores(cfg.Source.CPUCores); err != nil {
		return invalid("source.cpu_cores: %v", err)
	}

	if cfg.Tracking.TargetHue < 0 || cfg.Tracking.TargetHue >= segment.HueRange {
		return invalid("tracking.target_hue must be in range 0-179, got %d", cfg.Tracking.TargetHue)
	}

	if cfg.Tracking.Threshold < 0 || cfg.Tracking.Threshold > 255 {
		return invalid("tracking.threshold must be in range 0-255, got %d", cfg.Tracking.Threshold)
	}

	if n := len(cfg.Tracking.ROI); n != 0 && n != 4 {
		return invalid("tracking.roi must have 4 values [x1, y1, x2, y2], got %d", n)
	}

	if roi := cfg.ROI(); roi.X1 > roi.X2 || roi.Y1 > roi.Y2 || roi.X1 < 0 || roi.Y1 < 0 {
		return invalid("tracking.roi %v is not ordered", cfg.Tracking.ROI)
	}

	if _, err := cfg.Scale(); err != nil {
		return invalid("calibration: %v", err)
	}

	if cfg.Analysis.Sigma < 0 {
		return invalid("analysis.sigma must not be negative, got %v", cfg.Analysis.Sigma)
	}

	if _, err := cfg.Kinds(); err != nil {
		return invalid("analysis.plots: %v", err)
	}

	if cfg.Analysis.Output == "" {
		return invalid("analysis.output must not be empty")
	}

	if cfg.Viewer.Width <= 0 || cfg.Viewer.Height <= 0 {
		return invalid("viewer size must be positive, got %dx%d", cfg.Viewer.Width, cfg.Viewer.Height)
	}

	return nil
}

// ROI returns the configured region of interest, zero for the full frame
func (c *Config) ROI() segment.ROI {
	if len(c.Tracking.ROI) != 4 {
		return segment.ROI{}
	}
	r := c.Tracking.ROI
	return segment.ROI{X1: r[0], Y1: r[1], X2: r[2], Y2: r[3]}
}

// ResolveROI returns the region of interest for a frame of the given size,
// checking it lies within the frame
func (c *Config) ResolveROI(width, height int) (segment.ROI, error) {

	roi := c.ROI().Resolve(width, height)

	if err := roi.Validate(width, height); err != nil {
		return segment.ROI{}, invalid("tracking.roi: %v", err)
	}

	return roi, nil
}

// Scale returns the pixel scale, derived from the reference segment when one
// is configured
func (c *Config) Scale() (kinematics.Scale, error) {

	unit, err := kinematics.ParseUnit(c.Calibration.Unit)

	if err != nil {
		return kinematics.Scale{}, err
	}

	if ref := c.Calibration.Reference; ref != nil {
		return kinematics.Calibrate(image.Pt(ref.From[0], ref.From[1]),
			image.Pt(ref.To[0], ref.To[1]), ref.Length, unit)
	}

	s := kinematics.Scale{PixelsPerUnit: c.Calibration.PixelsPerUnit, Unit: unit}
	return s, s.Validate()
}

// Kinds returns the series selected for plotting
func (c *Config) Kinds() ([]kinematics.Kind, error) {
	if len(c.Analysis.Plots) == 0 {
		return nil, errors.New("no plots selected")
	}
	return kinematics.ParseKinds(c.Analysis.Plots)
}

// SourceOptions returns the acquisition loop options
func (c *Config) SourceOptions(logger *slog.Logger) colortracker.Options {

	opts := colortracker.DefaultOptions()
	opts.EmitInterval = c.Source.EmitInterval
	opts.StopTimeout = c.Source.StopTimeout
	opts.ReadTimeout = c.Source.ReadTimeout
	opts.Logger = logger

	// validated on load
	opts.CPUAffinity, _ = colortracker.ParseCPUCores(c.Source.CPUCores)

	return opts
}
