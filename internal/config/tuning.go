package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/vision.defaults.json"

// TuningConfig represents the root configuration for the vision pipeline.
// Values are fixed for the length of a match: the file is read once at
// startup and there is no runtime update path.
type TuningConfig struct {
	// Tracker params
	MaxTrackingDistanceInches *float64 `json:"max_tracking_distance_in,omitempty"`
	MaxTrackingLifetime       *string  `json:"max_tracking_lifetime,omitempty"` // duration string like "1s"
	CircularRotationMean      *bool    `json:"circular_rotation_mean,omitempty"`
	MaxTargets                *int     `json:"max_targets,omitempty"`

	// Control loop params
	LoopPeriod          *string `json:"loop_period,omitempty"` // duration string like "20ms"
	PoseHistoryCapacity *int    `json:"pose_history_capacity,omitempty"`
	MaxPoseStaleness    *string `json:"max_pose_staleness,omitempty"` // newest odometry older than this is no answer

	// Camera link params
	SerialBaudRate *int           `json:"serial_baud_rate,omitempty"`
	Cameras        []CameraConfig `json:"cameras,omitempty"`
}

// CameraConfig describes one physical camera: where its serial link lives and
// where it is mounted relative to the robot centre.
type CameraConfig struct {
	Name string `json:"name"`
	// Port is the serial device path. Empty means discover by product name.
	Port        string  `json:"port,omitempty"`
	XInches     float64 `json:"x_in"`
	YInches     float64 `json:"y_in"`
	RotationDeg float64 `json:"rotation_deg"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated with
// its built-in default.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		MaxTrackingDistanceInches: ptrFloat64(16),
		MaxTrackingLifetime:       ptrString("1s"),
		CircularRotationMean:      ptrBool(false),
		MaxTargets:                ptrInt(32),
		LoopPeriod:                ptrString("20ms"),
		PoseHistoryCapacity:       ptrInt(100),
		MaxPoseStaleness:          ptrString("100ms"),
		SerialBaudRate:            ptrInt(115200),
		Cameras:                   DefaultCameras(),
	}
}

// DefaultCameras returns the front and back camera mounts of the competition
// robot.
func DefaultCameras() []CameraConfig {
	return []CameraConfig{
		{Name: "front", XInches: 13.5, YInches: -11, RotationDeg: 0},
		{Name: "back", XInches: -10.5, YInches: -9.5, RotationDeg: 180},
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxTrackingDistanceInches != nil {
		d := *c.MaxTrackingDistanceInches
		if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			return fmt.Errorf("max_tracking_distance_in must be positive, got %v", d)
		}
	}

	if err := validatePositiveDuration("max_tracking_lifetime", c.MaxTrackingLifetime); err != nil {
		return err
	}
	if err := validatePositiveDuration("loop_period", c.LoopPeriod); err != nil {
		return err
	}
	if err := validatePositiveDuration("max_pose_staleness", c.MaxPoseStaleness); err != nil {
		return err
	}

	if c.MaxTargets != nil && *c.MaxTargets < 1 {
		return fmt.Errorf("max_targets must be >= 1, got %d", *c.MaxTargets)
	}
	if c.PoseHistoryCapacity != nil && *c.PoseHistoryCapacity < 2 {
		return fmt.Errorf("pose_history_capacity must be >= 2, got %d", *c.PoseHistoryCapacity)
	}
	if c.SerialBaudRate != nil && *c.SerialBaudRate <= 0 {
		return fmt.Errorf("serial_baud_rate must be positive, got %d", *c.SerialBaudRate)
	}

	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		name := strings.TrimSpace(cam.Name)
		if name == "" {
			return fmt.Errorf("cameras[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("cameras[%d]: duplicate camera name %q", i, name)
		}
		seen[name] = true
	}

	return nil
}

func validatePositiveDuration(field string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", field, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, *v)
	}
	return nil
}

// GetMaxTrackingDistanceInches returns the association threshold or the default.
func (c *TuningConfig) GetMaxTrackingDistanceInches() float64 {
	if c.MaxTrackingDistanceInches == nil {
		return 16.0
	}
	return *c.MaxTrackingDistanceInches
}

// GetMaxTrackingLifetime parses and returns the sample window as a time.Duration.
func (c *TuningConfig) GetMaxTrackingLifetime() time.Duration {
	if c.MaxTrackingLifetime == nil || *c.MaxTrackingLifetime == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.MaxTrackingLifetime)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}

// GetCircularRotationMean returns the circular_rotation_mean value or the default.
func (c *TuningConfig) GetCircularRotationMean() bool {
	if c.CircularRotationMean == nil {
		return false // default: plain scalar mean of degrees
	}
	return *c.CircularRotationMean
}

// GetMaxTargets returns the max_targets value or the default.
func (c *TuningConfig) GetMaxTargets() int {
	if c.MaxTargets == nil {
		return 32
	}
	return *c.MaxTargets
}

// GetLoopPeriod parses and returns the control loop period.
func (c *TuningConfig) GetLoopPeriod() time.Duration {
	if c.LoopPeriod == nil || *c.LoopPeriod == "" {
		return 20 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.LoopPeriod)
	if err != nil {
		return 20 * time.Millisecond // default on parse error
	}
	return d
}

// GetPoseHistoryCapacity returns the pose_history_capacity value or the default.
func (c *TuningConfig) GetPoseHistoryCapacity() int {
	if c.PoseHistoryCapacity == nil {
		return 100
	}
	return *c.PoseHistoryCapacity
}

// GetMaxPoseStaleness returns how long the newest odometry sample may answer
// pose lookups past its own timestamp.
func (c *TuningConfig) GetMaxPoseStaleness() time.Duration {
	if c.MaxPoseStaleness == nil || *c.MaxPoseStaleness == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.MaxPoseStaleness)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *TuningConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

// GetCameras returns the configured cameras, or the default front/back pair
// when none are configured.
func (c *TuningConfig) GetCameras() []CameraConfig {
	if len(c.Cameras) == 0 {
		return DefaultCameras()
	}
	out := make([]CameraConfig, len(c.Cameras))
	copy(out, c.Cameras)
	return out
}
