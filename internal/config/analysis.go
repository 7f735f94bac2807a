package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// Default values used when a field is omitted from the config file.
const (
	DefaultRoutingChannel       = "/apollo/planning"
	DefaultLocalizationChannel  = "/apollo/localization/pose"
	DefaultWarmupSecs           = 5.0
	DefaultOffRoadThresholdSecs = 5.0
	DefaultVehicleLengthM       = 4.933
	DefaultVehicleWidthM        = 2.11
	DefaultBackEdgeToCenterM    = 1.043
	DefaultGridCellSizeM        = 50.0
	MinGridCellSizeM            = 1.0
	DefaultSpeedLimitDecimals   = 3
	DefaultWorkers              = 4
	DefaultVerboseEvery         = 100
)

// AnalysisConfig represents the root configuration for a grading pass.
// All fields are optional; the Get* methods supply defaults, so partial
// files are safe.
type AnalysisConfig struct {
	// Channels
	RoutingChannel      *string `json:"routing_channel,omitempty" yaml:"routing_channel,omitempty"`
	LocalizationChannel *string `json:"localization_channel,omitempty" yaml:"localization_channel,omitempty"`

	// Timing, in message timestamp units (seconds)
	WarmupSecs           *float64 `json:"warmup_secs,omitempty" yaml:"warmup_secs,omitempty"`
	OffRoadThresholdSecs *float64 `json:"offroad_threshold_secs,omitempty" yaml:"offroad_threshold_secs,omitempty"`

	// TouchEpsilon widens the boundary touch predicate from "distance == 0"
	// to "distance <= epsilon".
	TouchEpsilon *float64 `json:"touch_epsilon,omitempty" yaml:"touch_epsilon,omitempty"`

	// Vehicle footprint
	VehicleLengthM           *float64 `json:"vehicle_length_m,omitempty" yaml:"vehicle_length_m,omitempty"`
	VehicleWidthM            *float64 `json:"vehicle_width_m,omitempty" yaml:"vehicle_width_m,omitempty"`
	VehicleBackEdgeToCenterM *float64 `json:"vehicle_back_edge_to_center_m,omitempty" yaml:"vehicle_back_edge_to_center_m,omitempty"`

	// Map index
	GridCellSizeM *float64 `json:"grid_cell_size_m,omitempty" yaml:"grid_cell_size_m,omitempty"`

	// Reporting and execution
	SpeedLimitDecimals *int  `json:"speed_limit_decimals,omitempty" yaml:"speed_limit_decimals,omitempty"`
	Workers            *int  `json:"workers,omitempty" yaml:"workers,omitempty"`
	Verbose            *bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	VerboseEvery       *int  `json:"verbose_every,omitempty" yaml:"verbose_every,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields set to nil.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field explicitly set to
// its default value.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		RoutingChannel:           ptrString(DefaultRoutingChannel),
		LocalizationChannel:      ptrString(DefaultLocalizationChannel),
		WarmupSecs:               ptrFloat64(DefaultWarmupSecs),
		OffRoadThresholdSecs:     ptrFloat64(DefaultOffRoadThresholdSecs),
		TouchEpsilon:             ptrFloat64(0),
		VehicleLengthM:           ptrFloat64(DefaultVehicleLengthM),
		VehicleWidthM:            ptrFloat64(DefaultVehicleWidthM),
		VehicleBackEdgeToCenterM: ptrFloat64(DefaultBackEdgeToCenterM),
		GridCellSizeM:            ptrFloat64(DefaultGridCellSizeM),
		SpeedLimitDecimals:       ptrInt(DefaultSpeedLimitDecimals),
		Workers:                  ptrInt(DefaultWorkers),
		Verbose:                  ptrBool(false),
		VerboseEvery:             ptrInt(DefaultVerboseEvery),
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON or YAML file.
// The format is chosen by extension (.json, .yaml, .yml) and the file must be
// under 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

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

	cfg, err := ParseAnalysisConfig(data, ext)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseAnalysisConfig decodes and validates config bytes. ext selects the
// decoder: ".yaml"/".yml" use YAML, anything else JSON.
func ParseAnalysisConfig(data []byte, ext string) (*AnalysisConfig, error) {
	cfg := EmptyAnalysisConfig()
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded; intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.RoutingChannel != nil && *c.RoutingChannel == "" {
		return fmt.Errorf("routing_channel must not be empty")
	}
	if c.LocalizationChannel != nil && *c.LocalizationChannel == "" {
		return fmt.Errorf("localization_channel must not be empty")
	}
	if c.RoutingChannel != nil && c.LocalizationChannel != nil && *c.RoutingChannel == *c.LocalizationChannel {
		return fmt.Errorf("routing_channel and localization_channel must differ, both are %q", *c.RoutingChannel)
	}

	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"warmup_secs", c.WarmupSecs},
		{"offroad_threshold_secs", c.OffRoadThresholdSecs},
		{"touch_epsilon", c.TouchEpsilon},
		{"vehicle_back_edge_to_center_m", c.VehicleBackEdgeToCenterM},
	}
	for _, f := range nonNegative {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", f.name, *f.v)
		}
	}

	positive := []struct {
		name string
		v    *float64
	}{
		{"vehicle_length_m", c.VehicleLengthM},
		{"vehicle_width_m", c.VehicleWidthM},
		{"grid_cell_size_m", c.GridCellSizeM},
	}
	for _, f := range positive {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", f.name, *f.v)
		}
	}

	if c.GridCellSizeM != nil && *c.GridCellSizeM < MinGridCellSizeM {
		return fmt.Errorf("grid_cell_size_m must be at least %g, got %f", MinGridCellSizeM, *c.GridCellSizeM)
	}
	// Checked against the effective values so a single overridden field is
	// compared with the other's default.
	if back, length := c.GetVehicleBackEdgeToCenterM(), c.GetVehicleLengthM(); back > length {
		return fmt.Errorf("vehicle_back_edge_to_center_m (%f) exceeds vehicle_length_m (%f)", back, length)
	}
	if c.SpeedLimitDecimals != nil && (*c.SpeedLimitDecimals < 0 || *c.SpeedLimitDecimals > 9) {
		return fmt.Errorf("speed_limit_decimals must be between 0 and 9, got %d", *c.SpeedLimitDecimals)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.VerboseEvery != nil && *c.VerboseEvery < 1 {
		return fmt.Errorf("verbose_every must be at least 1, got %d", *c.VerboseEvery)
	}
	return nil
}

// GetRoutingChannel returns the routing channel or the default.
func (c *AnalysisConfig) GetRoutingChannel() string {
	if c.RoutingChannel == nil {
		return DefaultRoutingChannel
	}
	return *c.RoutingChannel
}

// GetLocalizationChannel returns the localization channel or the default.
func (c *AnalysisConfig) GetLocalizationChannel() string {
	if c.LocalizationChannel == nil {
		return DefaultLocalizationChannel
	}
	return *c.LocalizationChannel
}

// GetWarmupSecs returns the warm-up window or the default.
func (c *AnalysisConfig) GetWarmupSecs() float64 {
	if c.WarmupSecs == nil {
		return DefaultWarmupSecs
	}
	return *c.WarmupSecs
}

// GetOffRoadThresholdSecs returns the off-road debounce threshold or the default.
func (c *AnalysisConfig) GetOffRoadThresholdSecs() float64 {
	if c.OffRoadThresholdSecs == nil {
		return DefaultOffRoadThresholdSecs
	}
	return *c.OffRoadThresholdSecs
}

// GetTouchEpsilon returns the touch tolerance or 0.
func (c *AnalysisConfig) GetTouchEpsilon() float64 {
	if c.TouchEpsilon == nil {
		return 0
	}
	return *c.TouchEpsilon
}

func (c *AnalysisConfig) GetVehicleLengthM() float64 {
	if c.VehicleLengthM == nil {
		return DefaultVehicleLengthM
	}
	return *c.VehicleLengthM
}

func (c *AnalysisConfig) GetVehicleWidthM() float64 {
	if c.VehicleWidthM == nil {
		return DefaultVehicleWidthM
	}
	return *c.VehicleWidthM
}

func (c *AnalysisConfig) GetVehicleBackEdgeToCenterM() float64 {
	if c.VehicleBackEdgeToCenterM == nil {
		return DefaultBackEdgeToCenterM
	}
	return *c.VehicleBackEdgeToCenterM
}

// GetGridCellSizeM returns the lane index cell size or the default.
func (c *AnalysisConfig) GetGridCellSizeM() float64 {
	if c.GridCellSizeM == nil {
		return DefaultGridCellSizeM
	}
	return *c.GridCellSizeM
}

// GetSpeedLimitDecimals returns the rounding precision for reported limits.
func (c *AnalysisConfig) GetSpeedLimitDecimals() int {
	if c.SpeedLimitDecimals == nil {
		return DefaultSpeedLimitDecimals
	}
	return *c.SpeedLimitDecimals
}

// GetWorkers returns the batch worker count or the default.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetVerbose returns the verbose flag or the default (false).
func (c *AnalysisConfig) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}

// GetVerboseEvery returns the debug sampling interval or the default.
func (c *AnalysisConfig) GetVerboseEvery() int {
	if c.VerboseEvery == nil {
		return DefaultVerboseEvery
	}
	return *c.VerboseEvery
}
