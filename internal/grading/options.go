package grading

import (
	"fmt"

	"github.com/banshee-data/drivecheck/internal/config"
	"github.com/banshee-data/drivecheck/internal/geometry"
	"github.com/banshee-data/drivecheck/internal/record"
)

// Options controls a Session. A Session copies its Options on construction.
type Options struct {
	RoutingChannel       string
	LocalizationChannel  string
	WarmupSecs           float64
	OffRoadThresholdSecs float64
	TouchEpsilon         float64
	Vehicle              geometry.VehicleDims
	SpeedLimitDecimals   int
	Verbose              bool
	VerboseEvery         int
}

// DefaultOptions returns the options used when no config file is given.
func DefaultOptions() Options {
	return Options{
		RoutingChannel:       record.ChannelPlanning,
		LocalizationChannel:  record.ChannelLocalization,
		WarmupSecs:           config.DefaultWarmupSecs,
		OffRoadThresholdSecs: config.DefaultOffRoadThresholdSecs,
		TouchEpsilon:         0,
		Vehicle: geometry.VehicleDims{
			LengthM:           config.DefaultVehicleLengthM,
			WidthM:            config.DefaultVehicleWidthM,
			BackEdgeToCenterM: config.DefaultBackEdgeToCenterM,
		},
		SpeedLimitDecimals: config.DefaultSpeedLimitDecimals,
		VerboseEvery:       config.DefaultVerboseEvery,
	}
}

// OptionsFromConfig validates cfg and converts it to Options.
func OptionsFromConfig(cfg *config.AnalysisConfig) (Options, error) {
	if cfg == nil {
		return DefaultOptions(), nil
	}
	if err := cfg.Validate(); err != nil {
		return Options{}, fmt.Errorf("invalid analysis config: %w", err)
	}
	return Options{
		RoutingChannel:       cfg.GetRoutingChannel(),
		LocalizationChannel:  cfg.GetLocalizationChannel(),
		WarmupSecs:           cfg.GetWarmupSecs(),
		OffRoadThresholdSecs: cfg.GetOffRoadThresholdSecs(),
		TouchEpsilon:         cfg.GetTouchEpsilon(),
		Vehicle: geometry.VehicleDims{
			LengthM:           cfg.GetVehicleLengthM(),
			WidthM:            cfg.GetVehicleWidthM(),
			BackEdgeToCenterM: cfg.GetVehicleBackEdgeToCenterM(),
		},
		SpeedLimitDecimals: cfg.GetSpeedLimitDecimals(),
		Verbose:            cfg.GetVerbose(),
		VerboseEvery:       cfg.GetVerboseEvery(),
	}, nil
}
