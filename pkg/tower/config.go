// Configuration surface for the tower rewriter
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package tower

import (
	"os"

	"temptower-go/pkg/emulator"
	"temptower-go/pkg/errors"
	"temptower-go/pkg/schedule"
)

// Defaults matching the stock configurable tower mesh sliced at 0.2mm.
const (
	// DefaultFloorCount is the story count of the stock tower model
	DefaultFloorCount = 10

	// DefaultFloorHeight is one story's height in mm
	DefaultFloorHeight = 13.5

	// DefaultFirstFloorHeight includes the model's taller base story
	DefaultFirstFloorHeight = 16.201

	// DefaultBuildMovementThreshold is the vertical delta (mm) treated as an
	// intra-floor layer step rather than travel motion
	DefaultBuildMovementThreshold = 1.20

	// DefaultEndRetractionMarker protects end-gcode retractions: a line whose
	// comment carries this substring keeps its negative extrusion after
	// truncation
	DefaultEndRetractionMarker = "filament slightly"
)

// Config is the explicit configuration value object passed into every core
// call. No shared mutable state survives between runs.
type Config struct {
	// TemplateSourcePath is the sliced tower gcode to rewrite. Required.
	TemplateSourcePath string

	// FloorCount, FloorHeight and FloorHeightOverrides describe the tower
	// geometry; see schedule.Config.
	FloorCount           int
	FloorHeight          float64
	FloorHeightOverrides []float64

	// MinTemperature, MaxTemperature and TemperatureStep describe the
	// temperature range; see schedule.Config.
	MinTemperature  int
	MaxTemperature  int
	TemperatureStep int

	// BuildMovementThreshold is the vertical-delta-is-layer-step cutoff (mm).
	BuildMovementThreshold float64

	// EndRetractionMarker is searched in the raw line to protect trailing
	// retractions from removal.
	EndRetractionMarker string

	// EstimateTime enables the toolhead emulator for duration estimates.
	EstimateTime bool

	// Emulator holds the homing assumptions used when EstimateTime is set.
	Emulator emulator.Config
}

// scheduleConfig maps the rewriter configuration onto the schedule builder's.
func (c *Config) scheduleConfig() schedule.Config {
	return schedule.Config{
		FloorCount:      c.FloorCount,
		FloorHeight:     c.FloorHeight,
		HeightOverrides: c.FloorHeightOverrides,
		MinTemp:         c.MinTemperature,
		MaxTemp:         c.MaxTemperature,
		Step:            c.TemperatureStep,
	}
}

// Validate checks the settings that the rewriter itself depends on. Tower
// geometry and temperature range are validated by the schedule builder.
func (c *Config) Validate() error {
	if c.TemplateSourcePath == "" {
		return errors.ConfigMissingError("template_gcode_path")
	}
	if info, err := os.Stat(c.TemplateSourcePath); err != nil || info.IsDir() {
		return errors.SourceNotFoundError(c.TemplateSourcePath,
			"slice the configurable temperature tower model and point template_gcode_path at the result")
	}
	if c.BuildMovementThreshold < 0 {
		return errors.ConfigValidationError("max_z_build_movement", "must not be negative")
	}
	return nil
}
